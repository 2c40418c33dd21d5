package Controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"KaufmannHealth/CalCom"
	"KaufmannHealth/Models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupControllerDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	require.NoError(t, err)

	previous := Models.DB
	Models.DB = gdb
	t.Cleanup(func() {
		Models.DB = previous
		conn.Close()
	})
	return mock
}

func bookingRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/bookings", CreateBooking)
	return router
}

func expectBookingLookups(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT \* FROM "therapist_profiles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cal_username"}).AddRow(3, "anna"))
	mock.ExpectQuery(`SELECT \* FROM "people"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow(1, "Pat", "pat@example.com"))
}

const bookingBody = `{"patient_id":1,"therapist_id":3,"date_iso":"2026-03-02","time_label":"10:00","format":"in_person","kind":"intro"}`

func TestCreateBooking_DryRunSkipsInsert(t *testing.T) {
	mock := setupControllerDB(t)
	expectBookingLookups(mock)

	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(bookingBody))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: TestModeCookieName, Value: "1"})
	w := httptest.NewRecorder()
	bookingRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dry_run":true`)
	// Only the two lookups ran: no insert, no slot consumed.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBooking_MetadataDryRunFlag(t *testing.T) {
	mock := setupControllerDB(t)
	expectBookingLookups(mock)

	body := `{"patient_id":1,"therapist_id":3,"date_iso":"2026-03-02","time_label":"10:00","format":"in_person","metadata":{"kh_test":true}}`
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	bookingRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"dry_run":true`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBooking_SlotTaken(t *testing.T) {
	mock := setupControllerDB(t)
	expectBookingLookups(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "bookings"`).
		WillReturnError(errors.New(`duplicate key value violates unique constraint "idx_booking_slot"`))
	mock.ExpectRollback()

	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(bookingBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	bookingRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "SLOT_TAKEN")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBooking_ConsumesFallbackSlot(t *testing.T) {
	calServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"uid":"cal_123"}`))
	}))
	defer calServer.Close()
	t.Setenv("CAL_BASE_URL", calServer.URL)
	CalCom.Setup()

	mock := setupControllerDB(t)
	expectBookingLookups(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "therapist_slots"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "matches"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(bookingBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	bookingRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"booking_id":11`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDryRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/bookings", nil)

	assert.False(t, isDryRun(c, nil))
	assert.True(t, isDryRun(c, map[string]interface{}{"kh_test": true}))
	assert.True(t, isDryRun(c, map[string]interface{}{"kh_test": "1"}))
	assert.False(t, isDryRun(c, map[string]interface{}{"kh_test": false}))

	c.Request.AddCookie(&http.Cookie{Name: TestModeCookieName, Value: "1"})
	assert.True(t, isDryRun(c, nil))
}

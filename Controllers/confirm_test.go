package Controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"KaufmannHealth/Email"
	"KaufmannHealth/Models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func swapSendEmail(t *testing.T, calls *int32) {
	t.Helper()
	previous := sendEmail
	sendEmail = func(ctx context.Context, to, subject, html string) Email.Result {
		atomic.AddInt32(calls, 1)
		return Email.Result{Sent: true}
	}
	t.Cleanup(func() { sendEmail = previous })
}

func TestConfirmEmail_MissingParamsIsBrokenLink(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/confirm", ConfirmEmail)

	queries := []string{
		"",
		"token=abc&id=1&redirect=/done",                    // no fs
		"token=abc&id=1&fs=fs_1",                           // no redirect
		"token=abc&redirect=/done&fs=fs_1",                 // no id
		"id=1&redirect=/done&fs=fs_1",                      // no token
		"token=abc&id=notanumber&redirect=/done&fs=fs_1",   // bad id
	}
	for _, query := range queries {
		req := httptest.NewRequest(http.MethodGet, "/confirm?"+query, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "query %q", query)
		assert.Contains(t, w.Body.String(), "INVALID_LINK", "query %q", query)
	}
}

func TestConfirmEmail_RejectsAbsoluteRedirects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/confirm", ConfirmEmail)

	for _, redirect := range []string{"https://evil.example/x", "//evil.example", "http://evil.example", `/\evil.example`} {
		req := httptest.NewRequest(http.MethodGet, "/confirm", nil)
		q := req.URL.Query()
		q.Set("token", "abc")
		q.Set("id", "1")
		q.Set("redirect", redirect)
		q.Set("fs", "fs_1")
		req.URL.RawQuery = q.Encode()
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, "redirect %q", redirect)
		assert.Contains(t, w.Body.String(), "INVALID_LINK", "redirect %q", redirect)
	}
}

func TestConfirmEmail_PromotesPhoneVerifiedLead(t *testing.T) {
	mock := setupControllerDB(t)
	mock.ExpectQuery(`SELECT \* FROM "people"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "status", "confirmation_token", "campaign_variant"}).
			AddRow(7, Models.PersonTypePatient, Models.PersonStatusNew, "tok", ""))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "people"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	// Recent matches exist, so confirmation does not re-run the matcher.
	mock.ExpectQuery(`SELECT count\(\*\) FROM "matches"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/confirm", ConfirmEmail)
	req := httptest.NewRequest(http.MethodGet, "/confirm?token=tok&id=7&redirect=/welcome&fs=fs_1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/welcome?fs=fs_1", w.Header().Get("Location"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchConfirmationEmail_RefusesIncompleteLinks(t *testing.T) {
	var calls int32
	swapSendEmail(t, &calls)
	email := "patient@example.com"

	complete := func() *Models.Person {
		person := &Models.Person{Email: &email, ConfirmationToken: "tok"}
		person.ID = 7
		return person
	}

	// Missing person id.
	person := complete()
	person.ID = 0
	dispatchConfirmationEmail(person, "/done", "fs_1")
	assert.EqualValues(t, 0, calls)

	// Missing token.
	person = complete()
	person.ConfirmationToken = ""
	dispatchConfirmationEmail(person, "/done", "fs_1")
	assert.EqualValues(t, 0, calls)

	// Missing email.
	person = complete()
	person.Email = nil
	dispatchConfirmationEmail(person, "/done", "fs_1")
	assert.EqualValues(t, 0, calls)

	// Missing form session.
	dispatchConfirmationEmail(complete(), "/done", "")
	assert.EqualValues(t, 0, calls)
}

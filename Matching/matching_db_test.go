package Matching

import (
	"testing"
	"time"

	"KaufmannHealth/Models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMatchingDB(t *testing.T) sqlmock.Sqlmock {
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

func TestCreateInstantMatches_ActiveMatchShortCircuits(t *testing.T) {
	mock := setupMatchingDB(t)
	mock.ExpectQuery(`SELECT \* FROM "people"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "status"}).
			AddRow(1, Models.PersonTypePatient, Models.PersonStatusEmailConfirmed))
	mock.ExpectQuery(`SELECT \* FROM "matches"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "status", "created_at"}).
			AddRow(9, 1, Models.MatchStatusAccepted, time.Now()))

	result, err := CreateInstantMatchesForPatient(1, "", nil)
	assert.NoError(t, err)
	assert.Nil(t, result)
	// No therapist read, no match insert: expectations cover the whole run.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInstantMatches_StaleMatchDoesNotBlock(t *testing.T) {
	mock := setupMatchingDB(t)
	returning := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "people"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "status", "returning_concierge_at"}).
			AddRow(1, Models.PersonTypePatient, Models.PersonStatusEmailConfirmed, returning))
	mock.ExpectQuery(`SELECT \* FROM "matches"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "status", "created_at"}).
			AddRow(9, 1, Models.MatchStatusAccepted, returning.Add(-time.Hour)))
	mock.ExpectQuery(`SELECT \* FROM "therapist_profiles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// No candidates: the run still writes the placeholder row.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "matches"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	result, err := CreateInstantMatchesForPatient(1, "", nil)
	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, Models.MatchQualityNone, result.Quality)
	assert.Equal(t, []uint{5}, result.MatchIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package Models

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMatchIsStaleFor(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	match := Match{}
	match.CreatedAt = createdAt

	// No re-submission: never stale.
	patient := Person{}
	assert.False(t, match.IsStaleFor(&patient))

	// Re-submission before the match: still fresh.
	earlier := createdAt.Add(-time.Hour)
	patient.ReturningConciergeAt = &earlier
	assert.False(t, match.IsStaleFor(&patient))

	// Re-submission at exactly the match time: not after, still fresh.
	patient.ReturningConciergeAt = &createdAt
	assert.False(t, match.IsStaleFor(&patient))

	// Re-submission after the match: stale.
	later := createdAt.Add(time.Hour)
	patient.ReturningConciergeAt = &later
	assert.True(t, match.IsStaleFor(&patient))
}

func TestMatchIsActive(t *testing.T) {
	active := []string{
		MatchStatusAccepted,
		MatchStatusTherapistContacted,
		MatchStatusTherapistResponded,
		MatchStatusSessionBooked,
		MatchStatusCompleted,
	}
	for _, status := range active {
		match := Match{Status: status}
		assert.True(t, match.IsActive(), "status %s", status)
	}
	for _, status := range []string{MatchStatusProposed, MatchStatusDeclined, MatchStatusFailed} {
		match := Match{Status: status}
		assert.False(t, match.IsActive(), "status %s", status)
	}
}

func TestIsSlotTakenError(t *testing.T) {
	assert.False(t, IsSlotTakenError(nil))
	assert.False(t, IsSlotTakenError(errors.New("connection refused")))
	assert.True(t, IsSlotTakenError(gorm.ErrDuplicatedKey))
	assert.True(t, IsSlotTakenError(errors.New(`duplicate key value violates unique constraint "idx_booking_slot"`)))
	assert.True(t, IsSlotTakenError(errors.New("ERROR: something (SQLSTATE 23505)")))
}

func TestPersonIsConfirmed(t *testing.T) {
	confirmed := []string{PersonStatusNew, PersonStatusEmailConfirmed, PersonStatusMatched, PersonStatusConverted}
	for _, status := range confirmed {
		person := Person{Status: status}
		assert.True(t, person.IsConfirmed(), "status %s", status)
	}
	for _, status := range []string{PersonStatusAnonymous, PersonStatusPreConfirmation, PersonStatusRejected} {
		person := Person{Status: status}
		assert.False(t, person.IsConfirmed(), "status %s", status)
	}
}

func TestBookingSlotIndexSkipsCancelled(t *testing.T) {
	bookingType := reflect.TypeOf(Booking{})
	for _, name := range []string{"TherapistID", "DateISO", "TimeLabel", "Format"} {
		field, ok := bookingType.FieldByName(name)
		require.True(t, ok, "field %s", name)
		assert.Contains(t, field.Tag.Get("gorm"), "idx_booking_slot", "field %s", name)
	}

	// Cancelled rows leave the index so the slot can be rebooked.
	therapistID, _ := bookingType.FieldByName("TherapistID")
	assert.Contains(t, therapistID.Tag.Get("gorm"), "where:status <> 'cancelled'")
}

func TestPersonGenerateConfirmationToken(t *testing.T) {
	first := Person{}
	require.NoError(t, first.GenerateConfirmationToken())
	second := Person{}
	require.NoError(t, second.GenerateConfirmationToken())

	assert.Len(t, first.ConfirmationToken, 48)
	assert.NotEqual(t, first.ConfirmationToken, second.ConfirmationToken)
}

func TestPersonGenerateSMSCode(t *testing.T) {
	person := Person{}
	person.GenerateSMSCode(6)
	assert.Len(t, person.SMSCode, 6)
	for _, r := range person.SMSCode {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestPersonMergeMetadata(t *testing.T) {
	person := Person{Metadata: map[string]interface{}{"city": "Berlin", "budget": 80}}
	person.MergeMetadata(map[string]interface{}{"budget": 120, "session_preference": "online"})

	assert.Equal(t, "Berlin", person.Metadata["city"])
	assert.Equal(t, 120, person.Metadata["budget"])
	assert.Equal(t, "online", person.Metadata["session_preference"])
}

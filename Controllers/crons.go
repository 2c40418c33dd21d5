package Controllers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"KaufmannHealth/Logger"
	"KaufmannHealth/Models"

	"github.com/gin-gonic/gin"
)

// The cron-capable endpoints below share one shape: a plain Run function the
// in-process scheduler calls directly, and a thin handler for the HTTP cron
// trigger. Every send claims its (person, stage) slot in the notification
// ledger first, so retried crons never double-send.

func cronHandler(name string, run func() (int, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		sent, err := run()
		if err != nil {
			Logger.LogError("cron."+name, err, nil)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"sent": sent}, "error": nil})
	}
}

// RunConfirmationReminders nudges unconfirmed leads 24h and 72h after the
// original confirmation email.
func RunConfirmationReminders() (int, error) {
	var pending []Models.Person
	err := Models.DB.Where("status = ? AND confirmation_sent_at IS NOT NULL", Models.PersonStatusPreConfirmation).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	now := time.Now()
	for index := range pending {
		person := pending[index]
		if person.Email == nil || person.ConfirmationSentAt == nil {
			continue
		}
		age := now.Sub(*person.ConfirmationSentAt)

		var stage string
		switch {
		case age >= 72*time.Hour:
			stage = Models.StageConfirmationReminder72h
		case age >= 24*time.Hour:
			stage = Models.StageConfirmationReminder24h
		default:
			continue
		}

		claimed, err := Models.MarkNotified(person.ID, stage, "email")
		if err != nil {
			Logger.LogError("cron.confirmation_reminders", err, map[string]interface{}{"person_id": person.ID})
			continue
		}
		if !claimed {
			continue
		}

		formSessionID, _ := person.Metadata["form_session_id"].(string)
		result := dispatchConfirmationEmail(&person, "/fragebogen/ergebnis", formSessionID)
		if !result.Sent {
			// Give the claim back so the next run retries the only reminder.
			Models.ReleaseNotification(person.ID, stage)
			continue
		}
		sent++
	}
	return sent, nil
}

// RunSelectionNudges reminds patients with proposed matches and no booking to
// pick a therapist.
func RunSelectionNudges() (int, error) {
	var matches []Models.Match
	err := Models.DB.Where("status = ? AND therapist_id IS NOT NULL", Models.MatchStatusProposed).
		Where("created_at < ?", time.Now().Add(-24*time.Hour)).
		Find(&matches).Error
	if err != nil {
		return 0, err
	}

	seen := map[uint]bool{}
	sent := 0
	for index := range matches {
		patientID := matches[index].PatientID
		if seen[patientID] {
			continue
		}
		seen[patientID] = true

		hasBooking, err := Models.HasActiveBooking(patientID)
		if err != nil || hasBooking {
			continue
		}
		person, err := Models.GetPersonByID(patientID)
		if err != nil || person.Email == nil {
			continue
		}

		claimed, err := Models.MarkNotified(patientID, Models.StageSelectionNudge, "email")
		if err != nil || !claimed {
			continue
		}

		link := fmt.Sprintf("%s/matches/%s", os.Getenv("PUBLIC_BASE_URL"), matches[index].SecureUUID)
		result := sendEmail(context.Background(), *person.Email,
			"Deine Therapeuten-Vorschläge warten",
			fmt.Sprintf("<p>Deine Vorschläge findest du hier: <a href=%q>Auswahl öffnen</a></p>", link))
		if !result.Sent {
			Models.ReleaseNotification(patientID, Models.StageSelectionNudge)
			continue
		}
		sent++
	}
	return sent, nil
}

// RunDocumentReminders chases therapists whose profiles still miss the
// verification documents.
func RunDocumentReminders() (int, error) {
	var profiles []Models.TherapistProfile
	err := Models.DB.Where("status = ?", Models.TherapistStatusPending).
		Where("created_at < ?", time.Now().Add(-48*time.Hour)).
		Find(&profiles).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for index := range profiles {
		profile := profiles[index]
		if len(profile.DocumentKeys) > 0 {
			continue
		}
		person, err := Models.GetPersonByID(profile.PersonID)
		if err != nil || person.Email == nil {
			continue
		}

		claimed, err := Models.MarkNotified(person.ID, Models.StageDocumentReminder, "email")
		if err != nil || !claimed {
			continue
		}

		result := sendEmail(context.Background(), *person.Email,
			"Deine Unterlagen fehlen noch",
			"<p>Bitte lade deine Zertifikate hoch, damit wir dein Profil freischalten können.</p>")
		if !result.Sent {
			Models.ReleaseNotification(person.ID, Models.StageDocumentReminder)
			continue
		}
		sent++
	}
	return sent, nil
}

// RunBlockerSurvey asks confirmed patients who never selected a therapist
// what got in the way.
func RunBlockerSurvey() (int, error) {
	var patients []Models.Person
	err := Models.DB.Where("type = ? AND status = ?", Models.PersonTypePatient, Models.PersonStatusMatched).
		Where("updated_at < ?", time.Now().Add(-7*24*time.Hour)).
		Find(&patients).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for index := range patients {
		person := patients[index]
		if person.Email == nil {
			continue
		}
		hasBooking, err := Models.HasActiveBooking(person.ID)
		if err != nil || hasBooking {
			continue
		}

		claimed, err := Models.MarkNotified(person.ID, Models.StageBlockerSurvey, "email")
		if err != nil || !claimed {
			continue
		}

		result := sendEmail(context.Background(), *person.Email,
			"Was hält dich noch auf?",
			"<p>Du hast noch keinen Termin gebucht - gibt es etwas, das wir besser machen können?</p>")
		if !result.Sent {
			Models.ReleaseNotification(person.ID, Models.StageBlockerSurvey)
			continue
		}
		sent++
	}
	return sent, nil
}

// RunConversionBackfill marks booked patients as converted and records the
// conversion event the ads pipeline reads.
func RunConversionBackfill() (int, error) {
	var bookings []Models.Booking
	err := Models.DB.Where("status = ?", Models.BookingStatusConfirmed).Find(&bookings).Error
	if err != nil {
		return 0, err
	}

	converted := 0
	for index := range bookings {
		patientID := bookings[index].PatientID
		result := Models.DB.Model(&Models.Person{}).
			Where("id = ? AND status <> ?", patientID, Models.PersonStatusConverted).
			Update("status", Models.PersonStatusConverted)
		if result.Error != nil {
			Logger.LogError("cron.conversion_backfill", result.Error, map[string]interface{}{"person_id": patientID})
			continue
		}
		if result.RowsAffected > 0 {
			Models.Track("conversion", "info", map[string]interface{}{
				"person_id": patientID, "booking_id": bookings[index].ID,
			})
			converted++
		}
	}
	return converted, nil
}

// SystemErrorDigest returns (and on cron runs, mails) the error events of the
// last 24 hours.
func SystemErrorDigest(c *gin.Context) {
	events, err := Models.GetErrorEventsSince(time.Now().Add(-24*time.Hour), 200)
	if err != nil {
		Logger.LogError("cron.error_digest", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		return
	}

	if c.GetString("caller") == "cron" && len(events) > 0 {
		recipient := os.Getenv("OPS_EMAIL")
		body := "<p>Fehler der letzten 24 Stunden:</p><ul>"
		for index := range events {
			source, _ := events[index].Properties["source"].(string)
			message, _ := events[index].Properties["error"].(string)
			body += fmt.Sprintf("<li>%s - %s: %s</li>", events[index].CreatedAt.Format(time.RFC3339), source, message)
		}
		body += "</ul>"
		result := sendEmail(context.Background(), recipient, fmt.Sprintf("Fehler-Digest (%d)", len(events)), body)
		if !result.Sent && result.Reason != "missing_recipient" {
			Logger.LogError("cron.error_digest", fmt.Errorf("digest email not sent: %s", result.Reason), nil)
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"count": len(events), "events": events}, "error": nil})
}

// HTTP wrappers for the cron-capable endpoints.
var (
	ConfirmationRemindersHandler = cronHandler("confirmation_reminders", RunConfirmationReminders)
	SelectionNudgesHandler       = cronHandler("selection_nudges", RunSelectionNudges)
	DocumentRemindersHandler     = cronHandler("document_reminders", RunDocumentReminders)
	BlockerSurveyHandler         = cronHandler("blocker_survey", RunBlockerSurvey)
	ConversionBackfillHandler    = cronHandler("conversion_backfill", RunConversionBackfill)
)

package Controllers

import (
	"net/http"
	"strconv"
	"time"

	"KaufmannHealth/CalCom"
	"KaufmannHealth/Logger"
	"KaufmannHealth/Models"
	"KaufmannHealth/SSE"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const TestModeCookieName = "kh_test"

func GetAvailability(c *gin.Context) {
	therapistID, err := strconv.ParseUint(c.Query("therapist_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "therapist_id is required"})
		return
	}
	kind := c.Query("kind")
	start := c.Query("start")
	end := c.Query("end")

	var profile Models.TherapistProfile
	if err := Models.DB.First(&profile, uint(therapistID)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	slots, err := CalCom.Default().GetAvailability(c.Request.Context(), &profile, kind, start, end)
	if err != nil {
		Logger.LogError("api.bookings.availability", err, map[string]interface{}{"therapist_id": therapistID, "kind": kind})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": slots, "error": nil})
}

type BookingInput struct {
	PatientID   uint                   `json:"patient_id" binding:"required"`
	TherapistID uint                   `json:"therapist_id" binding:"required"`
	DateISO     string                 `json:"date_iso" binding:"required"`
	TimeLabel   string                 `json:"time_label" binding:"required"`
	Format      string                 `json:"format" binding:"required"`
	Kind        string                 `json:"kind"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// isDryRun recognizes the test-mode cookie or metadata flag. Dry runs walk
// the write path without inserting or contacting Cal.com, so the slot stays
// available.
func isDryRun(c *gin.Context, metadata map[string]interface{}) bool {
	if cookie, err := c.Cookie(TestModeCookieName); err == nil && cookie == "1" {
		return true
	}
	if metadata != nil {
		if flag, ok := metadata["kh_test"]; ok {
			switch value := flag.(type) {
			case bool:
				return value
			case string:
				return value == "1" || value == "true"
			}
		}
	}
	return false
}

func CreateBooking(c *gin.Context) {
	var input BookingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var profile Models.TherapistProfile
	if err := Models.DB.First(&profile, input.TherapistID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	patient, err := Models.GetPersonByID(input.PatientID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	if isDryRun(c, input.Metadata) {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"dry_run": true}, "error": nil})
		return
	}

	booking := Models.Booking{
		PatientID:   input.PatientID,
		TherapistID: input.TherapistID,
		DateISO:     input.DateISO,
		TimeLabel:   input.TimeLabel,
		Format:      input.Format,
		Status:      Models.BookingStatusConfirmed,
		SecureUUID:  uuid.NewString(),
	}

	if err := Models.DB.Create(&booking).Error; err != nil {
		if Models.IsSlotTakenError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "SLOT_TAKEN", "code": "SLOT_TAKEN"})
			return
		}
		Logger.LogError("api.bookings", err, map[string]interface{}{"patient_id": input.PatientID})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		return
	}

	// Consume the fallback slot row so availability queries stop offering it
	// when Cal.com is unreachable. Best-effort, the unique index on bookings
	// is what actually guards the slot.
	Models.DB.Model(&Models.TherapistSlot{}).
		Where("therapist_id = ? AND date_iso = ? AND time_label = ? AND taken = ?",
			input.TherapistID, input.DateISO, input.TimeLabel, false).
		Update("taken", true)

	// Consuming the Cal.com slot is best-effort: the booking row is the
	// source of truth, a failed sync only degrades the calendar.
	email := ""
	if patient.Email != nil {
		email = *patient.Email
	}
	calUID, err := CalCom.Default().CreateBooking(c.Request.Context(), &profile, input.Kind,
		input.DateISO+"T"+input.TimeLabel, patient.Name, email)
	if err != nil {
		Logger.LogError("api.bookings.cal", err, map[string]interface{}{"booking_id": booking.ID})
	} else if calUID != "" {
		Models.DB.Model(&Models.Booking{}).Where("id = ?", booking.ID).Update("cal_uid", calUID)
	}

	Models.DB.Model(&Models.Match{}).
		Where("patient_id = ? AND therapist_id = ? AND status IN ?",
			input.PatientID, input.TherapistID,
			[]string{Models.MatchStatusProposed, Models.MatchStatusAccepted, Models.MatchStatusTherapistContacted, Models.MatchStatusTherapistResponded}).
		Update("status", Models.MatchStatusSessionBooked)

	Models.Track("booking_created", "info", map[string]interface{}{
		"booking_id": booking.ID, "patient_id": input.PatientID, "therapist_id": input.TherapistID,
	})
	SSE.Broadcaster.Broadcast(SSE.EventBookingCreated)

	c.JSON(http.StatusOK, gin.H{
		"data":  gin.H{"booking_id": booking.ID, "secure_uuid": booking.SecureUUID},
		"error": nil,
	})
}

// MarkBookingViewed stamps therapist_viewed_at the first time the therapist
// opens the booking link.
func MarkBookingViewed(c *gin.Context) {
	secureUUID := c.Param("uuid")
	var booking Models.Booking
	if err := Models.DB.Where("secure_uuid = ?", secureUUID).First(&booking).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if booking.TherapistViewedAt == nil {
		now := time.Now()
		Models.DB.Model(&Models.Booking{}).Where("id = ?", booking.ID).
			Update("therapist_viewed_at", &now)
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"booking_id": booking.ID}, "error": nil})
}

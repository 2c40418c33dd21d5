package Controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"KaufmannHealth/Logger"
	"KaufmannHealth/Models"
	"KaufmannHealth/SMS"
	"KaufmannHealth/SSE"

	"github.com/gin-gonic/gin"
)

// VerifyCalSignature checks the x-cal-signature-256 header: hex-encoded
// HMAC-SHA256 over the raw JSON body, compared in constant time.
func VerifyCalSignature(body []byte, signature string, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// splitCalTimestamp converts Cal.com's RFC3339 startTime into the date and
// time-label pair the booking slot key uses.
func splitCalTimestamp(raw string) (string, string, bool) {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return "", "", false
	}
	return parsed.Format("2006-01-02"), parsed.Format("15:04"), true
}

type calWebhookBody struct {
	TriggerEvent string `json:"triggerEvent"`
	Payload      struct {
		UID       string `json:"uid"`
		StartTime string `json:"startTime"`
		EndTime   string `json:"endTime"`
		Status    string `json:"status"`
		Organizer struct {
			Email string `json:"email"`
		} `json:"organizer"`
		Attendees []struct {
			Email string `json:"email"`
		} `json:"attendees"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"payload"`
}

func CalWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read body"})
		return
	}

	if !VerifyCalSignature(body, c.GetHeader("x-cal-signature-256"), os.Getenv("CAL_WEBHOOK_SECRET")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var event calWebhookBody
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	switch event.TriggerEvent {
	case "BOOKING_CREATED":
		// Bookings created through our own flow already exist; this catches
		// direct Cal.com bookings too, so only the event log records it here.
		Models.Track("cal_booking_created", "info", map[string]interface{}{
			"cal_uid": event.Payload.UID, "start": event.Payload.StartTime,
		})
	case "BOOKING_RESCHEDULED":
		booking, err := Models.GetBookingByCalUID(event.Payload.UID)
		if err == nil {
			if date, label, ok := splitCalTimestamp(event.Payload.StartTime); ok {
				Models.DB.Model(&Models.Booking{}).Where("id = ?", booking.ID).
					Updates(map[string]interface{}{"date_iso": date, "time_label": label})
			}
		}
		Models.Track("cal_booking_rescheduled", "info", map[string]interface{}{"cal_uid": event.Payload.UID})
	case "BOOKING_CANCELLED":
		booking, err := Models.GetBookingByCalUID(event.Payload.UID)
		if err == nil {
			Models.DB.Model(&Models.Booking{}).Where("id = ?", booking.ID).
				Update("status", Models.BookingStatusCancelled)
			// Reopen the fallback slot the booking had consumed.
			Models.DB.Model(&Models.TherapistSlot{}).
				Where("therapist_id = ? AND date_iso = ? AND time_label = ?",
					booking.TherapistID, booking.DateISO, booking.TimeLabel).
				Update("taken", false)
		}
		Models.Track("cal_booking_cancelled", "info", map[string]interface{}{"cal_uid": event.Payload.UID})
	default:
		Logger.Info("webhook.cal", "ignoring unknown trigger event", map[string]interface{}{"trigger": event.TriggerEvent})
	}

	SSE.Broadcaster.Broadcast(SSE.EventBookingCreated)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// TwilioWebhook ingests inbound SMS and delivery status callbacks. The
// x-twilio-signature header is validated against the form-encoded body via
// Twilio's own helper.
func TwilioWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to parse form"})
		return
	}
	params := map[string]string{}
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	webhookURL := fmt.Sprintf("%s%s", os.Getenv("PUBLIC_BASE_URL"), c.Request.URL.Path)
	if !SMS.ValidateWebhookSignature(webhookURL, params, c.GetHeader("x-twilio-signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if status := params["MessageStatus"]; status != "" {
		level := "info"
		if status == "failed" || status == "undelivered" {
			level = "error"
		}
		Models.Track("sms_status", level, map[string]interface{}{
			"sid": params["MessageSid"], "status": status, "to": params["To"],
		})
		c.String(http.StatusOK, "")
		return
	}

	// Inbound message: record it for the admin queue.
	Models.Track("sms_inbound", "info", map[string]interface{}{
		"from": params["From"], "body": params["Body"],
	})
	c.String(http.StatusOK, "")
}

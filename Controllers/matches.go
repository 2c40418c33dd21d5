package Controllers

import (
	"net/http"
	"time"

	"KaufmannHealth/Logger"
	"KaufmannHealth/Matching"
	"KaufmannHealth/Models"
	"KaufmannHealth/SSE"

	"github.com/gin-gonic/gin"
)

// FetchMatchesBySecureUUID serves the unauthenticated matches link. The UUID
// is the only credential, so a miss is a plain 404.
func FetchMatchesBySecureUUID(c *gin.Context) {
	secureUUID := c.Param("uuid")
	matches, err := Models.GetMatchesBySecureUUID(secureUUID)
	if err != nil || len(matches) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	type matchView struct {
		ID        uint                     `json:"id"`
		Status    string                   `json:"status"`
		Quality   string                   `json:"quality"`
		Therapist *Models.TherapistProfile `json:"therapist,omitempty"`
	}

	views := make([]matchView, 0, len(matches))
	for index := range matches {
		view := matchView{
			ID:      matches[index].ID,
			Status:  matches[index].Status,
			Quality: matches[index].Quality,
		}
		if matches[index].TherapistID != nil {
			var profile Models.TherapistProfile
			if err := Models.DB.First(&profile, *matches[index].TherapistID).Error; err == nil {
				view.Therapist = &profile
			}
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"data": views, "error": nil})
}

// RespondToMatch lets the patient accept or decline a proposed therapist via
// the secure link.
func RespondToMatch(c *gin.Context) {
	secureUUID := c.Param("uuid")
	var input struct {
		MatchID uint   `json:"match_id" binding:"required"`
		Action  string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var status string
	switch input.Action {
	case "accept":
		status = Models.MatchStatusAccepted
	case "decline":
		status = Models.MatchStatusDeclined
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown action"})
		return
	}

	result := Models.DB.Model(&Models.Match{}).
		Where("id = ? AND secure_uuid = ? AND status = ?", input.MatchID, secureUUID, Models.MatchStatusProposed).
		Update("status", status)
	if result.Error != nil {
		Logger.LogError("api.matches", result.Error, map[string]interface{}{"match_id": input.MatchID})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	Models.Track("match_"+status, "info", map[string]interface{}{"match_id": input.MatchID})
	SSE.Broadcaster.Broadcast(SSE.EventMatchesUpdated)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": status}, "error": nil})
}

// RebuildMatches is the admin/cron recovery endpoint after therapist roster
// changes or earlier matching bugs.
func RebuildMatches(c *gin.Context) {
	var input struct {
		PatientID  uint `json:"patient_id" binding:"required"`
		ClearEmpty bool `json:"clear_empty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := Matching.RebuildMatchesForPatient(input.PatientID, input.ClearEmpty)
	if err != nil {
		Logger.LogError("api.matches.rebuild", err, map[string]interface{}{"patient_id": input.PatientID})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		return
	}

	SSE.Broadcaster.Broadcast(SSE.EventMatchesUpdated)
	c.JSON(http.StatusOK, gin.H{"data": result, "error": nil})
}

// MarkReturningConcierge stamps returning_concierge_at so older matches stop
// counting as active and the patient can be matched fresh.
func MarkReturningConcierge(c *gin.Context) {
	var input struct {
		PatientID uint `json:"patient_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	if err := Models.DB.Model(&Models.Person{}).Where("id = ?", input.PatientID).
		Update("returning_concierge_at", &now).Error; err != nil {
		Logger.LogError("api.matches", err, map[string]interface{}{"patient_id": input.PatientID})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"returning_concierge_at": now}, "error": nil})
}

package Controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"KaufmannHealth/Logger"
	"KaufmannHealth/Matching"
	"KaufmannHealth/Models"
	"KaufmannHealth/SSE"

	"github.com/gin-gonic/gin"
)

// ConfirmEmail handles the confirmation link. All four query parameters must
// be present; a link missing any of them was never a valid link and gets the
// broken-link response instead of a silent partial confirmation.
func ConfirmEmail(c *gin.Context) {
	token := c.Query("token")
	id := c.Query("id")
	redirect := c.Query("redirect")
	formSessionID := c.Query("fs")

	if token == "" || id == "" || redirect == "" || formSessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Broken confirmation link", "code": "INVALID_LINK"})
		return
	}
	// Only relative paths may be reflected into the redirect; an absolute or
	// protocol-relative target would turn the link into an open redirect.
	if !strings.HasPrefix(redirect, "/") || strings.HasPrefix(redirect, "//") || strings.Contains(redirect, "\\") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Broken confirmation link", "code": "INVALID_LINK"})
		return
	}

	personID, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Broken confirmation link", "code": "INVALID_LINK"})
		return
	}

	person, err := Models.GetPersonByID(uint(personID))
	if err != nil || person.ConfirmationToken == "" || person.ConfirmationToken != token {
		// 404 either way so the link cannot be used to probe for lead ids.
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	if person.Status == Models.PersonStatusPreConfirmation || person.Status == Models.PersonStatusNew {
		if err := Models.DB.Model(&Models.Person{}).Where("id = ?", person.ID).
			Update("status", Models.PersonStatusEmailConfirmed).Error; err != nil {
			Logger.LogError("api.confirm", err, map[string]interface{}{"person_id": person.ID})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
			return
		}
		person.Status = Models.PersonStatusEmailConfirmed

		if person.Type == Models.PersonTypePatient &&
			person.CampaignVariant != "concierge" &&
			!Matching.HasRecentMatches(person.ID, Matching.RecentMatchWindow) {
			personID := person.ID
			variant := person.CampaignVariant
			metadata := person.Metadata
			go func() {
				if _, err := Matching.CreateInstantMatchesForPatient(personID, variant, metadata); err != nil {
					Logger.LogError("api.confirm", err, map[string]interface{}{"step": "instant_matching", "person_id": personID})
				}
			}()
		}

		Models.Track("email_confirmed", "info", map[string]interface{}{"person_id": person.ID})
		SSE.Broadcaster.Broadcast(SSE.EventLeadConfirmed)
	}

	target := fmt.Sprintf("%s?fs=%s", redirect, url.QueryEscape(formSessionID))
	c.Redirect(http.StatusFound, target)
}

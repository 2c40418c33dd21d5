package Controllers

import (
	"fmt"
	"net/http"

	"KaufmannHealth/Logger"
	"KaufmannHealth/Models"
	"KaufmannHealth/SMS"
	"KaufmannHealth/Utils/Phone"

	"github.com/gin-gonic/gin"
)

// sendSMS is swapped out in tests.
var sendSMS = SMS.Send

func SendVerificationCode(c *gin.Context) {
	var input struct {
		PhoneNumber string `json:"phone_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	normalized := Phone.NormalizePhoneNumber(input.PhoneNumber)
	if normalized == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid phone number"})
		return
	}

	person, err := Models.GetPersonByPhone(normalized)
	if err != nil {
		// Create a bare anonymous row so the code has somewhere to live.
		person = Models.Person{
			Phone:  &normalized,
			Type:   Models.PersonTypePatient,
			Status: Models.PersonStatusAnonymous,
		}
		if err := Models.DB.Create(&person).Error; err != nil {
			Logger.LogError("api.verification", err, map[string]interface{}{"step": "create"})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
			return
		}
	}

	person.GenerateSMSCode(6)
	if err := Models.DB.Model(&Models.Person{}).Where("id = ?", person.ID).
		Update("sms_code", person.SMSCode).Error; err != nil {
		Logger.LogError("api.verification", err, map[string]interface{}{"step": "store_code", "person_id": person.ID})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		return
	}

	result := sendSMS(normalized, fmt.Sprintf("Dein Bestätigungscode: %s", person.SMSCode))
	if !result.Sent {
		Logger.LogError("api.verification", fmt.Errorf("sms not sent: %s", result.Reason),
			map[string]interface{}{"person_id": person.ID})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": person.ID}, "error": nil})
}

func CheckVerificationCode(c *gin.Context) {
	var input struct {
		PhoneNumber string `json:"phone_number" binding:"required"`
		Code        string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	normalized := Phone.NormalizePhoneNumber(input.PhoneNumber)
	if normalized == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid phone number"})
		return
	}

	person, err := Models.GetPersonByPhone(normalized)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	if person.SMSCode == "" || person.SMSCode != input.Code {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Incorrect code"})
		return
	}

	if err := Models.DB.Model(&Models.Person{}).Where("id = ?", person.ID).
		Updates(map[string]interface{}{"phone_verified": true, "sms_code": ""}).Error; err != nil {
		Logger.LogError("api.verification", err, map[string]interface{}{"person_id": person.ID})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unexpected error"})
		return
	}

	c.SetCookie(PhoneVerifiedCookieName, "1", 3600*24*30, "/", "", false, true)
	Models.Track("phone_verified", "info", map[string]interface{}{"person_id": person.ID})
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"verified": true}, "error": nil})
}

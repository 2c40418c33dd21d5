package Controllers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"time"

	"KaufmannHealth/Email"
	"KaufmannHealth/Logger"
	"KaufmannHealth/Matching"
	"KaufmannHealth/Models"
	"KaufmannHealth/RateLimit"
	"KaufmannHealth/SSE"
	"KaufmannHealth/Utils/Phone"

	"github.com/gin-gonic/gin"
)

// sendEmail is swapped out in tests to assert that broken confirmation links
// are never dispatched.
var sendEmail = Email.Send

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const PhoneVerifiedCookieName = "kh_phone_verified"

type LeadInput struct {
	Name                       string                 `json:"name"`
	Email                      string                 `json:"email"`
	PhoneNumber                string                 `json:"phone_number"`
	Type                       string                 `json:"type"`
	ContactMethod              string                 `json:"contact_method"`
	ConsentShareWithTherapists bool                   `json:"consent_share_with_therapists"`
	PrivacyVersion             string                 `json:"privacy_version"`
	CampaignSource             string                 `json:"campaign_source"`
	CampaignVariant            string                 `json:"campaign_variant"`
	SessionPreference          string                 `json:"session_preference"`
	City                       string                 `json:"city"`
	GenderPreference           string                 `json:"gender_preference"`
	Specializations            []string               `json:"specializations"`
	Modalities                 []string               `json:"modalities"`
	Budget                     float64                `json:"budget"`
	FormSessionID              string                 `json:"form_session_id"`
	AnonymousID                uint                   `json:"anonymous_id"`
	Metadata                   map[string]interface{} `json:"metadata"`
}

func CreateLead(c *gin.Context) {
	var input LeadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"data": nil, "error": err.Error()})
		return
	}
	if input.Type == "" {
		input.Type = Models.PersonTypePatient
	}

	if input.Email == "" && input.PhoneNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"data": nil, "error": "Either email or phone_number is required"})
		return
	}
	if input.Email != "" && !emailPattern.MatchString(input.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"data": nil, "error": "Invalid email format"})
		return
	}
	normalizedPhone := ""
	if input.PhoneNumber != "" {
		normalizedPhone = Phone.NormalizePhoneNumber(input.PhoneNumber)
		if normalizedPhone == "" {
			c.JSON(http.StatusBadRequest, gin.H{"data": nil, "error": "Invalid phone number"})
			return
		}
	}
	if !input.ConsentShareWithTherapists || input.PrivacyVersion == "" {
		c.JSON(http.StatusBadRequest, gin.H{"data": nil, "error": "Consent and privacy_version are required"})
		return
	}

	allowed, err := RateLimit.Allow(input.Type, c.ClientIP())
	if err != nil {
		Logger.LogError("api.leads", err, map[string]interface{}{"step": "rate_limit"})
		c.JSON(http.StatusInternalServerError, gin.H{"data": nil, "error": "Unexpected error"})
		return
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"data": nil, "error": "Too many requests", "code": "RATE_LIMIT_EXCEEDED"})
		return
	}

	metadata := buildLeadMetadata(&input, c.ClientIP())
	phoneVerified := isPhonePreVerified(c, normalizedPhone)

	// Anonymous questionnaire flows create a contact-less person first; a
	// later submission with contact info upgrades that row in place.
	if input.AnonymousID != 0 {
		if upgraded := upgradeAnonymousLead(c, &input, normalizedPhone, metadata, phoneVerified); upgraded {
			return
		}
	}

	person := Models.Person{
		Name:            input.Name,
		Type:            input.Type,
		Metadata:        metadata,
		PrivacyVersion:  input.PrivacyVersion,
		ContactMethod:   input.ContactMethod,
		CampaignSource:  input.CampaignSource,
		CampaignVariant: input.CampaignVariant,
		PhoneVerified:   phoneVerified,
	}
	now := time.Now()
	person.ConsentShareWithTherapistsAt = &now
	if input.Email != "" {
		person.Email = &input.Email
	}
	if normalizedPhone != "" {
		person.Phone = &normalizedPhone
	}
	if phoneVerified {
		person.Status = Models.PersonStatusNew
	} else {
		person.Status = Models.PersonStatusPreConfirmation
	}
	if err := person.GenerateConfirmationToken(); err != nil {
		Logger.LogError("api.leads", err, map[string]interface{}{"step": "token"})
		c.JSON(http.StatusInternalServerError, gin.H{"data": nil, "error": "Unexpected error"})
		return
	}

	if err := Models.DB.Create(&person).Error; err != nil {
		if Models.IsSlotTakenError(err) {
			handleDuplicateLead(c, &input, normalizedPhone)
			return
		}
		Logger.LogError("api.leads", err, map[string]interface{}{"step": "insert"})
		c.JSON(http.StatusInternalServerError, gin.H{"data": nil, "error": "Unexpected error"})
		return
	}

	if input.Type == Models.PersonTypeTherapist {
		createTherapistRecords(&person, &input, c.ClientIP())
	}

	finishLeadCreation(c, &person, &input)
}

// upgradeAnonymousLead merges the submission into the existing anonymous row.
// Returns false when the referenced person is not actually anonymous, in
// which case the normal insert path runs.
func upgradeAnonymousLead(c *gin.Context, input *LeadInput, normalizedPhone string, metadata map[string]interface{}, phoneVerified bool) bool {
	person, err := Models.GetPersonByID(input.AnonymousID)
	if err != nil || person.Status != Models.PersonStatusAnonymous {
		return false
	}

	person.MergeMetadata(metadata)
	person.Name = input.Name
	person.PrivacyVersion = input.PrivacyVersion
	person.ContactMethod = input.ContactMethod
	person.CampaignSource = input.CampaignSource
	person.CampaignVariant = input.CampaignVariant
	now := time.Now()
	person.ConsentShareWithTherapistsAt = &now
	if input.Email != "" {
		person.Email = &input.Email
	}
	if normalizedPhone != "" {
		person.Phone = &normalizedPhone
	}
	if phoneVerified {
		person.Status = Models.PersonStatusNew
		person.PhoneVerified = true
	} else {
		person.Status = Models.PersonStatusPreConfirmation
	}
	if person.ConfirmationToken == "" {
		if err := person.GenerateConfirmationToken(); err != nil {
			Logger.LogError("api.leads", err, map[string]interface{}{"step": "token"})
			c.JSON(http.StatusInternalServerError, gin.H{"data": nil, "error": "Unexpected error"})
			return true
		}
	}

	if err := Models.DB.Save(&person).Error; err != nil {
		if Models.IsSlotTakenError(err) {
			handleDuplicateLead(c, input, normalizedPhone)
			return true
		}
		Logger.LogError("api.leads", err, map[string]interface{}{"step": "upgrade", "person_id": person.ID})
		c.JSON(http.StatusInternalServerError, gin.H{"data": nil, "error": "Unexpected error"})
		return true
	}

	finishLeadCreation(c, &person, input)
	return true
}

// handleDuplicateLead maps a unique violation on email/phone to either an
// idempotent success (already confirmed) or a confirmation re-send.
func handleDuplicateLead(c *gin.Context, input *LeadInput, normalizedPhone string) {
	var existing Models.Person
	var err error
	if input.Email != "" {
		existing, err = Models.GetPersonByEmail(input.Email)
	}
	if err != nil || existing.ID == 0 {
		if normalizedPhone != "" {
			existing, err = Models.GetPersonByPhone(normalizedPhone)
		}
	}
	if err != nil || existing.ID == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"data": nil, "error": "Unexpected error"})
		return
	}

	if existing.IsConfirmed() {
		c.JSON(http.StatusOK, gin.H{
			"data":  gin.H{"id": existing.ID, "requiresConfirmation": false},
			"error": nil,
		})
		return
	}

	go dispatchConfirmationEmail(&existing, "/fragebogen/ergebnis", input.FormSessionID)
	c.JSON(http.StatusOK, gin.H{
		"data":  gin.H{"id": existing.ID, "requiresConfirmation": true},
		"error": nil,
	})
}

func finishLeadCreation(c *gin.Context, person *Models.Person, input *LeadInput) {
	requiresConfirmation := person.Status == Models.PersonStatusPreConfirmation

	if requiresConfirmation {
		go dispatchConfirmationEmail(person, "/fragebogen/ergebnis", input.FormSessionID)
	}

	// Matching fires for confirmed patients unless the campaign variant asks
	// for manual (concierge) matching.
	if person.Type == Models.PersonTypePatient &&
		person.Status == Models.PersonStatusNew &&
		input.CampaignVariant != "concierge" {
		personID := person.ID
		variant := input.CampaignVariant
		metadata := person.Metadata
		go func() {
			if _, err := Matching.CreateInstantMatchesForPatient(personID, variant, metadata); err != nil {
				Logger.LogError("api.leads", err, map[string]interface{}{"step": "instant_matching", "person_id": personID})
			}
		}()
	}

	Models.Track("lead_created", "info", map[string]interface{}{
		"person_id": person.ID, "type": person.Type, "status": person.Status,
		"campaign_source": person.CampaignSource, "campaign_variant": person.CampaignVariant,
	})
	SSE.Broadcaster.Broadcast(SSE.EventLeadCreated)

	c.JSON(http.StatusOK, gin.H{
		"data":  gin.H{"id": person.ID, "requiresConfirmation": requiresConfirmation},
		"error": nil,
	})
}

// dispatchConfirmationEmail refuses to send when any link parameter would be
// missing: a broken link in an inbox is worse than no email.
func dispatchConfirmationEmail(person *Models.Person, redirect string, formSessionID string) Email.Result {
	if person.ID == 0 || person.ConfirmationToken == "" || person.Email == nil || formSessionID == "" {
		Logger.LogError("email.confirmation", fmt.Errorf("refusing to send incomplete confirmation link"),
			map[string]interface{}{"person_id": person.ID, "has_token": person.ConfirmationToken != "", "fs": formSessionID})
		return Email.Result{Sent: false, Reason: "incomplete_link"}
	}

	base := os.Getenv("PUBLIC_BASE_URL")
	link := fmt.Sprintf("%s/api/public/leads/confirm?token=%s&id=%d&redirect=%s&fs=%s",
		base, person.ConfirmationToken, person.ID, redirect, formSessionID)
	html := fmt.Sprintf("<p>Bitte bestätige deine E-Mail-Adresse:</p><p><a href=%q>E-Mail bestätigen</a></p>", link)

	result := sendEmail(context.Background(), *person.Email, "Bitte bestätige deine E-Mail-Adresse", html)
	if !result.Sent {
		Logger.LogError("email.confirmation", fmt.Errorf("confirmation email not sent: %s", result.Reason),
			map[string]interface{}{"person_id": person.ID})
		return result
	}
	now := time.Now()
	Models.DB.Model(&Models.Person{}).Where("id = ?", person.ID).Update("confirmation_sent_at", &now)
	return result
}

func buildLeadMetadata(input *LeadInput, ip string) map[string]interface{} {
	metadata := map[string]interface{}{}
	for key, value := range input.Metadata {
		metadata[key] = value
	}
	if input.City != "" {
		metadata["city"] = input.City
	}
	if input.SessionPreference != "" {
		metadata["session_preference"] = input.SessionPreference
	}
	if input.GenderPreference != "" {
		metadata["gender_preference"] = input.GenderPreference
	}
	if len(input.Specializations) > 0 {
		metadata["specializations"] = input.Specializations
	}
	if len(input.Modalities) > 0 {
		metadata["modalities"] = input.Modalities
	}
	if input.Budget > 0 {
		metadata["budget"] = input.Budget
	}
	if input.FormSessionID != "" {
		metadata["form_session_id"] = input.FormSessionID
	}
	metadata["ip_hash"] = RateLimit.HashIP(ip)
	return metadata
}

// isPhonePreVerified checks the cookie set by the SMS verification flow and
// confirms the verified number matches the submitted one.
func isPhonePreVerified(c *gin.Context, normalizedPhone string) bool {
	if normalizedPhone == "" {
		return false
	}
	cookie, err := c.Cookie(PhoneVerifiedCookieName)
	if err != nil || cookie == "" {
		return false
	}
	person, err := Models.GetPersonByPhone(normalizedPhone)
	if err != nil {
		return false
	}
	return person.PhoneVerified
}

func createTherapistRecords(person *Models.Person, input *LeadInput, ip string) {
	profile := Models.TherapistProfile{
		PersonID:     person.ID,
		Name:         input.Name,
		City:         input.City,
		Status:       Models.TherapistStatusPending,
		AcceptingNew: false,
	}
	if input.SessionPreference != "" {
		profile.SessionFormats = []string{input.SessionPreference}
	}
	profile.Schwerpunkte = input.Specializations
	profile.Modalities = input.Modalities
	if err := Models.DB.Create(&profile).Error; err != nil {
		Logger.LogError("api.leads", err, map[string]interface{}{"step": "therapist_profile", "person_id": person.ID})
	}

	contract := Models.TherapistContract{PersonID: person.ID, IPHash: RateLimit.HashIP(ip)}
	if err := Models.DB.Create(&contract).Error; err != nil {
		Logger.LogError("api.leads", err, map[string]interface{}{"step": "therapist_contract", "person_id": person.ID})
	}
}

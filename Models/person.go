package Models

import (
	"errors"
	mathrand "math/rand"
	"time"

	"KaufmannHealth/Utils/Token"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PersonStatusAnonymous       = "anonymous"
	PersonStatusPreConfirmation = "pre_confirmation"
	PersonStatusNew             = "new"
	PersonStatusEmailConfirmed  = "email_confirmed"
	PersonStatusMatched         = "matched"
	PersonStatusConverted       = "converted"
	PersonStatusRejected        = "rejected"
)

const (
	PersonTypePatient   = "patient"
	PersonTypeTherapist = "therapist"
)

type Person struct {
	gorm.Model
	Name                         string            `json:"name"`
	Email                        *string           `json:"email" gorm:"uniqueIndex"`
	Phone                        *string           `json:"phone_number" gorm:"uniqueIndex"`
	Type                         string            `json:"type" gorm:"index"`
	Status                       string            `json:"status" gorm:"index"`
	Metadata                     datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	ConsentShareWithTherapistsAt *time.Time        `json:"consent_share_with_therapists_at"`
	PrivacyVersion               string            `json:"privacy_version"`
	ContactMethod                string            `json:"contact_method"`
	CampaignSource               string            `json:"campaign_source"`
	CampaignVariant              string            `json:"campaign_variant"`
	ReturningConciergeAt         *time.Time        `json:"returning_concierge_at"`
	ConfirmationToken            string            `json:"-"`
	ConfirmationSentAt           *time.Time        `json:"-"`
	SMSCode                      string            `json:"-"`
	PhoneVerified                bool              `json:"phone_verified"`
}

// IsConfirmed reports whether the person already completed email confirmation,
// i.e. a duplicate submission can be answered as idempotent success.
func (person *Person) IsConfirmed() bool {
	switch person.Status {
	case PersonStatusEmailConfirmed, PersonStatusMatched, PersonStatusConverted, PersonStatusNew:
		return true
	}
	return false
}

func (person *Person) GenerateConfirmationToken() error {
	token, err := Token.GenerateOpaqueToken()
	if err != nil {
		return err
	}
	person.ConfirmationToken = token
	return nil
}

func (person *Person) GenerateSMSCode(count int) {
	var possibleCharacters = []rune("1234567890")

	code := make([]rune, count)
	for index := range code {
		code[index] = possibleCharacters[mathrand.Intn(len(possibleCharacters))]
	}
	person.SMSCode = string(code)
}

// MergeMetadata overlays the submitted metadata onto whatever the anonymous
// questionnaire flow already stored. Submitted keys win.
func (person *Person) MergeMetadata(incoming map[string]interface{}) {
	if person.Metadata == nil {
		person.Metadata = datatypes.JSONMap{}
	}
	for key, value := range incoming {
		person.Metadata[key] = value
	}
}

func GetPersonByID(id uint) (Person, error) {
	var person Person
	if err := DB.First(&person, id).Error; err != nil {
		return person, errors.New("Person not found")
	}
	return person, nil
}

func GetPersonByEmail(email string) (Person, error) {
	var person Person
	if err := DB.Where("email = ?", email).First(&person).Error; err != nil {
		return person, err
	}
	return person, nil
}

func GetPersonByPhone(phone string) (Person, error) {
	var person Person
	if err := DB.Where("phone = ?", phone).First(&person).Error; err != nil {
		return person, err
	}
	return person, nil
}

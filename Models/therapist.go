package Models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TherapistStatusPending  = "pending_verification"
	TherapistStatusVerified = "verified"
	TherapistStatusRejected = "rejected"
)

type TherapistProfile struct {
	gorm.Model
	PersonID        uint                        `json:"person_id" gorm:"uniqueIndex"`
	Name            string                      `json:"name"`
	City            string                      `json:"city" gorm:"index"`
	Gender          string                      `json:"gender"`
	SessionFormats  datatypes.JSONSlice[string] `json:"session_formats" gorm:"type:jsonb"`
	Schwerpunkte    datatypes.JSONSlice[string] `json:"schwerpunkte" gorm:"type:jsonb"`
	Modalities      datatypes.JSONSlice[string] `json:"modalities" gorm:"type:jsonb"`
	SessionPrice    float64                     `json:"session_price"`
	Status          string                      `json:"status" gorm:"index"`
	AcceptingNew    bool                        `json:"accepting_new" gorm:"index"`
	CalUsername     string                      `json:"cal_username"`
	CalEventTypes   datatypes.JSONMap           `json:"cal_event_types" gorm:"type:jsonb"`
	DocumentKeys    datatypes.JSONSlice[string] `json:"document_keys" gorm:"type:jsonb"`
	PhotoURL        string                      `json:"photo_url"`
	DocumentsSentAt *time.Time                  `json:"documents_sent_at"`
}

// TherapistSlot is the read-only database fallback for availability when the
// Cal.com API is unreachable. Rows are synced out of band.
type TherapistSlot struct {
	gorm.Model
	TherapistID uint   `json:"therapist_id" gorm:"index"`
	Kind        string `json:"kind" gorm:"index"`
	DateISO     string `json:"date_iso"`
	TimeLabel   string `json:"time_label"`
	Taken       bool   `json:"taken"`
}

// TherapistContract records a salted IP hash per therapist submission and is
// what the therapist-side rate limiter counts against.
type TherapistContract struct {
	gorm.Model
	PersonID uint   `json:"person_id"`
	IPHash   string `json:"-" gorm:"index"`
}

func (profile *TherapistProfile) HasOpenSlots() (bool, error) {
	var count int64
	err := DB.Model(&TherapistSlot{}).
		Where("therapist_id = ? AND taken = ?", profile.ID, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

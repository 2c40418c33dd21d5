package Models

import (
	"time"

	"gorm.io/gorm"
)

const (
	MatchStatusProposed           = "proposed"
	MatchStatusAccepted           = "accepted"
	MatchStatusDeclined           = "declined"
	MatchStatusTherapistContacted = "therapist_contacted"
	MatchStatusTherapistResponded = "therapist_responded"
	MatchStatusSessionBooked      = "session_booked"
	MatchStatusCompleted          = "completed"
	MatchStatusFailed             = "failed"
)

const (
	MatchQualityExact   = "exact"
	MatchQualityPartial = "partial"
	MatchQualityNone    = "none"
)

// ActiveMatchStatuses is the status set that counts as "the patient is being
// taken care of" for deprioritization and active-match checks.
var ActiveMatchStatuses = []string{
	MatchStatusAccepted,
	MatchStatusTherapistContacted,
	MatchStatusTherapistResponded,
	MatchStatusSessionBooked,
	MatchStatusCompleted,
}

type Match struct {
	gorm.Model
	PatientID   uint   `json:"patient_id" gorm:"index"`
	TherapistID *uint  `json:"therapist_id" gorm:"index"`
	Status      string `json:"status" gorm:"index"`
	Quality     string `json:"quality"`
	Score       int    `json:"score"`
	SecureUUID  string `json:"secure_uuid" gorm:"index"`
}

// IsStaleFor reports whether the match predates the patient's latest
// questionnaire re-submission. Stale matches never block fresh matching.
func (match *Match) IsStaleFor(patient *Person) bool {
	if patient.ReturningConciergeAt == nil {
		return false
	}
	return patient.ReturningConciergeAt.After(match.CreatedAt)
}

func (match *Match) IsActive() bool {
	for _, status := range ActiveMatchStatuses {
		if match.Status == status {
			return true
		}
	}
	return false
}

func GetMatchesByPatientID(patientID uint) ([]Match, error) {
	var matches []Match
	if err := DB.Where("patient_id = ?", patientID).Find(&matches).Error; err != nil {
		return nil, err
	}
	return matches, nil
}

func GetMatchesBySecureUUID(secureUUID string) ([]Match, error) {
	var matches []Match
	if err := DB.Where("secure_uuid = ?", secureUUID).Find(&matches).Error; err != nil {
		return nil, err
	}
	return matches, nil
}

// HasActiveMatch applies the staleness rule: only non-stale matches in an
// active status keep a patient out of re-matching.
func HasActiveMatch(patient *Person) (bool, error) {
	matches, err := GetMatchesByPatientID(patient.ID)
	if err != nil {
		return false, err
	}
	for index := range matches {
		if matches[index].IsStaleFor(patient) {
			continue
		}
		if matches[index].IsActive() {
			return true, nil
		}
	}
	return false, nil
}

// DeleteEmptyMatches clears placeholder rows (no therapist selected) before a
// rebuild re-runs the selection logic.
func DeleteEmptyMatches(patientID uint) error {
	return DB.Unscoped().
		Where("patient_id = ? AND therapist_id IS NULL", patientID).
		Delete(&Match{}).Error
}

func CountMatchesCreatedSince(patientID uint, since time.Time) (int64, error) {
	var count int64
	err := DB.Model(&Match{}).
		Where("patient_id = ? AND created_at > ?", patientID, since).
		Count(&count).Error
	return count, err
}

package Models

import (
	"time"

	"gorm.io/gorm"
)

// LeadSubmission is the patient-side rate-limit ledger: one row per intake
// attempt, keyed by salted IP hash. Kept separate from people so the window
// query stays on an indexed column.
type LeadSubmission struct {
	gorm.Model
	LeadType string `json:"lead_type" gorm:"index:idx_lead_ip_window"`
	IPHash   string `json:"-" gorm:"index:idx_lead_ip_window"`
}

func CountLeadSubmissionsSince(leadType string, ipHash string, since time.Time) (int64, error) {
	var count int64
	err := DB.Model(&LeadSubmission{}).
		Where("lead_type = ? AND ip_hash = ? AND created_at > ?", leadType, ipHash, since).
		Count(&count).Error
	return count, err
}

func CountTherapistContractsSince(ipHash string, since time.Time) (int64, error) {
	var count int64
	err := DB.Model(&TherapistContract{}).
		Where("ip_hash = ? AND created_at > ?", ipHash, since).
		Count(&count).Error
	return count, err
}

package Models

import (
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Event is the append-only analytics/audit log. Error-level rows feed the
// admin system-error digest.
type Event struct {
	gorm.Model
	Type       string            `json:"type" gorm:"index"`
	Level      string            `json:"level" gorm:"index"`
	Properties datatypes.JSONMap `json:"properties" gorm:"type:jsonb"`
}

// Track inserts an analytics event. Failures are logged and swallowed: a lost
// event never fails the request that produced it.
func Track(eventType string, level string, properties map[string]interface{}) {
	if DB == nil {
		return
	}
	event := Event{Type: eventType, Level: level, Properties: properties}
	if err := DB.Create(&event).Error; err != nil {
		log.Printf("failed to track event %s: %v", eventType, err)
	}
}

func GetErrorEventsSince(since time.Time, limit int) ([]Event, error) {
	var events []Event
	err := DB.Where("level = ? AND created_at > ?", "error", since).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Notification stages used by the reminder/nudge crons.
const (
	StageConfirmationReminder24h = "confirmation_reminder_24h"
	StageConfirmationReminder72h = "confirmation_reminder_72h"
	StageSelectionEmail          = "selection_email"
	StageSelectionNudge          = "selection_nudge"
	StageDocumentReminder        = "document_reminder"
	StageBlockerSurvey           = "blocker_survey"
)

// NotificationLog is the dedupe ledger for reminder/nudge sends. The unique
// index replaces the old scan-recent-events approach.
type NotificationLog struct {
	gorm.Model
	PersonID uint   `json:"person_id" gorm:"uniqueIndex:idx_notification_once"`
	Stage    string `json:"stage" gorm:"uniqueIndex:idx_notification_once"`
	Channel  string `json:"channel"`
}

// MarkNotified claims the (person, stage) slot. Returns false when another
// send already claimed it, so callers skip the duplicate.
func MarkNotified(personID uint, stage string, channel string) (bool, error) {
	entry := NotificationLog{PersonID: personID, Stage: stage, Channel: channel}
	result := DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseNotification gives a claimed slot back after a failed send so the
// next run can retry it.
func ReleaseNotification(personID uint, stage string) {
	err := DB.Unscoped().
		Where("person_id = ? AND stage = ?", personID, stage).
		Delete(&NotificationLog{}).Error
	if err != nil {
		log.Printf("failed to release notification %d/%s: %v", personID, stage, err)
	}
}

func WasNotified(personID uint, stage string) (bool, error) {
	var count int64
	err := DB.Model(&NotificationLog{}).
		Where("person_id = ? AND stage = ?", personID, stage).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

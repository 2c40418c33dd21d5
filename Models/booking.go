package Models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// The slot index skips cancelled rows so a cancellation frees the slot for
// rebooking.
type Booking struct {
	gorm.Model
	PatientID         uint       `json:"patient_id" gorm:"index"`
	TherapistID       uint       `json:"therapist_id" gorm:"index:idx_booking_slot,unique,where:status <> 'cancelled'"`
	DateISO           string     `json:"date_iso" gorm:"index:idx_booking_slot,unique"`
	TimeLabel         string     `json:"time_label" gorm:"index:idx_booking_slot,unique"`
	Format            string     `json:"format" gorm:"index:idx_booking_slot,unique"`
	Status            string     `json:"status" gorm:"index"`
	SecureUUID        string     `json:"secure_uuid" gorm:"index"`
	CalUID            string     `json:"cal_uid" gorm:"index"`
	TherapistViewedAt *time.Time `json:"therapist_viewed_at"`
}

// IsSlotTakenError reports whether a booking insert hit the unique slot index,
// which callers surface as a 409 SLOT_TAKEN conflict.
func IsSlotTakenError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := err.Error()
	return strings.Contains(message, "duplicate key") || strings.Contains(message, "23505")
}

// HasActiveBooking is the strongest deprioritization signal for the admin
// lead queue: a cancelled booking does not count.
func HasActiveBooking(patientID uint) (bool, error) {
	var count int64
	err := DB.Model(&Booking{}).
		Where("patient_id = ? AND status <> ?", patientID, BookingStatusCancelled).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func GetBookingByCalUID(calUID string) (Booking, error) {
	var booking Booking
	if err := DB.Where("cal_uid = ?", calUID).First(&booking).Error; err != nil {
		return booking, err
	}
	return booking, nil
}

package Controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func calSign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSplitCalTimestamp(t *testing.T) {
	date, label, ok := splitCalTimestamp("2026-03-02T10:00:00Z")
	assert.True(t, ok)
	assert.Equal(t, "2026-03-02", date)
	assert.Equal(t, "10:00", label)

	date, label, ok = splitCalTimestamp("2026-03-02T09:30:00+01:00")
	assert.True(t, ok)
	assert.Equal(t, "2026-03-02", date)
	assert.Equal(t, "09:30", label)

	_, _, ok = splitCalTimestamp("not-a-timestamp")
	assert.False(t, ok)
}

func TestVerifyCalSignature(t *testing.T) {
	body := []byte(`{"triggerEvent":"BOOKING_CREATED"}`)
	secret := "whsec_test"

	assert.True(t, VerifyCalSignature(body, calSign(secret, body), secret))

	// Wrong secret.
	assert.False(t, VerifyCalSignature(body, calSign("other", body), secret))

	// Tampered body.
	assert.False(t, VerifyCalSignature([]byte(`{"triggerEvent":"BOOKING_CANCELLED"}`), calSign(secret, body), secret))

	// Missing signature or secret never passes.
	assert.False(t, VerifyCalSignature(body, "", secret))
	assert.False(t, VerifyCalSignature(body, calSign(secret, body), ""))
}

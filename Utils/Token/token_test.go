package Token

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testSecret = []byte("test-secret")

func tokenWithExpiry(secret []byte, expiry int64) string {
	return fmt.Sprintf("%d.%s", expiry, sign(secret, expiry))
}

func TestVerifySessionToken_Valid(t *testing.T) {
	now := time.Now()
	token := tokenWithExpiry(testSecret, now.Add(time.Hour).Unix())

	valid, reason := verifySessionToken(testSecret, token, now)
	assert.True(t, valid)
	assert.Equal(t, ReasonOK, reason)
}

func TestVerifySessionToken_InvalidFormat(t *testing.T) {
	now := time.Now()
	for _, token := range []string{"", "garbage", "123.", ".sig", "123"} {
		valid, reason := verifySessionToken(testSecret, token, now)
		assert.False(t, valid, "token %q", token)
		assert.Equal(t, ReasonInvalidFormat, reason, "token %q", token)
	}
}

func TestVerifySessionToken_InvalidExpiry(t *testing.T) {
	valid, reason := verifySessionToken(testSecret, "notanumber.somesig", time.Now())
	assert.False(t, valid)
	assert.Equal(t, ReasonInvalidExpiry, reason)
}

func TestVerifySessionToken_Expired(t *testing.T) {
	now := time.Now()
	token := tokenWithExpiry(testSecret, now.Add(-time.Minute).Unix())

	valid, reason := verifySessionToken(testSecret, token, now)
	assert.False(t, valid)
	assert.Equal(t, ReasonExpired, reason)
}

func TestVerifySessionToken_SignatureMismatch(t *testing.T) {
	now := time.Now()
	expiry := now.Add(time.Hour).Unix()

	// Signed with a different secret.
	forged := tokenWithExpiry([]byte("other-secret"), expiry)
	valid, reason := verifySessionToken(testSecret, forged, now)
	assert.False(t, valid)
	assert.Equal(t, ReasonSignatureMismatch, reason)

	// Tampered expiry keeps the old signature.
	good := tokenWithExpiry(testSecret, expiry)
	tampered := fmt.Sprintf("%d.%s", expiry+100, good[len(fmt.Sprintf("%d.", expiry)):])
	valid, reason = verifySessionToken(testSecret, tampered, now)
	assert.False(t, valid)
	assert.Equal(t, ReasonSignatureMismatch, reason)
}

func TestGenerateOpaqueToken(t *testing.T) {
	first, err := GenerateOpaqueToken()
	assert.NoError(t, err)
	second, err := GenerateOpaqueToken()
	assert.NoError(t, err)

	assert.Len(t, first, 48)
	assert.NotEqual(t, first, second)
}

package Token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Verification reason codes surfaced to the admin login UI.
const (
	ReasonOK                = "ok"
	ReasonInvalidFormat     = "invalid_format"
	ReasonInvalidExpiry     = "invalid_expiry"
	ReasonExpired           = "expired"
	ReasonSignatureMismatch = "signature_mismatch"
	ReasonException         = "exception"
)

const SessionLifetime = 24 * time.Hour

func sessionSecret() []byte {
	return []byte(os.Getenv("ADMIN_SESSION_SECRET"))
}

func sign(secret []byte, expiry int64) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "exp=%d", expiry)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// GenerateSessionToken builds an admin session token of the form
// "<unix-expiry>.<base64url HMAC-SHA256 over 'exp=<expiry>'>".
func GenerateSessionToken(lifetime time.Duration) string {
	expiry := time.Now().Add(lifetime).Unix()
	return fmt.Sprintf("%d.%s", expiry, sign(sessionSecret(), expiry))
}

// VerifySessionToken recomputes the signature and compares in constant time.
// The reason code distinguishes malformed tokens from expired or forged ones.
func VerifySessionToken(token string) (valid bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			valid = false
			reason = ReasonException
		}
	}()
	return verifySessionToken(sessionSecret(), token, time.Now())
}

func verifySessionToken(secret []byte, token string, now time.Time) (bool, string) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false, ReasonInvalidFormat
	}
	expiry, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return false, ReasonInvalidExpiry
	}
	if now.Unix() > expiry {
		return false, ReasonExpired
	}
	expected := sign(secret, expiry)
	if !hmac.Equal([]byte(parts[1]), []byte(expected)) {
		return false, ReasonSignatureMismatch
	}
	return true, ReasonOK
}

// GenerateOpaqueToken returns a random hex token for confirmation links.
// Tokens are stored server-side and carry no structure of their own.
func GenerateOpaqueToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package RateLimit

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strconv"
	"time"

	"KaufmannHealth/Models"
)

const DefaultWindow = 60 * time.Second

// HashIP salts and hashes a caller IP so the ledger never stores raw
// addresses.
func HashIP(ip string) string {
	salt := os.Getenv("IP_HASH_SALT")
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])
}

func window() time.Duration {
	if raw := os.Getenv("RATE_LIMIT_WINDOW_SECONDS"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return DefaultWindow
}

// Allow applies the fixed-window check for one lead type and records the
// attempt. The window is approximate: it resets per boundary, not sliding.
func Allow(leadType string, ip string) (bool, error) {
	ipHash := HashIP(ip)
	since := time.Now().Add(-window())

	count, err := Models.CountLeadSubmissionsSince(leadType, ipHash, since)
	if err != nil {
		return false, err
	}
	if leadType == Models.PersonTypeTherapist {
		contracts, err := Models.CountTherapistContractsSince(ipHash, since)
		if err != nil {
			return false, err
		}
		count += contracts
	}
	if count > 0 {
		return false, nil
	}

	entry := Models.LeadSubmission{LeadType: leadType, IPHash: ipHash}
	if err := Models.DB.Create(&entry).Error; err != nil {
		return false, err
	}
	return true, nil
}

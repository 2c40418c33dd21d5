package Matching

import (
	"fmt"
	"os"
	"sort"
	"time"

	"KaufmannHealth/Logger"
	"KaufmannHealth/Models"

	"github.com/google/uuid"
)

const MaxProposedTherapists = 3

// RecentMatchWindow guards against a retried submission re-running the
// matcher right after a successful run.
const RecentMatchWindow = 10 * time.Minute

// Preferences are the patient's questionnaire answers relevant to matching.
type Preferences struct {
	City             string
	SessionFormat    string
	GenderPreference string
	Schwerpunkte     []string
	Modalities       []string
	Budget           float64
}

func PreferencesFromMetadata(metadata map[string]interface{}) Preferences {
	prefs := Preferences{
		City:             stringValue(metadata, "city"),
		SessionFormat:    stringValue(metadata, "session_preference"),
		GenderPreference: stringValue(metadata, "gender_preference"),
		Schwerpunkte:     stringSlice(metadata, "specializations"),
		Modalities:       stringSlice(metadata, "modalities"),
	}
	if raw, ok := metadata["budget"]; ok {
		switch value := raw.(type) {
		case float64:
			prefs.Budget = value
		case int:
			prefs.Budget = float64(value)
		}
	}
	return prefs
}

func stringValue(metadata map[string]interface{}, key string) string {
	if raw, ok := metadata[key]; ok {
		if value, ok := raw.(string); ok {
			return value
		}
	}
	return ""
}

func stringSlice(metadata map[string]interface{}, key string) []string {
	raw, ok := metadata[key]
	if !ok {
		return nil
	}
	switch value := raw.(type) {
	case []string:
		return value
	case []interface{}:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func IntersectionCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	count := 0
	for _, item := range b {
		if _, ok := set[item]; ok {
			count++
		}
	}
	return count
}

// ScoreCandidate evaluates one verified therapist against the preferences.
// eligible=false removes the candidate entirely; exact marks a full-criteria
// match used for result classification.
func ScoreCandidate(prefs Preferences, profile *Models.TherapistProfile) (score int, eligible bool, exact bool) {
	if prefs.GenderPreference != "" && prefs.GenderPreference != "no_preference" &&
		profile.Gender != prefs.GenderPreference {
		return 0, false, false
	}

	cityOK := true
	if prefs.City != "" && prefs.SessionFormat != "online" {
		cityOK = profile.City == prefs.City
		if !cityOK && prefs.SessionFormat == "in_person" {
			return 0, false, false
		}
	}

	formatOK := prefs.SessionFormat == "" || containsString(profile.SessionFormats, prefs.SessionFormat)
	budgetOK := prefs.Budget <= 0 || profile.SessionPrice <= prefs.Budget
	if !budgetOK {
		return 0, false, false
	}

	schwerpunktOverlap := IntersectionCount(prefs.Schwerpunkte, profile.Schwerpunkte)
	modalityOverlap := IntersectionCount(prefs.Modalities, profile.Modalities)
	score = schwerpunktOverlap*2 + modalityOverlap

	exact = cityOK && formatOK && (len(prefs.Schwerpunkte) == 0 || schwerpunktOverlap > 0)
	return score, true, exact
}

func containsString(haystack []string, needle string) bool {
	for _, item := range haystack {
		if item == needle {
			return true
		}
	}
	return false
}

type Result struct {
	MatchesURL string   `json:"matchesUrl"`
	Quality    string   `json:"quality"`
	MatchIDs   []uint   `json:"match_ids"`
	SecureUUID string   `json:"secure_uuid"`
	Therapists []string `json:"therapists"`
}

type candidate struct {
	profile Models.TherapistProfile
	score   int
	exact   bool
}

// CreateInstantMatchesForPatient runs the selection passes and writes one
// proposed match per chosen therapist, all sharing one fresh secure UUID. A
// run with no candidates writes a single placeholder row so the patient still
// has a matches link and admins can see the miss.
func CreateInstantMatchesForPatient(patientID uint, campaignVariant string, metadata map[string]interface{}) (*Result, error) {
	patient, err := Models.GetPersonByID(patientID)
	if err != nil {
		return nil, err
	}

	// A non-stale active match means the patient is already being taken care
	// of; re-running the matcher would orphan it. Matches that predate a
	// questionnaire re-submission are stale and do not block.
	active, err := Models.HasActiveMatch(&patient)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, nil
	}

	prefs := PreferencesFromMetadata(metadata)

	var profiles []Models.TherapistProfile
	if err := Models.DB.Where("status = ? AND accepting_new = ?", Models.TherapistStatusVerified, true).
		Find(&profiles).Error; err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(profiles))
	for index := range profiles {
		score, eligible, exact := ScoreCandidate(prefs, &profiles[index])
		if !eligible {
			continue
		}
		candidates = append(candidates, candidate{profile: profiles[index], score: score, exact: exact})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	// Availability only matters as a tie-breaker between several candidates.
	if len(candidates) > 1 {
		available := make([]candidate, 0, len(candidates))
		for _, cand := range candidates {
			hasSlots, err := cand.profile.HasOpenSlots()
			if err != nil {
				Logger.LogError("matching.availability", err, map[string]interface{}{"therapist_id": cand.profile.ID})
				continue
			}
			if hasSlots {
				available = append(available, cand)
			}
		}
		if len(available) > 0 {
			candidates = available
		}
	}

	if len(candidates) > MaxProposedTherapists {
		candidates = candidates[:MaxProposedTherapists]
	}

	secureUUID := uuid.NewString()
	result := &Result{SecureUUID: secureUUID, MatchesURL: matchesURL(secureUUID)}

	if len(candidates) == 0 {
		result.Quality = Models.MatchQualityNone
		placeholder := Models.Match{
			PatientID:  patient.ID,
			Status:     Models.MatchStatusProposed,
			Quality:    Models.MatchQualityNone,
			SecureUUID: secureUUID,
		}
		if err := Models.DB.Create(&placeholder).Error; err != nil {
			return nil, err
		}
		result.MatchIDs = append(result.MatchIDs, placeholder.ID)
		Models.Track("matches_created", "info", map[string]interface{}{
			"patient_id": patient.ID, "quality": result.Quality, "campaign_variant": campaignVariant,
		})
		return result, nil
	}

	result.Quality = Models.MatchQualityPartial
	for _, cand := range candidates {
		if cand.exact {
			result.Quality = Models.MatchQualityExact
			break
		}
	}

	for _, cand := range candidates {
		therapistID := cand.profile.ID
		match := Models.Match{
			PatientID:   patient.ID,
			TherapistID: &therapistID,
			Status:      Models.MatchStatusProposed,
			Quality:     result.Quality,
			Score:       cand.score,
			SecureUUID:  secureUUID,
		}
		if err := Models.DB.Create(&match).Error; err != nil {
			return nil, err
		}
		result.MatchIDs = append(result.MatchIDs, match.ID)
		result.Therapists = append(result.Therapists, cand.profile.Name)
	}

	if patient.Status == Models.PersonStatusEmailConfirmed {
		Models.DB.Model(&Models.Person{}).Where("id = ?", patient.ID).
			Update("status", Models.PersonStatusMatched)
	}

	Models.Track("matches_created", "info", map[string]interface{}{
		"patient_id": patient.ID, "quality": result.Quality,
		"count": len(result.MatchIDs), "campaign_variant": campaignVariant,
	})
	return result, nil
}

// RebuildMatchesForPatient is the admin recovery path: optionally clears
// placeholder rows, then re-runs the same selection logic.
func RebuildMatchesForPatient(patientID uint, clearEmpty bool) (*Result, error) {
	patient, err := Models.GetPersonByID(patientID)
	if err != nil {
		return nil, err
	}
	if clearEmpty {
		if err := Models.DeleteEmptyMatches(patientID); err != nil {
			return nil, err
		}
	}
	return CreateInstantMatchesForPatient(patientID, patient.CampaignVariant, patient.Metadata)
}

func matchesURL(secureUUID string) string {
	base := os.Getenv("PUBLIC_BASE_URL")
	if base == "" {
		base = "http://localhost:3005"
	}
	return fmt.Sprintf("%s/matches/%s", base, secureUUID)
}

// Deprioritization reasons for the admin lead queue.
const (
	ReasonActiveBooking  = "active_booking"
	ReasonActiveMatch    = "active_match"
	ReasonSelectionEmail = "selection_email_sent"
)

// IsDeprioritized decides whether a lead leaves the "needs attention" queue.
// Booking presence is the strongest signal and overrides everything else;
// stale matches never deprioritize.
func IsDeprioritized(patient *Models.Person, hasActiveBooking bool, matches []Models.Match, selectionEmailSent bool) (bool, string) {
	if hasActiveBooking {
		return true, ReasonActiveBooking
	}
	for index := range matches {
		if matches[index].IsStaleFor(patient) {
			continue
		}
		if matches[index].IsActive() {
			return true, ReasonActiveMatch
		}
	}
	if selectionEmailSent {
		return true, ReasonSelectionEmail
	}
	return false, ""
}

// HasRecentMatches guards against double-firing the instant matcher when a
// submission retries within a short window.
func HasRecentMatches(patientID uint, window time.Duration) bool {
	count, err := Models.CountMatchesCreatedSince(patientID, time.Now().Add(-window))
	if err != nil {
		return false
	}
	return count > 0
}

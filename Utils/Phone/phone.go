package Phone

import (
	"strings"
	"unicode"
)

// NormalizePhoneNumber canonicalizes a phone input to E.164. German numbers
// (national 0-prefix, 0049 or +49) must be mobile numbers (15x/16x/17x);
// landlines return "". Other international numbers pass through when they look
// like plausible E.164. Returns "" for anything it cannot normalize.
func NormalizePhoneNumber(raw string) string {
	digits := stripSeparators(raw)
	if digits == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(digits, "+49"):
		return normalizeGermanMobile(digits[3:])
	case strings.HasPrefix(digits, "0049"):
		return normalizeGermanMobile(digits[4:])
	case strings.HasPrefix(digits, "00"):
		return normalizeInternational(digits[2:])
	case strings.HasPrefix(digits, "+"):
		return normalizeInternational(digits[1:])
	case strings.HasPrefix(digits, "0"):
		// National German format
		return normalizeGermanMobile(digits[1:])
	}
	return ""
}

func stripSeparators(raw string) string {
	var builder strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			builder.WriteRune(r)
		case r == '+':
			builder.WriteRune(r)
		case r == ' ', r == '-', r == '/', r == '(', r == ')', r == '.':
			// separator, drop
		default:
			return ""
		}
	}
	out := builder.String()
	// A plus sign is only valid as the very first character.
	if strings.LastIndex(out, "+") > 0 {
		return ""
	}
	return out
}

// national is the German number without country code or leading zero.
func normalizeGermanMobile(national string) string {
	if len(national) < 10 || len(national) > 11 {
		return ""
	}
	if !isGermanMobilePrefix(national) {
		return ""
	}
	return "+49" + national
}

func isGermanMobilePrefix(national string) bool {
	if len(national) < 2 {
		return false
	}
	switch national[:2] {
	case "15", "16", "17":
		return true
	}
	return false
}

func normalizeInternational(digits string) string {
	if strings.HasPrefix(digits, "49") {
		return normalizeGermanMobile(digits[2:])
	}
	if len(digits) < 8 || len(digits) > 15 {
		return ""
	}
	if digits[0] == '0' {
		return ""
	}
	return "+" + digits
}

// FormatPhoneForDisplay renders a normalized E.164 number for the UI,
// e.g. "+49 157 1234567". Non-German numbers are returned as-is.
func FormatPhoneForDisplay(e164 string) string {
	if !strings.HasPrefix(e164, "+49") || len(e164) < 7 {
		return e164
	}
	national := e164[3:]
	return "+49 " + national[:3] + " " + national[3:]
}

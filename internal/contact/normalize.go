package contact

import "strings"

const (
	countryPrefix = "55"
	mobileMarker  = '9'
	canonicalLen  = 13
)

// Normalize reduces raw input to a canonical number, or reports failure.
//
// The input may carry any formatting ("+55 (11) 99999-9999", "11 3123-4567",
// ...); everything except digits is stripped first. The remaining digit
// string is then interpreted by length:
//
//	13 digits, "55" prefix  -> already canonical, returned as-is
//	11 digits               -> area code + marker + subscriber; "55" prepended
//	10 digits               -> area code + 8-digit subscriber; "55" prepended
//	                           and the mobile marker "9" injected
//
// Any other length is rejected, as is a 13-digit number without the "55"
// prefix (single-country numbering plan, no exceptions inferred).
func Normalize(raw string) (string, bool) {
	digits := stripNonDigits(raw)

	switch len(digits) {
	case canonicalLen:
		if !strings.HasPrefix(digits, countryPrefix) {
			return "", false
		}
		return digits, true
	case 11:
		return countryPrefix + digits, true
	case 10:
		area, subscriber := digits[:2], digits[2:]
		return countryPrefix + area + string(mobileMarker) + subscriber, true
	default:
		return "", false
	}
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

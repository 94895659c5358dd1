package contact

import "strconv"

// areaCodes is the fixed allow-list of Brazilian two-digit area codes (DDD).
// Values outside this set (e.g. 10, 20, 23) are not assigned by the
// numbering plan and are rejected even when otherwise well-formed.
var areaCodes = map[int]struct{}{}

func init() {
	for _, c := range []int{
		11, 12, 13, 14, 15, 16, 17, 18, 19,
		21, 22, 24, 27, 28,
		31, 32, 33, 34, 35, 37, 38,
		41, 42, 43, 44, 45, 46, 47, 48, 49,
		51, 53, 54, 55,
		61, 62, 63, 64, 65, 66, 67, 68, 69,
		71, 73, 74, 75, 77, 79,
		81, 82, 83, 84, 85, 86, 87, 88, 89,
		91, 92, 93, 94, 95, 96, 97, 98, 99,
	} {
		areaCodes[c] = struct{}{}
	}
}

// IsValid reports whether num is a canonical, dispatchable mobile number.
//
// All of the following must hold: exactly 13 digits, "55" country prefix,
// mobile marker "9" at index 4, and a two-digit area code in [11,99] that is
// a member of the allow-list.
func IsValid(num string) bool {
	if len(num) != canonicalLen {
		return false
	}
	for i := 0; i < len(num); i++ {
		if num[i] < '0' || num[i] > '9' {
			return false
		}
	}
	if num[:2] != countryPrefix {
		return false
	}
	if num[4] != mobileMarker {
		return false
	}
	area, err := strconv.Atoi(num[2:4])
	if err != nil || area < 11 || area > 99 {
		return false
	}
	_, ok := areaCodes[area]
	return ok
}

// Row is one ingested record before validation: the extracted raw number
// plus the remaining columns.
type Row struct {
	Number string
	Rest   map[string]string
}

// Partition normalizes and validates rows, splitting them into the valid
// contact list and a count of rejects.
//
// Order of the valid list preserves input order. Rejected rows are only
// counted; nothing downstream needs their content.
func Partition(rows []Row) (valid List, invalid int) {
	valid = make(List, 0, len(rows))
	for _, r := range rows {
		num, ok := Normalize(r.Number)
		if !ok || !IsValid(num) {
			invalid++
			continue
		}
		valid = append(valid, Contact{Number: num, Original: r.Number, Row: r.Rest})
	}
	return valid, invalid
}

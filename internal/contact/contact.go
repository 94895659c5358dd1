// Package contact turns raw CSV rows into dispatch-ready recipients.
//
// The pipeline is Normalize -> IsValid -> Partition. Numbers that survive it
// are canonical Brazilian mobile identifiers: 13 digits, "55" country prefix,
// two-digit area code, the literal mobile marker "9", then the subscriber
// number. Everything else is counted and dropped.
package contact

// Contact is one recipient of a campaign.
//
// Immutable after ingestion. Number is the only field the dispatcher reads;
// Original and Row are kept for diagnostics and reporting.
type Contact struct {
	// Number is the canonical digit-only identifier (<country><area><subscriber>).
	Number string
	// Original is the raw source text the number was parsed from.
	Original string
	// Row carries the remaining CSV columns untouched (header -> value).
	Row map[string]string
}

// List is an ordered set of valid contacts, as produced by Partition.
type List []Contact

// Numbers returns the canonical numbers in list order.
func (l List) Numbers() []string {
	out := make([]string, len(l))
	for i, c := range l {
		out[i] = c.Number
	}
	return out
}

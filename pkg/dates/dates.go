// Package dates parses heterogeneous date-of-service strings into a single
// comparable date type.
package dates

import (
	"strings"
	"time"
)

// serviceDateFormats is the fixed, ordered list of accepted layouts. The
// first layout that parses wins.
var serviceDateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"20060102",
	"01-02-2006",
}

// Parse converts a raw date string into a calendar date. Unparseable input
// (including empty or whitespace-only strings) reports ok=false; it is
// never an error. Callers drop unparseable dates from matching.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, format := range serviceDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// ParseAll parses a list of raw date strings, silently dropping the ones
// that do not parse. Order is preserved.
func ParseAll(raw []string) []time.Time {
	parsed := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		if t, ok := Parse(s); ok {
			parsed = append(parsed, t)
		}
	}
	return parsed
}

// DaysApart returns the absolute number of calendar days between two dates.
func DaysApart(a, b time.Time) int {
	days := int(a.Sub(b).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// WithinWindow reports whether two dates differ by at most the given number
// of calendar days, inclusive.
func WithinWindow(a, b time.Time, days int) bool {
	return DaysApart(a, b) <= days
}

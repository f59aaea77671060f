// Package timegrid converts "HH:mm" wall-clock strings to minute offsets
// and back, and defines the ordering rules for event time ranges.
package timegrid

import (
	"fmt"
	"strconv"
	"strings"
)

// MinDurationMinutes is the smallest span an event is ever rendered with.
// Shorter (or corrupt) ranges are clamped at layout time, not rejected.
const MinDurationMinutes = 5

// MinutesPerDay is the number of minutes in a day; "24:00" maps here.
const MinutesPerDay = 1440

// Minutes parses an "HH:mm" string into a minute offset from midnight.
// "24:00" is accepted as the end-of-day sentinel (1440). Malformed or
// empty input yields 0; callers validate separately before persisting.
func Minutes(s string) int {
	h, m, ok := split(s)
	if !ok {
		return 0
	}
	return h*60 + m
}

// Valid reports whether s is a well-formed "HH:mm" time within
// 00:00..24:00 inclusive.
func Valid(s string) bool {
	_, _, ok := split(s)
	return ok
}

// ValidRange reports whether start and end are both well-formed and
// start is strictly before end. Equal times are not a valid range.
func ValidRange(start, end string) bool {
	if !Valid(start) || !Valid(end) {
		return false
	}
	return Minutes(start) < Minutes(end)
}

// FormatMinutes renders a minute offset back into "HH:mm".
// 1440 renders as "24:00". Out-of-range values are clamped.
func FormatMinutes(m int) string {
	if m < 0 {
		m = 0
	}
	if m > MinutesPerDay {
		m = MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func split(s string) (hour, minute int, ok bool) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(s[:i])
	if err != nil || h < 0 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(s[i+1:])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	if h > 24 || (h == 24 && m != 0) {
		return 0, 0, false
	}
	return h, m, true
}

package types

import (
	"fmt"
	"time"
)

// DefaultLocalOffset is the retailer's local UTC offset. The retailer reports
// in Australian Eastern Standard Time all year round.
const DefaultLocalOffset = 10 * time.Hour

// DateFormat is the layout used for calendar dates in configuration and logs.
const DateFormat = "2006-01-02"

// FixedLocation returns a location with a fixed UTC offset and no daylight
// saving.
func FixedLocation(offset time.Duration) *time.Location {
	if offset == DefaultLocalOffset {
		return time.FixedZone("AEST", int(offset.Seconds()))
	}
	sign := '+'
	abs := offset
	if offset < 0 {
		sign = '-'
		abs = -offset
	}
	name := fmt.Sprintf("UTC%c%02d:%02d", sign, int(abs.Hours()), int(abs.Minutes())%60)
	return time.FixedZone(name, int(offset.Seconds()))
}

// Day truncates t to midnight of its calendar day in t's own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ParseDate parses a YYYY-MM-DD date as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateFormat, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

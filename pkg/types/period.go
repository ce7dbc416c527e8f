package types

import "time"

// Period defines a recurring weekly window, such as the hours a tariff
// charges its peak rate.
type Period struct {
	HourStart     int            `json:"hourStart"`
	HourEnd       int            `json:"hourEnd"`
	DaysOfTheWeek []time.Weekday `json:"daysOfTheWeek"`
	Location      *time.Location `json:"-"`
}

// Contains checks if a time is within the period. The hour window is
// half-open: HourEnd itself is outside the period.
func (p *Period) Contains(t time.Time) bool {
	if p.Location != nil {
		t = t.In(p.Location)
	}
	if h := t.Hour(); h < p.HourStart || h >= p.HourEnd {
		return false
	}
	if len(p.DaysOfTheWeek) > 0 {
		var found bool
		dow := t.Weekday()
		for _, d := range p.DaysOfTheWeek {
			if d == dow {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Weekdays is Monday through Friday.
var Weekdays = []time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
}

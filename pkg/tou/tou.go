// Package tou classifies instants into the retailer's time-of-use buckets.
package tou

import (
	"time"

	"github.com/raterudder/energysync/pkg/types"
)

// Time-of-use tag values.
const (
	Peak    = "Peak"
	OffPeak = "Off-peak"
)

// Classifier tags instants as Peak or Off-peak. Weekdays between 07:00-10:00
// and 16:00-21:00 local time are Peak, everything else including all of
// Saturday and Sunday is Off-peak.
type Classifier struct {
	peak []types.Period
}

// NewClassifier returns a Classifier that evaluates hours in loc.
func NewClassifier(loc *time.Location) *Classifier {
	return &Classifier{
		peak: []types.Period{
			{
				HourStart:     7,
				HourEnd:       10,
				DaysOfTheWeek: types.Weekdays,
				Location:      loc,
			},
			{
				HourStart:     16,
				HourEnd:       21,
				DaysOfTheWeek: types.Weekdays,
				Location:      loc,
			},
		},
	}
}

// Classify returns Peak or Off-peak for t.
func (c *Classifier) Classify(t time.Time) string {
	for _, p := range c.peak {
		if p.Contains(t) {
			return Peak
		}
	}
	return OffPeak
}

// Package mapper converts retailer and spreadsheet records into points.
package mapper

import (
	"time"

	"github.com/raterudder/energysync/pkg/tou"
	"github.com/raterudder/energysync/pkg/types"
)

// Tag and field names.
const (
	TagTariff      = "tariff"
	TagTimeOfUse   = "timeofuse"
	TagDescription = "description"
	TagSheet       = "sheet"

	FieldValue         = "value"
	FieldACOutputWatts = "ac_output_watts"
)

// Result is the outcome of mapping a batch of records. A record that cannot
// be converted is reported in Skips and never fails the batch.
type Result struct {
	Points []types.Point
	Skips  []types.Skip
}

func (r *Result) add(p types.Point, source string, err error) {
	if err != nil {
		r.Skips = append(r.Skips, types.Skip{Source: source, Reason: err.Error()})
		return
	}
	r.Points = append(r.Points, p)
}

// Mapper builds points in the retailer's fixed local time.
type Mapper struct {
	loc        *time.Location
	classifier *tou.Classifier
}

// New returns a Mapper for the given fixed location.
func New(loc *time.Location) *Mapper {
	return &Mapper{
		loc:        loc,
		classifier: tou.NewClassifier(loc),
	}
}

// Location returns the location points are timestamped in.
func (m *Mapper) Location() *time.Location {
	return m.loc
}

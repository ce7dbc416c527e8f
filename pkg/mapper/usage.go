package mapper

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/raterudder/energysync/pkg/types"
)

// Usage converts one day's usage chart into electricity points. date is the
// day that was requested from the retailer; each reading's category is the
// local time of day on that date.
func (m *Mapper) Usage(date time.Time, day types.UsageDay) Result {
	var res Result
	date = date.In(m.loc)
	for _, series := range day.Series {
		for _, reading := range series.Data {
			source := fmt.Sprintf("%s %s %s", date.Format(types.DateFormat), series.Name, reading.Category)
			p, err := m.usagePoint(date, series.Name, reading)
			res.add(p, source, err)
		}
	}
	return res
}

func (m *Mapper) usagePoint(date time.Time, tariff string, reading types.UsageReading) (types.Point, error) {
	if reading.Value == nil {
		return types.Point{}, errors.New("missing value")
	}
	if math.IsNaN(*reading.Value) || math.IsInf(*reading.Value, 0) {
		return types.Point{}, fmt.Errorf("invalid value %v", *reading.Value)
	}
	tod, err := time.Parse("15:04", reading.Category)
	if err != nil {
		return types.Point{}, fmt.Errorf("invalid category %q: %w", reading.Category, err)
	}
	ts := time.Date(date.Year(), date.Month(), date.Day(), tod.Hour(), tod.Minute(), 0, 0, m.loc)
	return types.Point{
		Measurement: types.MeasurementElectricity,
		Tags: map[string]string{
			TagTariff:    tariff,
			TagTimeOfUse: m.classifier.Classify(ts),
		},
		Fields: map[string]float64{FieldValue: *reading.Value},
		Time:   ts,
	}, nil
}

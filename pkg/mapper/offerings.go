package mapper

import (
	"fmt"
	"strings"
	"time"

	"github.com/raterudder/energysync/pkg/types"
	"github.com/shopspring/decimal"
)

// rateDivisor turns the portal's quoted rate into the hourly value stored for
// each hour of the day.
var rateDivisor = decimal.NewFromInt(2400)

// Offerings expands every rate into 24 hourly cost points on date.
func (m *Mapper) Offerings(date time.Time, offerings types.Offerings) Result {
	var res Result
	date = date.In(m.loc)
	for _, rate := range offerings.Rates {
		source := fmt.Sprintf("%s rate %q", date.Format(types.DateFormat), rate.Description)
		value, err := hourlyRate(rate)
		if err != nil {
			res.add(types.Point{}, source, err)
			continue
		}
		for h := 0; h < 24; h++ {
			res.add(types.Point{
				Measurement: types.MeasurementCost,
				Tags:        map[string]string{TagDescription: rate.Description},
				Fields:      map[string]float64{FieldValue: value},
				Time:        time.Date(date.Year(), date.Month(), date.Day(), h, 0, 0, 0, m.loc),
			}, source, nil)
		}
	}
	return res
}

func hourlyRate(rate types.Rate) (float64, error) {
	s := strings.TrimSpace(rate.RateString())
	if s == "" || s == "null" {
		return 0, fmt.Errorf("missing rate")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	v, _ := d.Div(rateDivisor).Float64()
	return v, nil
}

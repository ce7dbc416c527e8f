package types

import (
	"encoding/json"
	"fmt"
)

// UsageDay is the retailer's usage chart for a single day. Each series is one
// tariff and each reading one interval of that day.
type UsageDay struct {
	Series []UsageSeries `json:"series"`
}

// UsageSeries holds the readings reported under one tariff.
type UsageSeries struct {
	Name string         `json:"name"`
	Data []UsageReading `json:"data"`
}

// UsageReading is one interval reading. Category is the local time of day the
// interval starts at, e.g. "07:00". Value is nil when the retailer has no
// reading for the interval.
type UsageReading struct {
	Category string   `json:"category"`
	Value    *float64 `json:"value"`
}

// Offerings are the rates of the retailer's product offering for an account.
type Offerings struct {
	Rates []Rate `json:"rates"`
}

// Rate is one tariff rate. The portal sends the rate as either a JSON number
// or a numeric string so it is kept raw until it is coerced.
type Rate struct {
	Description string          `json:"description"`
	Rate        json.RawMessage `json:"rate"`
}

// RateString returns the rate without any JSON string quoting.
func (r Rate) RateString() string {
	if len(r.Rate) > 0 && r.Rate[0] == '"' {
		var s string
		if err := json.Unmarshal(r.Rate, &s); err == nil {
			return s
		}
	}
	return string(r.Rate)
}

// SolarRow is one row of a solar estimate sheet with its cells kept as text.
// The year is not part of the row and is inferred from the load start date.
type SolarRow struct {
	Sheet string
	Row   int
	Month string
	Day   string
	Hour  string
	Value string
}

// Skip records a source record that could not be converted into a point.
type Skip struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

func (s Skip) String() string {
	return fmt.Sprintf("%s: %s", s.Source, s.Reason)
}

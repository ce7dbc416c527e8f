package mapper

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/raterudder/energysync/pkg/types"
)

// SolarRows converts solar estimate rows into solar_output points. The rows
// cover a 12 month cycle without a year; dates before start's month and day
// belong to the year after start.
func (m *Mapper) SolarRows(start time.Time, rows []types.SolarRow) Result {
	var res Result
	start = start.In(m.loc)
	for _, row := range rows {
		p, err := m.solarPoint(start, row)
		res.add(p, fmt.Sprintf("%s!%d", row.Sheet, row.Row), err)
	}
	return res
}

func (m *Mapper) solarPoint(start time.Time, row types.SolarRow) (types.Point, error) {
	month, err := wholeNumber("month", row.Month)
	if err != nil {
		return types.Point{}, err
	}
	day, err := wholeNumber("day", row.Day)
	if err != nil {
		return types.Point{}, err
	}
	hour, err := wholeNumber("hour", row.Hour)
	if err != nil {
		return types.Point{}, err
	}
	value, err := number("value", row.Value)
	if err != nil {
		return types.Point{}, err
	}

	year := SolarYear(start, time.Month(month), day)
	if month < 1 || month > 12 || hour < 0 || hour > 23 {
		return types.Point{}, fmt.Errorf("invalid date %d-%02d-%02d %02d:00", year, month, day, hour)
	}
	ts := time.Date(year, time.Month(month), day, hour, 0, 0, 0, m.loc)
	// time.Date normalizes Feb 30 into March so reject anything that moved
	if ts.Month() != time.Month(month) || ts.Day() != day {
		return types.Point{}, fmt.Errorf("invalid date %d-%02d-%02d", year, month, day)
	}

	return types.Point{
		Measurement: types.MeasurementSolarOutput,
		Tags:        map[string]string{TagSheet: row.Sheet},
		Fields:      map[string]float64{FieldACOutputWatts: value},
		Time:        ts.UTC(),
	}, nil
}

// SolarYear returns the year a month and day of a cyclical estimate falls in
// when the cycle starts at start.
func SolarYear(start time.Time, month time.Month, day int) int {
	if month < start.Month() || (month == start.Month() && day < start.Day()) {
		return start.Year() + 1
	}
	return start.Year()
}

func number(name, cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, fmt.Errorf("%s is empty", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", name, cell)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s %q is not a number", name, cell)
	}
	return v, nil
}

// wholeNumber coerces a cell to an int, truncating any fraction the way the
// spreadsheet's numeric cells ("7.0") are read.
func wholeNumber(name, cell string) (int, error) {
	v, err := number(name, cell)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, errors.New(name + " is out of range")
	}
	return int(v), nil
}

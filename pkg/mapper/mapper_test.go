package mapper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/raterudder/energysync/pkg/tou"
	"github.com/raterudder/energysync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var aest = types.FixedLocation(types.DefaultLocalOffset)

func ptr(f float64) *float64 {
	return &f
}

func TestUsage(t *testing.T) {
	m := New(aest)
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, aest) // Tuesday

	day := types.UsageDay{
		Series: []types.UsageSeries{
			{
				Name: "General Usage",
				Data: []types.UsageReading{
					{Category: "06:00", Value: ptr(0.4)},
					{Category: "07:00", Value: ptr(1.25)},
					{Category: "21:30", Value: ptr(0.8)},
				},
			},
			{
				Name: "Controlled Load",
				Data: []types.UsageReading{
					{Category: "16:00", Value: ptr(2)},
				},
			},
		},
	}

	res := m.Usage(date, day)
	require.Empty(t, res.Skips)
	require.Len(t, res.Points, 4)

	p := res.Points[1]
	assert.Equal(t, types.MeasurementElectricity, p.Measurement)
	assert.Equal(t, "General Usage", p.Tags[TagTariff])
	assert.Equal(t, tou.Peak, p.Tags[TagTimeOfUse])
	assert.Equal(t, 1.25, p.Fields[FieldValue])
	assert.Equal(t, time.Date(2024, 1, 2, 7, 0, 0, 0, aest), p.Time)
	_, offset := p.Time.Zone()
	assert.Equal(t, 10*3600, offset)

	assert.Equal(t, tou.OffPeak, res.Points[0].Tags[TagTimeOfUse])
	assert.Equal(t, time.Date(2024, 1, 2, 21, 30, 0, 0, aest), res.Points[2].Time)
	assert.Equal(t, tou.OffPeak, res.Points[2].Tags[TagTimeOfUse])
	assert.Equal(t, tou.Peak, res.Points[3].Tags[TagTimeOfUse])
	assert.Equal(t, "Controlled Load", res.Points[3].Tags[TagTariff])
}

func TestUsageRoundTrip(t *testing.T) {
	m := New(aest)
	date := time.Date(2024, 3, 9, 0, 0, 0, 0, aest)

	var day types.UsageDay
	for _, name := range []string{"Peak", "Shoulder"} {
		s := types.UsageSeries{Name: name}
		for h := 0; h < 24; h++ {
			s.Data = append(s.Data, types.UsageReading{
				Category: time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format("15:04"),
				Value:    ptr(float64(h) + 0.125),
			})
		}
		day.Series = append(day.Series, s)
	}

	res := m.Usage(date, day)
	require.Len(t, res.Points, 48)

	byKey := map[string]types.Point{}
	for _, p := range res.Points {
		_, dup := byKey[p.Time.String()+p.Tags[TagTariff]]
		require.False(t, dup, "duplicate point %s", p.Key())
		byKey[p.Time.String()+p.Tags[TagTariff]] = p
	}

	for _, s := range day.Series {
		for _, r := range s.Data {
			tod, err := time.Parse("15:04", r.Category)
			require.NoError(t, err)
			ts := time.Date(2024, 3, 9, tod.Hour(), 0, 0, 0, aest)
			p, ok := byKey[ts.String()+s.Name]
			require.True(t, ok, "missing %s %s", s.Name, r.Category)
			assert.Equal(t, *r.Value, p.Fields[FieldValue])
			assert.Equal(t, s.Name, p.Tags[TagTariff])
		}
	}
}

func TestUsageSkips(t *testing.T) {
	m := New(aest)
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, aest)

	res := m.Usage(date, types.UsageDay{
		Series: []types.UsageSeries{{
			Name: "General",
			Data: []types.UsageReading{
				{Category: "00:00", Value: ptr(1)},
				{Category: "01:00"},
				{Category: "noon", Value: ptr(1)},
				{Category: "03:00", Value: ptr(3)},
			},
		}},
	})

	assert.Len(t, res.Points, 2)
	require.Len(t, res.Skips, 2)
	assert.Equal(t, "2024-01-02 General 01:00", res.Skips[0].Source)
	assert.Equal(t, "missing value", res.Skips[0].Reason)
	assert.Contains(t, res.Skips[1].Reason, `invalid category "noon"`)
}

func TestUsageDateIsLocal(t *testing.T) {
	m := New(aest)
	// midnight local is the previous day in UTC, the mapper must still use
	// the local calendar day
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, aest).UTC()
	res := m.Usage(date, types.UsageDay{Series: []types.UsageSeries{{
		Name: "General",
		Data: []types.UsageReading{{Category: "05:00", Value: ptr(1)}},
	}}})
	require.Len(t, res.Points, 1)
	assert.Equal(t, time.Date(2024, 1, 2, 5, 0, 0, 0, aest), res.Points[0].Time)
}

func TestOfferings(t *testing.T) {
	m := New(aest)
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, aest)

	var o types.Offerings
	require.NoError(t, json.Unmarshal([]byte(`{"rates":[
		{"description":"Peak usage","rate":"36.3"},
		{"description":"Daily supply","rate":110}
	]}`), &o))

	res := m.Offerings(date, o)
	require.Empty(t, res.Skips)
	require.Len(t, res.Points, 48)

	hours := map[string]map[int]bool{}
	for _, p := range res.Points {
		desc := p.Tags[TagDescription]
		if hours[desc] == nil {
			hours[desc] = map[int]bool{}
		}
		h := p.Time.Hour()
		assert.False(t, hours[desc][h], "duplicate hour %d for %s", h, desc)
		hours[desc][h] = true

		assert.Equal(t, types.MeasurementCost, p.Measurement)
		assert.Equal(t, 2024, p.Time.Year())
		assert.Equal(t, 2, p.Time.Day())
		assert.Zero(t, p.Time.Minute())
		_, offset := p.Time.Zone()
		assert.Equal(t, 10*3600, offset)

		switch desc {
		case "Peak usage":
			assert.InDelta(t, 36.3/2400, p.Fields[FieldValue], 1e-15)
		case "Daily supply":
			assert.InDelta(t, 110.0/2400, p.Fields[FieldValue], 1e-15)
		default:
			t.Fatalf("unexpected description %q", desc)
		}
	}
	for desc, hs := range hours {
		assert.Len(t, hs, 24, "hours for %s", desc)
		for h := 0; h < 24; h++ {
			assert.True(t, hs[h], "missing hour %d for %s", h, desc)
		}
	}
}

func TestOfferingsSkips(t *testing.T) {
	m := New(aest)
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, aest)

	res := m.Offerings(date, types.Offerings{Rates: []types.Rate{
		{Description: "Good", Rate: json.RawMessage(`24`)},
		{Description: "Bad", Rate: json.RawMessage(`"n/a"`)},
		{Description: "Missing"},
	}})
	require.Len(t, res.Points, 24)
	assert.Equal(t, 0.01, res.Points[0].Fields[FieldValue])
	require.Len(t, res.Skips, 2)
	assert.Contains(t, res.Skips[0].Reason, `invalid rate "n/a"`)
	assert.Equal(t, "missing rate", res.Skips[1].Reason)
}

func TestSolarYear(t *testing.T) {
	start := time.Date(2024, 6, 15, 0, 0, 0, 0, aest)
	assert.Equal(t, 2025, SolarYear(start, time.March, 1))
	assert.Equal(t, 2024, SolarYear(start, time.September, 1))
	assert.Equal(t, 2024, SolarYear(start, time.June, 15))
	assert.Equal(t, 2025, SolarYear(start, time.June, 14))
	assert.Equal(t, 2024, SolarYear(start, time.December, 31))
}

func TestSolarRows(t *testing.T) {
	m := New(aest)
	start := time.Date(2024, 6, 15, 0, 0, 0, 0, aest)

	res := m.SolarRows(start, []types.SolarRow{
		{Sheet: "North", Row: 33, Month: "3", Day: "1", Hour: "10", Value: "1520.5"},
		{Sheet: "North", Row: 34, Month: "9.0", Day: "1.0", Hour: "0", Value: "0"},
		{Sheet: "North", Row: 35, Month: "9", Day: "1", Hour: "noon", Value: "10"},
		{Sheet: "North", Row: 36, Month: "2", Day: "30", Hour: "10", Value: "10"},
		{Sheet: "North", Row: 37, Month: "7", Day: "1", Hour: "24", Value: "10"},
		{Sheet: "North", Row: 38, Month: "7", Day: "1", Hour: "5", Value: ""},
	})

	require.Len(t, res.Points, 2)
	p := res.Points[0]
	assert.Equal(t, types.MeasurementSolarOutput, p.Measurement)
	assert.Equal(t, "North", p.Tags[TagSheet])
	assert.Equal(t, 1520.5, p.Fields[FieldACOutputWatts])
	// 2025-03-01 10:00 at UTC+10 is midnight UTC
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), p.Time)
	assert.Equal(t, time.UTC, p.Time.Location())

	assert.Equal(t, time.Date(2024, 8, 31, 14, 0, 0, 0, time.UTC), res.Points[1].Time)

	require.Len(t, res.Skips, 4)
	assert.Equal(t, "North!35", res.Skips[0].Source)
	assert.Equal(t, `hour "noon" is not a number`, res.Skips[0].Reason)
	assert.Contains(t, res.Skips[1].Reason, "invalid date 2025-02-30")
	assert.Contains(t, res.Skips[2].Reason, "invalid date")
	assert.Equal(t, "value is empty", res.Skips[3].Reason)
}

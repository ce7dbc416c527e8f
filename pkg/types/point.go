package types

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Measurement names written to the time-series store.
const (
	MeasurementElectricity = "electricity"
	MeasurementCost        = "cost"
	MeasurementSolarOutput = "solar_output"
)

// Point is a single time-series measurement. Tags are indexed strings used for
// grouping; Fields hold the numeric payload.
type Point struct {
	Measurement string             `json:"measurement"`
	Tags        map[string]string  `json:"tags"`
	Fields      map[string]float64 `json:"fields"`
	Time        time.Time          `json:"time"`
}

// TagString returns the tags as a comma-delimited list of key=value pairs,
// sorted by key.
func (p Point) TagString() string {
	keys := make([]string, 0, len(p.Tags))
	for k := range p.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(p.Tags[k])
	}
	return sb.String()
}

// Key identifies a point within the store. Two points with the same key
// overwrite each other.
func (p Point) Key() string {
	return p.Measurement + "," + p.TagString() + "@" + strconv.FormatInt(p.Time.Unix(), 10)
}

// SortPoints orders points by time and then by key so batches are written
// oldest first.
func SortPoints(points []Point) {
	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].Time.Equal(points[j].Time) {
			return points[i].Time.Before(points[j].Time)
		}
		return points[i].Key() < points[j].Key()
	})
}

package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raterudder/energysync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const latestCSV = "#datatype,string,long,dateTime:RFC3339,dateTime:RFC3339,dateTime:RFC3339,double,string,string,string,string\r\n" +
	"#group,false,false,true,true,false,false,true,true,true,true\r\n" +
	"#default,_result,,,,,,,,,\r\n" +
	",result,table,_start,_stop,_time,_value,_field,_measurement,tariff,timeofuse\r\n" +
	",,0,1970-01-01T00:00:00Z,2024-01-03T00:00:00Z,2024-01-01T12:00:00Z,0.4,value,electricity,General,Off-peak\r\n" +
	",,1,1970-01-01T00:00:00Z,2024-01-03T00:00:00Z,2024-01-01T13:00:00Z,1.5,value,electricity,General,Peak\r\n" +
	"\r\n"

func newTestInflux(t *testing.T, handler http.HandlerFunc) *InfluxDBProvider {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := &InfluxDBProvider{
		url:             srv.URL,
		token:           "token",
		org:             "org",
		bucket:          "energy",
		connectAttempts: 3,
		connectWait:     time.Millisecond,
	}
	require.NoError(t, p.Init(context.Background()))
	t.Cleanup(func() { p.Close() })
	return p
}

func TestInfluxDBValidate(t *testing.T) {
	p := &InfluxDBProvider{url: "http://influxdb:8086", token: "t", org: "o"}
	assert.ErrorContains(t, p.Validate(), "influxdb-bucket")
	p.bucket = "b"
	assert.NoError(t, p.Validate())
	p.token = ""
	assert.ErrorContains(t, p.Validate(), "influxdb-token")
}

func TestInfluxDBInitRetries(t *testing.T) {
	var pings int32
	newTestInflux(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ping" && atomic.AddInt32(&pings, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	assert.EqualValues(t, 3, atomic.LoadInt32(&pings))
}

func TestInfluxDBInitGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := &InfluxDBProvider{url: srv.URL, token: "t", org: "o", bucket: "b", connectAttempts: 2, connectWait: time.Millisecond}
	err := p.Init(context.Background())
	assert.ErrorContains(t, err, "after 2 attempts")
}

func TestInfluxDBWriteBatch(t *testing.T) {
	var body string
	var query string
	p := newTestInflux(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/write" {
			b, _ := io.ReadAll(r.Body)
			body = string(b)
			query = r.URL.RawQuery
		}
		w.WriteHeader(http.StatusNoContent)
	})

	ts := time.Date(2024, 1, 1, 7, 0, 0, 0, types.FixedLocation(types.DefaultLocalOffset))
	err := p.WriteBatch(context.Background(), []types.Point{{
		Measurement: types.MeasurementElectricity,
		Tags:        map[string]string{"tariff": "General", "timeofuse": "Peak"},
		Fields:      map[string]float64{"value": 1.5},
		Time:        ts,
	}})
	require.NoError(t, err)

	assert.Contains(t, body, "electricity,tariff=General,timeofuse=Peak value=1.5")
	assert.Contains(t, body, "1704056400")
	assert.Contains(t, query, "bucket=energy")
	assert.Contains(t, query, "precision=s")
}

func TestInfluxDBWriteBatchEmpty(t *testing.T) {
	var writes int32
	p := newTestInflux(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/write" {
			atomic.AddInt32(&writes, 1)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, p.WriteBatch(context.Background(), nil))
	assert.Zero(t, atomic.LoadInt32(&writes))
}

func TestInfluxDBLatestTime(t *testing.T) {
	var flux string
	p := newTestInflux(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/query" {
			b, _ := io.ReadAll(r.Body)
			flux = string(b)
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			io.WriteString(w, latestCSV)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	latest, err := p.LatestTime(context.Background(), types.MeasurementElectricity)
	require.NoError(t, err)
	assert.True(t, latest.Equal(time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)), "got %s", latest)
	assert.True(t, strings.Contains(flux, `r._measurement == \"electricity\"`) || strings.Contains(flux, `r._measurement == "electricity"`))
}

func TestInfluxDBLatestTimeEmpty(t *testing.T) {
	p := newTestInflux(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/query" {
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			io.WriteString(w, "\r\n")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	latest, err := p.LatestTime(context.Background(), types.MeasurementCost)
	require.NoError(t, err)
	assert.True(t, latest.IsZero())
}

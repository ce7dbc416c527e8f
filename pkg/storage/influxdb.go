package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energysync/pkg/common"
	"github.com/raterudder/energysync/pkg/log"
	"github.com/raterudder/energysync/pkg/types"
)

// InfluxDBProvider implements Database using InfluxDB v2.
type InfluxDBProvider struct {
	url    string
	token  string
	org    string
	bucket string
	debug  bool

	connectAttempts int
	connectWait     time.Duration

	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
}

// configuredInfluxDB sets up the InfluxDB provider.
// It registers flags for configuration.
func configuredInfluxDB() *InfluxDBProvider {
	url := lflag.String("influxdb-url", common.Getenv("INFLUXDB_URL", "http://influxdb:8086"), "InfluxDB v2 server URL")
	token := lflag.String("influxdb-token", common.Getenv("INFLUXDB_TOKEN", ""), "InfluxDB API token")
	org := lflag.String("influxdb-org", common.Getenv("INFLUXDB_ORG", ""), "InfluxDB organization")
	bucket := lflag.String("influxdb-bucket", common.Getenv("INFLUXDB_BUCKET", ""), "InfluxDB bucket to write points to")
	debug := lflag.Bool("influxdb-debug", common.Getenv("DEBUG", "false") == "true", "Enable InfluxDB client debug logging")
	attempts := lflag.Int("influxdb-connect-attempts", 10, "Number of times to ping InfluxDB before giving up on startup")
	wait := lflag.Duration("influxdb-connect-wait", 3*time.Second, "Time to wait between InfluxDB ping attempts")

	p := &InfluxDBProvider{}

	lflag.Do(func() {
		p.url = *url
		p.token = *token
		p.org = *org
		p.bucket = *bucket
		p.debug = *debug
		p.connectAttempts = *attempts
		p.connectWait = *wait
	})

	return p
}

// Validate checks if the provider is properly configured.
func (p *InfluxDBProvider) Validate() error {
	if p.url == "" {
		return errors.New("influxdb-url is required")
	}
	if p.token == "" {
		return errors.New("influxdb-token is required")
	}
	if p.org == "" {
		return errors.New("influxdb-org is required")
	}
	if p.bucket == "" {
		return errors.New("influxdb-bucket is required")
	}
	return nil
}

// Init creates the client and waits for the server to answer a ping.
// This must be called before using the provider methods.
func (p *InfluxDBProvider) Init(ctx context.Context) error {
	opts := influxdb2.DefaultOptions().SetPrecision(time.Second)
	if p.debug {
		opts.SetLogLevel(3)
	}
	client := influxdb2.NewClientWithOptions(p.url, p.token, opts)

	attempts := p.connectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		ok, err := client.Ping(ctx)
		if err == nil && ok {
			lastErr = nil
			break
		}
		if err == nil {
			err = errors.New("ping failed")
		}
		lastErr = err
		log.Ctx(ctx).WarnContext(
			ctx,
			"waiting for influxdb",
			slog.String("url", p.url),
			slog.Int("attempt", i+1),
			slog.Any("error", err),
		)
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			client.Close()
			return ctx.Err()
		case <-time.After(p.connectWait):
		}
	}
	if lastErr != nil {
		client.Close()
		return fmt.Errorf("failed to connect to influxdb at %s after %d attempts: %w", p.url, attempts, lastErr)
	}

	log.Ctx(ctx).InfoContext(ctx, "connected to influxdb", slog.String("url", p.url), slog.String("bucket", p.bucket))
	p.client = client
	p.writeAPI = client.WriteAPIBlocking(p.org, p.bucket)
	p.queryAPI = client.QueryAPI(p.org)
	return nil
}

// Close closes the InfluxDB client.
func (p *InfluxDBProvider) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

// latestQuery finds the last point of every series in the measurement. The
// newest of those is the measurement's latest time.
func (p *InfluxDBProvider) latestQuery(measurement string) string {
	return fmt.Sprintf(
		`from(bucket: %q) |> range(start: 0) |> filter(fn: (r) => r._measurement == %q) |> last()`,
		p.bucket,
		measurement,
	)
}

// LatestTime implements Database.
func (p *InfluxDBProvider) LatestTime(ctx context.Context, measurement string) (time.Time, error) {
	result, err := p.queryAPI.Query(ctx, p.latestQuery(measurement))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest %s: %w", measurement, err)
	}
	defer result.Close()

	var latest time.Time
	for result.Next() {
		if t := result.Record().Time(); t.After(latest) {
			latest = t
		}
	}
	if err := result.Err(); err != nil {
		return time.Time{}, fmt.Errorf("failed to read latest %s: %w", measurement, err)
	}
	return latest, nil
}

// WriteBatch implements Database.
func (p *InfluxDBProvider) WriteBatch(ctx context.Context, points []types.Point) error {
	if len(points) == 0 {
		return nil
	}
	wps := make([]*write.Point, len(points))
	for i, pt := range points {
		wps[i] = toInfluxPoint(pt)
	}
	if err := p.writeAPI.WritePoint(ctx, wps...); err != nil {
		return fmt.Errorf("failed to write %d points: %w", len(points), err)
	}
	return nil
}

func toInfluxPoint(p types.Point) *write.Point {
	fields := make(map[string]interface{}, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	return influxdb2.NewPoint(p.Measurement, p.Tags, fields, p.Time)
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energysync/pkg/types"
)

// Database defines the time-series store points are synced into.
type Database interface {
	// LatestTime returns the time of the most recent point stored under the
	// measurement across all tag combinations. It returns the zero time if
	// the measurement has no points.
	LatestTime(ctx context.Context, measurement string) (time.Time, error)

	// WriteBatch persists the points. Writing a point with the same
	// measurement, tags and time as a stored point overwrites it.
	WriteBatch(ctx context.Context, points []types.Point) error

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "influxdb", "Storage provider to use (available: influxdb, firestore, badger)")

	var p struct{ Database }

	influx := configuredInfluxDB()
	fs := configuredFirestore()
	bs := configuredBadger()

	lflag.Do(func() {
		switch *provider {
		case "influxdb":
			if err := influx.Validate(); err != nil {
				panic(fmt.Sprintf("influxdb validation failed: %v", err))
			}
			p.Database = influx
			if err := influx.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("influxdb init failed: %v", err))
			}
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "badger":
			if err := bs.Validate(); err != nil {
				panic(fmt.Sprintf("badger validation failed: %v", err))
			}
			p.Database = bs
			if err := bs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("badger init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

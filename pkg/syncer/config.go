package syncer

import (
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energysync/pkg/common"
	"github.com/raterudder/energysync/pkg/retailer"
	"github.com/raterudder/energysync/pkg/storage"
	"github.com/raterudder/energysync/pkg/types"
)

// DefaultBuffer is added to the latest stored reading before truncating to a
// day. It is the width of one hourly reading, so a day whose final reading is
// stored counts as complete.
const DefaultBuffer = time.Hour

// Config controls where syncing starts and how local dates are computed.
type Config struct {
	// StartDate is local midnight of the first day synced into an empty store.
	StartDate time.Time
	// Location is the retailer's fixed local time.
	Location *time.Location
	// Buffer is added to the latest stored timestamp before it is truncated
	// to the next pending day.
	Buffer time.Duration
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if c.Location == nil {
		return errors.New("location is required")
	}
	if c.StartDate.IsZero() {
		return errors.New("start date is required")
	}
	if c.Buffer < 0 {
		return fmt.Errorf("buffer must not be negative: %s", c.Buffer)
	}
	return nil
}

// Configured registers the sync flags and returns a driver that is ready
// once flags are parsed. Invalid values panic at startup.
func Configured(source retailer.Source, db storage.Database) *Driver {
	start := lflag.String("energy-start", common.Getenv("ENERGY_START", ""), "First date (YYYY-MM-DD) to sync when the store is empty")
	offset := lflag.Duration("local-offset", types.DefaultLocalOffset, "Fixed UTC offset of the retailer's local time")
	buffer := lflag.Duration("sync-buffer", DefaultBuffer, "Added to the latest stored reading before picking the next day to sync")

	d := &Driver{}

	lflag.Do(func() {
		if *start == "" {
			panic("energy-start is required")
		}
		var cfg Config
		cfg.Location = types.FixedLocation(*offset)
		date, err := types.ParseDate(*start, cfg.Location)
		if err != nil {
			panic(fmt.Sprintf("invalid energy-start: %v", err))
		}
		cfg.StartDate = date
		cfg.Buffer = *buffer
		if err := cfg.Validate(); err != nil {
			panic(fmt.Sprintf("invalid sync config: %v", err))
		}
		*d = *NewDriver(cfg, source, db)
	})

	return d
}

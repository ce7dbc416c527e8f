package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raterudder/energysync/pkg/log"
	"github.com/raterudder/energysync/pkg/storage"
	"github.com/raterudder/energysync/pkg/types"
)

// Cursor derives the next day to sync from what the store already holds.
// It keeps no state of its own.
type Cursor struct {
	db  storage.Database
	cfg Config
}

// NewCursor returns a cursor reading from db.
func NewCursor(db storage.Database, cfg Config) *Cursor {
	return &Cursor{db: db, cfg: cfg}
}

// NextPendingDate returns local midnight of the first day that still needs
// syncing for the measurement. An empty measurement starts at the configured
// start date.
func (c *Cursor) NextPendingDate(ctx context.Context, measurement string) (time.Time, error) {
	latest, err := c.db.LatestTime(ctx, measurement)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest %s time: %w", measurement, err)
	}
	if latest.IsZero() {
		log.Ctx(ctx).InfoContext(
			ctx,
			"no stored data, using start date",
			slog.String("measurement", measurement),
			slog.String("date", c.cfg.StartDate.Format(types.DateFormat)),
		)
		return c.cfg.StartDate, nil
	}

	next := types.Day(latest.In(c.cfg.Location).Add(c.cfg.Buffer))
	log.Ctx(ctx).InfoContext(
		ctx,
		"found latest stored data",
		slog.String("measurement", measurement),
		slog.Time("latest", latest),
		slog.String("date", next.Format(types.DateFormat)),
	)
	return next, nil
}

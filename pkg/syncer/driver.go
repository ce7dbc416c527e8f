package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/raterudder/energysync/pkg/log"
	"github.com/raterudder/energysync/pkg/mapper"
	"github.com/raterudder/energysync/pkg/retailer"
	"github.com/raterudder/energysync/pkg/storage"
	"github.com/raterudder/energysync/pkg/types"
)

// Report summarizes one run of the driver.
type Report struct {
	RunID    string         `json:"runID"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Dates    []string       `json:"dates"`
	Written  map[string]int `json:"written"`
	Skips    []types.Skip   `json:"skips"`
	// LastDate is the last day fully written, empty if none were.
	LastDate string `json:"lastDate,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Driver catches the store up with the retailer one local day at a time.
type Driver struct {
	cfg    Config
	source retailer.Source
	db     storage.Database
	cursor *Cursor
	mapper *mapper.Mapper
	now    func() time.Time
}

// NewDriver returns a driver syncing source into db.
func NewDriver(cfg Config, source retailer.Source, db storage.Database) *Driver {
	return &Driver{
		cfg:    cfg,
		source: source,
		db:     db,
		cursor: NewCursor(db, cfg),
		mapper: mapper.New(cfg.Location),
		now:    time.Now,
	}
}

// Location returns the local time days are synced in.
func (d *Driver) Location() *time.Location {
	return d.cfg.Location
}

// Run syncs every day from the next pending date up to, but not including,
// today. The first failure aborts the run; the next run resumes from whatever
// the store holds.
func (d *Driver) Run(ctx context.Context) (Report, error) {
	report := Report{
		RunID:   uuid.NewString(),
		Started: d.now(),
		Written: map[string]int{},
	}
	ctx = log.WithAttrs(ctx, slog.String("runID", report.RunID))

	err := d.run(ctx, &report)
	report.Finished = d.now()
	if err != nil {
		report.Error = err.Error()
		log.Ctx(ctx).ErrorContext(
			ctx,
			"sync aborted",
			slog.Any("error", err),
			slog.Int("days", len(report.Dates)),
		)
		return report, err
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"sync complete",
		slog.Int("days", len(report.Dates)),
		slog.Int("electricity", report.Written[types.MeasurementElectricity]),
		slog.Int("cost", report.Written[types.MeasurementCost]),
		slog.Int("skips", len(report.Skips)),
	)
	return report, nil
}

func (d *Driver) run(ctx context.Context, report *Report) error {
	log.Ctx(ctx).InfoContext(ctx, "sync starting")

	token, err := d.source.Login(ctx)
	if err != nil {
		return err
	}
	account, err := d.source.Account(ctx, token)
	if err != nil {
		return err
	}

	next, err := d.cursor.NextPendingDate(ctx, types.MeasurementElectricity)
	if err != nil {
		return err
	}
	today := types.Day(d.now().In(d.cfg.Location))

	for next.Before(today) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.syncDate(ctx, token, account, next, report); err != nil {
			return fmt.Errorf("sync %s: %w", next.Format(types.DateFormat), err)
		}
		report.Dates = append(report.Dates, next.Format(types.DateFormat))
		report.LastDate = next.Format(types.DateFormat)
		next = next.AddDate(0, 0, 1)
	}
	return nil
}

func (d *Driver) syncDate(ctx context.Context, token, account string, date time.Time, report *Report) error {
	ctx = log.WithAttrs(ctx, slog.String("date", date.Format(types.DateFormat)))
	log.Ctx(ctx).InfoContext(ctx, "getting energy data")

	usage, err := d.source.Usage(ctx, token, account, date)
	if err != nil {
		return err
	}
	if err := d.write(ctx, types.MeasurementElectricity, d.mapper.Usage(date, usage), report); err != nil {
		return err
	}

	log.Ctx(ctx).InfoContext(ctx, "getting offerings data")
	offerings, err := d.source.Offerings(ctx, token, account)
	if err != nil {
		return err
	}
	return d.write(ctx, types.MeasurementCost, d.mapper.Offerings(date, offerings), report)
}

func (d *Driver) write(ctx context.Context, measurement string, res mapper.Result, report *Report) error {
	for _, skip := range res.Skips {
		log.Ctx(ctx).WarnContext(
			ctx,
			"skipped record",
			slog.String("measurement", measurement),
			slog.String("source", skip.Source),
			slog.String("reason", skip.Reason),
		)
	}
	report.Skips = append(report.Skips, res.Skips...)

	if len(res.Points) > 0 {
		if err := d.db.WriteBatch(ctx, res.Points); err != nil {
			return fmt.Errorf("failed to write %s points: %w", measurement, err)
		}
	}
	report.Written[measurement] += len(res.Points)
	log.Ctx(ctx).InfoContext(
		ctx,
		"wrote points",
		slog.String("measurement", measurement),
		slog.Int("points", len(res.Points)),
		slog.Int("skips", len(res.Skips)),
	)
	return nil
}

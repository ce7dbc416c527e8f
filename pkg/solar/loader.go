// Package solar loads solar production estimates from a spreadsheet into the
// store.
package solar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energysync/pkg/common"
	"github.com/raterudder/energysync/pkg/log"
	"github.com/raterudder/energysync/pkg/mapper"
	"github.com/raterudder/energysync/pkg/storage"
	"github.com/raterudder/energysync/pkg/types"
)

// Config controls which workbook is loaded and how its rows are dated.
type Config struct {
	File      string
	HeaderRow int
	// StartDate anchors the year of the estimate's 12 month cycle.
	StartDate time.Time
	Location  *time.Location
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if c.File == "" {
		return errors.New("file is required")
	}
	if c.HeaderRow < 1 {
		return fmt.Errorf("header row must be positive: %d", c.HeaderRow)
	}
	if c.Location == nil {
		return errors.New("location is required")
	}
	if c.StartDate.IsZero() {
		return errors.New("start date is required")
	}
	return nil
}

// Configured registers the loader flags and returns the config once flags
// are parsed. Invalid values panic at startup.
func Configured() *Config {
	file := lflag.String("excel-file", common.Getenv("EXCEL_FILE", "SolarEstimate.xlsx"), "Solar estimate workbook to load")
	headerRow := lflag.Int("solar-header-row", DefaultHeaderRow, "1-based row holding the column headers")
	start := lflag.String("energy-start", common.Getenv("ENERGY_START", "2024-01-01"), "Date (YYYY-MM-DD) the estimate's 12 month cycle starts on")
	offset := lflag.Duration("local-offset", types.DefaultLocalOffset, "Fixed UTC offset of the estimate's local time")

	c := &Config{}

	lflag.Do(func() {
		c.File = *file
		c.HeaderRow = *headerRow
		c.Location = types.FixedLocation(*offset)
		d, err := types.ParseDate(*start, c.Location)
		if err != nil {
			panic(fmt.Sprintf("invalid energy-start: %v", err))
		}
		c.StartDate = d
		if err := c.Validate(); err != nil {
			panic(fmt.Sprintf("invalid solar config: %v", err))
		}
	})

	return c
}

// Summary is the outcome of a load.
type Summary struct {
	Sheets  int
	Written int
	Skips   []types.Skip
}

// Loader writes the workbook's estimates into the store.
type Loader struct {
	cfg    Config
	db     storage.Database
	mapper *mapper.Mapper
}

// NewLoader returns a loader writing into db.
func NewLoader(cfg Config, db storage.Database) *Loader {
	return &Loader{
		cfg:    cfg,
		db:     db,
		mapper: mapper.New(cfg.Location),
	}
}

// Load reads every sheet and writes one batch per sheet. Rows that can't be
// converted are logged and skipped.
func (l *Loader) Load(ctx context.Context) (Summary, error) {
	log.Ctx(ctx).InfoContext(
		ctx,
		"loading solar estimate",
		slog.String("file", l.cfg.File),
		slog.String("start", l.cfg.StartDate.Format(types.DateFormat)),
	)

	sheets, err := ReadSheets(l.cfg.File, l.cfg.HeaderRow)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Sheets: len(sheets)}
	for _, sheet := range sheets {
		sctx := log.WithAttrs(ctx, slog.String("sheet", sheet.Name))
		log.Ctx(sctx).InfoContext(sctx, "processing sheet", slog.Int("rows", len(sheet.Rows)))

		res := l.mapper.SolarRows(l.cfg.StartDate, sheet.Rows)
		for _, skip := range res.Skips {
			log.Ctx(sctx).WarnContext(sctx, "skipped row", slog.String("source", skip.Source), slog.String("reason", skip.Reason))
		}
		summary.Skips = append(summary.Skips, res.Skips...)

		if len(res.Points) == 0 {
			continue
		}
		if err := l.db.WriteBatch(sctx, res.Points); err != nil {
			return summary, fmt.Errorf("failed to write sheet %s: %w", sheet.Name, err)
		}
		summary.Written += len(res.Points)
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"solar estimate loaded",
		slog.Int("points", summary.Written),
		slog.Int("sheets", summary.Sheets),
		slog.Int("skips", len(summary.Skips)),
	)
	return summary, nil
}

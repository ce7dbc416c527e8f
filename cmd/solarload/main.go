package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raterudder/energysync/pkg/log"
	"github.com/raterudder/energysync/pkg/solar"
	"github.com/raterudder/energysync/pkg/storage"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	s := storage.Configured()
	cfg := solar.Configured()

	lflag.Configure()

	var level slog.Level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}
	log.SetDefaultLogLevel(level)

	ctx := context.Background()
	summary, err := solar.NewLoader(*cfg, s).Load(ctx)
	if closeErr := s.Close(); closeErr != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", closeErr)
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "solar load failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"done",
		slog.Int("points", summary.Written),
		slog.Int("sheets", summary.Sheets),
	)
}

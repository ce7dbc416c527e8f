// Package scheduler runs a job at start and then on a schedule, daily at a
// fixed local time by default.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energysync/pkg/log"
	"github.com/raterudder/energysync/pkg/syncer"
	"github.com/robfig/cron/v3"
)

// Clock is the source of time for the scheduler.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Job is run by the scheduler. Errors are logged and never stop the schedule.
type Job func(ctx context.Context) error

// Scheduler runs a job once immediately and then at every time the schedule
// fires in loc. Runs never overlap because they all happen on the Run
// goroutine.
type Scheduler struct {
	clock    Clock
	schedule cron.Schedule
	loc      *time.Location

	mu      sync.Mutex
	nextRun time.Time
}

// New returns a scheduler for at, either a "HH:MM" local time of day or a
// standard cron expression evaluated in loc.
func New(clock Clock, at string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		return nil, errors.New("location is required")
	}
	expr := at
	if t, err := time.Parse("15:04", at); err == nil {
		expr = fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q (expected HH:MM or a cron expression): %w", at, err)
	}
	return &Scheduler{
		clock:    clock,
		schedule: schedule,
		loc:      loc,
	}, nil
}

// Configured registers the schedule flag and returns a scheduler on the wall
// clock in the driver's location.
func Configured(driver *syncer.Driver) *Scheduler {
	at := lflag.String("sync-at", "05:00", "Local time of day (HH:MM) or cron expression to run the sync at")

	s := &Scheduler{}

	lflag.Do(func() {
		ns, err := New(RealClock, *at, driver.Location())
		if err != nil {
			panic(fmt.Sprintf("invalid sync-at: %v", err))
		}
		s.clock = ns.clock
		s.schedule = ns.schedule
		s.loc = ns.loc
	})

	return s
}

// Next returns the first time the schedule fires strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	return s.schedule.Next(now.In(s.loc))
}

// NextRun returns when the job runs next, or the zero time when Run isn't
// waiting on the schedule.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

func (s *Scheduler) setNextRun(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}

// Run runs job now and then at every scheduled time until ctx is done.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	defer s.setNextRun(time.Time{})
	for {
		if err := job(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "scheduled job failed", slog.Any("error", err))
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		now := s.clock.Now()
		next := s.Next(now)
		s.setNextRun(next)
		log.Ctx(ctx).InfoContext(ctx, "next sync scheduled", slog.Time("at", next), slog.Duration("in", next.Sub(now)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(next.Sub(now)):
		}
	}
}

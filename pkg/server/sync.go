package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/raterudder/energysync/pkg/common"
	"github.com/raterudder/energysync/pkg/log"
	"github.com/raterudder/energysync/pkg/syncer"
)

// ErrSyncRunning is returned by Sync while another sync holds the lock.
var ErrSyncRunning = errors.New("sync already running")

// Sync runs the sync job unless one is already running. It is shared by the
// scheduler and the HTTP trigger so runs never overlap.
func (s *Server) Sync(ctx context.Context) error {
	_, err := s.sync(ctx)
	return err
}

func (s *Server) sync(ctx context.Context) (syncer.Report, error) {
	if !s.running.TryLock() {
		log.Ctx(ctx).WarnContext(ctx, "sync already running")
		return syncer.Report{}, ErrSyncRunning
	}
	defer s.running.Unlock()

	report, err := s.runner.Run(ctx)
	s.reportMu.Lock()
	s.lastReport = &report
	s.reportMu.Unlock()
	return report, err
}

// LastReport returns the report of the most recent run, if any.
func (s *Server) LastReport() (syncer.Report, bool) {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()
	if s.lastReport == nil {
		return syncer.Report{}, false
	}
	return *s.lastReport, true
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := s.sync(ctx)
	if errors.Is(err, ErrSyncRunning) {
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "triggered sync failed", slog.Any("error", err))
		writeJSON(w, report, http.StatusInternalServerError)
		return
	}
	writeJSON(w, report, http.StatusOK)
}

type statusResponse struct {
	Version    string         `json:"version"`
	Running    bool           `json:"running"`
	NextRun    *time.Time     `json:"nextRun,omitempty"`
	LastReport *syncer.Report `json:"lastReport,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version: common.Version(),
	}
	if s.running.TryLock() {
		s.running.Unlock()
	} else {
		resp.Running = true
	}
	if s.schedule != nil {
		if next := s.schedule.NextRun(); !next.IsZero() {
			resp.NextRun = &next
		}
	}
	if report, ok := s.LastReport(); ok {
		resp.LastReport = &report
	}
	writeJSON(w, resp, http.StatusOK)
}

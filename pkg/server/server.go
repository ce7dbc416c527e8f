package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/energysync/pkg/log"
	"github.com/raterudder/energysync/pkg/syncer"
)

// SyncRunner runs one sync job.
type SyncRunner interface {
	Run(ctx context.Context) (syncer.Report, error)
}

// NextRunner reports when the next scheduled sync is.
type NextRunner interface {
	NextRun() time.Time
}

// Server exposes the sync job's status and lets it be triggered over HTTP.
// It also owns the lock that keeps scheduled and triggered runs apart.
type Server struct {
	runner   SyncRunner
	schedule NextRunner

	listenAddr string
	serverName string
	httpServer *http.Server

	syncEmails    []string
	oidcVerifiers map[string]tokenVerifier
	bypassAuth    bool

	running sync.Mutex

	reportMu   sync.Mutex
	lastReport *syncer.Report
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(runner SyncRunner, schedule NextRunner) *Server {
	srv := &Server{
		runner:     runner,
		schedule:   schedule,
		serverName: "energysync",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	syncAudience := lflag.String("sync-audience", "", "Google ID token audience required for POST /api/sync. Empty disables auth.")
	syncEmails := lflag.String("sync-email", "", "comma-delimited list of ID token emails allowed to trigger a sync")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		if *syncEmails != "" {
			srv.syncEmails = strings.Split(*syncEmails, ",")
			for i, email := range srv.syncEmails {
				srv.syncEmails[i] = strings.TrimSpace(email)
			}
		}
		if *syncAudience == "" {
			srv.bypassAuth = true
			return
		}
		if len(srv.syncEmails) == 0 {
			log.Ctx(context.Background()).Error("sync-email is required when sync-audience is set")
			os.Exit(1)
		}
		provider, err := oidc.NewProvider(context.Background(), "https://accounts.google.com")
		if err != nil {
			log.Ctx(context.Background()).Error("failed to initialize Google OIDC provider", slog.Any("error", err))
			os.Exit(1)
		}
		srv.oidcVerifiers = map[string]tokenVerifier{
			"google": emailVerifier(provider.Verifier(&oidc.Config{ClientID: *syncAudience})),
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/status", s.handleStatus)
	apiMux.Handle("POST /api/sync", s.authMiddleware(http.HandlerFunc(s.handleSync)))

	mux := http.NewServeMux()
	mux.Handle("/api/", apiMux)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, struct {
		Error string `json:"error"`
	}{Error: msg}, code)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

// Package server exposes the screening pipeline over HTTP and WebSocket
// for local browser-based clients.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pdscreen/internal/config"
	"pdscreen/internal/logging"
	"pdscreen/internal/store"
)

// Server is the screening daemon's HTTP surface.
type Server struct {
	cfg    *config.Config
	log    *logging.Logger
	store  *store.Store
	holder *BaselineHolder

	httpServer *http.Server
}

// New assembles a Server over an open store. The baseline is loaded
// eagerly; a missing baseline is not an error, endpoints degrade to
// feature-only responses.
func New(cfg *config.Config, log *logging.Logger, st *store.Store) (*Server, error) {
	holder := NewBaselineHolder(st, log.WithComponent("baseline"))
	if err := holder.Reload(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		log:    log,
		store:  st,
		holder: holder,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}
	return s, nil
}

// Handler returns the route mux, exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/baseline/status", s.handleBaselineStatus)
	mux.HandleFunc("POST /api/baseline/session", s.handleBaselineSession)
	mux.HandleFunc("POST /api/keystroke/analyze", s.handleKeystrokeAnalyze)
	mux.HandleFunc("POST /api/blink/analyze", s.handleBlinkAnalyze)
	mux.HandleFunc("POST /api/aggregate/analyze", s.handleAggregateAnalyze)
	mux.HandleFunc("GET /api/screenings", s.handleScreenings)
	mux.HandleFunc("GET /ws/keystroke", s.handleKeystrokeWS)
	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully. When
// storage watching is enabled, baseline reloads follow external writes
// to the database file.
func (s *Server) Run(ctx context.Context) error {
	var stopWatch func()
	if s.cfg.Storage.WatchForChanges {
		stop, err := s.watchStorage(ctx)
		if err != nil {
			s.log.Warn("storage watch unavailable", "error", err)
		} else {
			stopWatch = stop
		}
	}
	if stopWatch != nil {
		defer stopWatch()
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Server.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

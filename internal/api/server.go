// Package api exposes the thin operational HTTP surface of the
// ingestion service: health endpoints, metrics and asynchronous run
// triggers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pokedexfr/ingest/internal/config"
	"github.com/pokedexfr/ingest/internal/ingest"
	"github.com/pokedexfr/ingest/internal/metrics"
)

// Runner is the subset of the orchestrator the API triggers.
type Runner interface {
	Seed(ctx context.Context, opts ingest.Options) (ingest.Summary, error)
	SyncCries(ctx context.Context, opts ingest.CrySyncOptions) (ingest.CrySyncSummary, error)
	FixRegions(ctx context.Context) (ingest.RegionFixSummary, error)
}

// Pinger reports whether the persistence layer is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the orchestrator.
type Server struct {
	router chi.Router
	runner Runner
	pinger Pinger
	runs   *runStore
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, pinger Pinger, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runner: runner,
		pinger: pinger,
		runs:   newRunStore(),
		cfg:    cfg,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/runs", func(r chi.Router) {
			r.Post("/seed", s.startSeedRun)
			r.Post("/cries", s.startCryRun)
			r.Post("/regions", s.startRegionRun)
			r.Get("/{run_id}", s.getRun)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type seedRunRequest struct {
	Limit       *int `json:"limit"`
	Offset      *int `json:"offset"`
	Concurrency *int `json:"concurrency"`
	Retries     *int `json:"retries"`
	Reset       bool `json:"reset"`
}

type cryRunRequest struct {
	Force bool `json:"force"`
	Limit int  `json:"limit"`
}

func (s *Server) startSeedRun(w http.ResponseWriter, r *http.Request) {
	var req seedRunRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	opts := ingest.Options{
		Limit:         valueOrDefault(req.Limit, s.cfg.Seed.Limit),
		Offset:        valueOrDefault(req.Offset, s.cfg.Seed.Offset),
		Concurrency:   valueOrDefault(req.Concurrency, s.cfg.Seed.Concurrency),
		Retries:       req.Retries,
		ProgressEvery: s.cfg.Seed.ProgressEvery,
		Reset:         req.Reset,
	}
	runID := s.startRun("seed", func(ctx context.Context, id string) (any, error) {
		opts.RunID = id
		return s.runner.Seed(ctx, opts)
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) startCryRun(w http.ResponseWriter, r *http.Request) {
	var req cryRunRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	runID := s.startRun("cries", func(ctx context.Context, _ string) (any, error) {
		return s.runner.SyncCries(ctx, ingest.CrySyncOptions{Force: req.Force, Limit: req.Limit})
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) startRegionRun(w http.ResponseWriter, _ *http.Request) {
	runID := s.startRun("regions", func(ctx context.Context, _ string) (any, error) {
		return s.runner.FixRegions(ctx)
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.get(chi.URLParam(r, "run_id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// startRun registers a run and executes it detached from the request
// context so client disconnects cannot abort it.
func (s *Server) startRun(kind string, fn func(ctx context.Context, id string) (any, error)) string {
	id := uuid.NewString()
	s.runs.create(Run{
		ID:        id,
		Kind:      kind,
		Status:    RunRunning,
		Submitted: time.Now().UTC(),
	})
	go func() {
		summary, err := fn(context.Background(), id)
		if err != nil {
			s.logger.Warn("run failed", zap.String("run_id", id), zap.String("kind", kind), zap.Error(err))
		}
		s.runs.finish(id, summary, err)
	}()
	return id
}

func decodeBody(r *http.Request, out any) error {
	err := json.NewDecoder(r.Body).Decode(out)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func valueOrDefault(ptr *int, def int) int {
	if ptr == nil {
		return def
	}
	return *ptr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

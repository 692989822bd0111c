package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jwseok/lotto645-harvester/internal/aggregate"
	"github.com/jwseok/lotto645-harvester/internal/clock"
	"github.com/jwseok/lotto645-harvester/internal/config"
	"github.com/jwseok/lotto645-harvester/internal/draw"
	"github.com/jwseok/lotto645-harvester/internal/progress/sinks"
	"github.com/jwseok/lotto645-harvester/internal/rounds"
	"github.com/jwseok/lotto645-harvester/internal/storage/snapshot"
)

// latestRoundTTL bounds how long a cached resolution is served before the
// resolver is consulted again.
const latestRoundTTL = time.Minute

// ErrBusy is returned by a Trigger while a harvest run is still in flight.
var ErrBusy = errors.New("harvest already running")

// Trigger starts a harvest run asynchronously and returns its run ID.
type Trigger interface {
	StartHarvest(ctx context.Context, req HarvestRequest) (string, error)
}

// HarvestRequest selects what a triggered run covers. Rounds takes
// precedence; with no rounds the run covers Window rounds back from the
// newest. Hint seeds round discovery.
type HarvestRequest struct {
	Rounds []draw.Round `json:"rounds,omitempty"`
	Window int          `json:"window,omitempty"`
	Hint   draw.Round   `json:"hint,omitempty"`
}

// SnapshotLoader reads back the last persisted snapshot.
type SnapshotLoader interface {
	Load(ctx context.Context) (*aggregate.Snapshot, error)
}

// ReportSource exposes accumulated run reports.
type ReportSource interface {
	Report(runID string) (sinks.Report, bool)
	Latest() (sinks.Report, bool)
}

// Server wires HTTP handlers to the resolver, snapshot store, and trigger.
type Server struct {
	router    chi.Router
	resolver  rounds.Resolver
	snapshots SnapshotLoader
	reports   ReportSource
	trigger   Trigger
	gatherer  prometheus.Gatherer
	clock     clock.Clock
	logger    *zap.Logger
	cfg       config.Config

	mu          sync.Mutex
	cachedRes   rounds.Resolution
	cachedUntil time.Time
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	resolver rounds.Resolver,
	snapshots SnapshotLoader,
	reports ReportSource,
	trigger Trigger,
	gatherer prometheus.Gatherer,
	clk clock.Clock,
	logger *zap.Logger,
	cfg config.Config,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		resolver:  resolver,
		snapshots: snapshots,
		reports:   reports,
		trigger:   trigger,
		gatherer:  gatherer,
		clock:     clk,
		logger:    logger,
		cfg:       cfg,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/metrics", s.metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/snapshot", s.getSnapshot)
		r.Get("/rounds/latest", s.getLatestRound)
		r.Post("/harvest", s.startHarvest)
		r.Route("/runs", func(r chi.Router) {
			r.Get("/latest", s.getLatestRun)
			r.Get("/{run_id}", s.getRun)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Filesystem and upstream dependencies are checked lazily per request;
	// readiness only asserts the wiring is complete.
	if s.resolver == nil || s.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	gatherer := s.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Load(r.Context())
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			writeError(w, http.StatusNotFound, "no snapshot available")
			return
		}
		s.logger.Error("snapshot load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getLatestRound(w http.ResponseWriter, r *http.Request) {
	res, err := s.resolveLatest(r.Context())
	if err != nil {
		s.logger.Error("round resolution failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "round resolution failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// resolveLatest serves a briefly cached resolution so a scrape-happy client
// does not turn every request into upstream probes.
func (s *Server) resolveLatest(ctx context.Context) (rounds.Resolution, error) {
	now := s.clock.Now()

	s.mu.Lock()
	if now.Before(s.cachedUntil) {
		res := s.cachedRes
		s.mu.Unlock()
		return res, nil
	}
	s.mu.Unlock()

	res, err := s.resolver.Resolve(ctx)
	if err != nil {
		return rounds.Resolution{}, err
	}

	s.mu.Lock()
	s.cachedRes = res
	s.cachedUntil = now.Add(latestRoundTTL)
	s.mu.Unlock()
	return res, nil
}

func (s *Server) startHarvest(w http.ResponseWriter, r *http.Request) {
	var req HarvestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	if req.Window < 0 {
		writeError(w, http.StatusBadRequest, "window must be >= 0")
		return
	}
	for _, round := range req.Rounds {
		if round < 1 {
			writeError(w, http.StatusBadRequest, "rounds must be >= 1")
			return
		}
	}

	runID, err := s.trigger.StartHarvest(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			writeError(w, http.StatusConflict, "harvest already running")
			return
		}
		s.logger.Error("harvest trigger failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start harvest")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	report, ok := s.reports.Report(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) getLatestRun(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.reports.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no runs recorded")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// An encode failure here means the client went away mid-response.
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Package status serves a small HTTP surface for watching a run in
// flight: liveness, the current loop position, persisted history and
// Prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

// Snapshot is the externally visible position of the run.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	State     string    `json:"state"`
	Iteration int       `json:"iteration"`
	Residual  float64   `json:"residual"`
	Retries   int       `json:"retries"`
	StartedAt time.Time `json:"started_at"`
}

// Tracker accumulates lifecycle events into a Snapshot. Safe for
// concurrent use; the loop writes, HTTP handlers read.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a tracker positioned before the first iteration.
func NewTracker(runID string) *Tracker {
	return &Tracker{snap: Snapshot{
		RunID:     runID,
		State:     string(domain.RunInit),
		StartedAt: time.Now().UTC(),
	}}
}

// Snapshot returns the current position.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Hooks returns lifecycle callbacks that keep the tracker current.
func (t *Tracker) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnIterationStart: func(ctx context.Context, e *domain.IterationEvent) {
			t.mu.Lock()
			t.snap.State = string(domain.RunRunning)
			t.snap.Iteration = e.Index
			t.mu.Unlock()
		},
		OnIterationEnd: func(ctx context.Context, e *domain.IterationEvent) {
			t.mu.Lock()
			t.snap.Residual = e.Residual
			t.mu.Unlock()
		},
		OnRetry: func(ctx context.Context, e *domain.EngineEvent) {
			t.mu.Lock()
			t.snap.Retries++
			t.mu.Unlock()
		},
		OnFinish: func(ctx context.Context, e *domain.FinishEvent) {
			t.mu.Lock()
			t.snap.State = string(e.Status)
			t.mu.Unlock()
		},
	}
}

// NewHandler builds the router. store and registry may be nil, in which
// case the corresponding endpoints report their absence.
func NewHandler(tracker *Tracker, store ports.RecordStore, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, tracker.Snapshot())
	})

	r.Get("/records", func(w http.ResponseWriter, req *http.Request) {
		if store == nil {
			http.Error(w, "no record store configured", http.StatusNotFound)
			return
		}
		runID := req.URL.Query().Get("run_id")
		if runID == "" {
			runID = tracker.Snapshot().RunID
		}
		history, err := store.History(req.Context(), runID)
		if err != nil {
			if errors.Is(err, domain.ErrRunNotFound) {
				http.Error(w, "run not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, history)
	})

	if registry != nil {
		r.Get("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	return r
}

// Server runs the status handler on its own listener.
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// NewServer binds the handler to addr.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in a background goroutine until Shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server failed", "err", err)
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("status response encode failed", "err", err)
	}
}

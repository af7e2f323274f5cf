// Package observability exposes convergence runs as Prometheus metrics
// fed through domain.LifecycleHooks.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/voltlab/electric/pkg/domain"
)

// Metrics holds the driver's instruments on a private registry, so
// embedding applications keep control of their own metric namespace.
type Metrics struct {
	registry *prometheus.Registry

	iterations     *prometheus.CounterVec
	retries        *prometheus.CounterVec
	runs           *prometheus.CounterVec
	residual       *prometheus.GaugeVec
	engineDuration prometheus.Histogram
}

// NewMetrics creates and registers the driver's instruments.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "electric_iterations_total",
				Help: "Completed convergence iterations",
			},
			[]string{"run_id"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "electric_engine_retries_total",
				Help: "Engine invocations retried after a transient failure",
			},
			[]string{"run_id"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "electric_runs_total",
				Help: "Finished runs by terminal status",
			},
			[]string{"status"},
		),
		residual: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "electric_residual",
				Help: "Residual of the most recent iteration",
			},
			[]string{"run_id"},
		),
		engineDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "electric_engine_duration_seconds",
				Help:    "Wall-clock duration of engine invocations",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
	}
	m.registry.MustRegister(m.iterations, m.retries, m.runs, m.residual, m.engineDuration)
	return m
}

// Registry returns the registry holding the driver's instruments, for
// mounting behind promhttp.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Hooks returns lifecycle callbacks that feed the instruments. Merge
// them with application hooks via domain.MergeHooks.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnIterationEnd: func(ctx context.Context, e *domain.IterationEvent) {
			m.iterations.WithLabelValues(e.RunID).Inc()
			m.residual.WithLabelValues(e.RunID).Set(e.Residual)
		},
		OnEngineExit: func(ctx context.Context, e *domain.EngineEvent) {
			m.engineDuration.Observe(e.Duration.Seconds())
		},
		OnRetry: func(ctx context.Context, e *domain.EngineEvent) {
			m.retries.WithLabelValues(e.RunID).Inc()
		},
		OnFinish: func(ctx context.Context, e *domain.FinishEvent) {
			m.runs.WithLabelValues(string(e.Status)).Inc()
		},
	}
}

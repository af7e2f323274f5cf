package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/voltlab/electric/pkg/domain"
)

func TestMetricsHooks(t *testing.T) {
	m := NewMetrics()
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnIterationEnd(ctx, &domain.IterationEvent{RunID: "r1", Index: 1, Residual: 0.5})
	hooks.OnIterationEnd(ctx, &domain.IterationEvent{RunID: "r1", Index: 2, Residual: 0.25})
	hooks.OnEngineExit(ctx, &domain.EngineEvent{RunID: "r1", Duration: 300 * time.Millisecond})
	hooks.OnRetry(ctx, &domain.EngineEvent{RunID: "r1"})
	hooks.OnFinish(ctx, &domain.FinishEvent{RunID: "r1", Status: domain.RunConverged, Iterations: 2})

	assert.InDelta(t, 2, testutil.ToFloat64(m.iterations.WithLabelValues("r1")), 0)
	assert.InDelta(t, 0.25, testutil.ToFloat64(m.residual.WithLabelValues("r1")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.retries.WithLabelValues("r1")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runs.WithLabelValues("converged")), 0)
}

func TestMetrics_MergesWithUserHooks(t *testing.T) {
	m := NewMetrics()

	var seen int
	user := domain.LifecycleHooks{
		OnIterationEnd: func(ctx context.Context, e *domain.IterationEvent) { seen++ },
	}

	merged := domain.MergeHooks(m.Hooks(), user)
	merged.OnIterationEnd(context.Background(), &domain.IterationEvent{RunID: "r1", Residual: 0.1})

	assert.Equal(t, 1, seen)
	assert.InDelta(t, 1, testutil.ToFloat64(m.iterations.WithLabelValues("r1")), 0)
}

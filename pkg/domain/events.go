package domain

import (
	"context"
	"time"
)

// IterationEvent describes the start or end of one convergence cycle.
type IterationEvent struct {
	RunID    string        `json:"run_id"`
	Index    int           `json:"index"`
	Residual float64       `json:"residual,omitempty"`
	WallTime time.Duration `json:"wall_time,omitempty"`
}

// EngineEvent describes one engine subprocess invocation.
type EngineEvent struct {
	RunID     string        `json:"run_id"`
	Iteration int           `json:"iteration"`
	Attempt   int           `json:"attempt"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// FinishEvent describes run termination.
type FinishEvent struct {
	RunID      string   `json:"run_id"`
	Status     RunState `json:"status"`
	Iterations int      `json:"iterations"`
}

// LifecycleHooks defines callbacks for driver observability. Any field
// may be nil. Hooks run synchronously on the loop goroutine and must
// not block.
type LifecycleHooks struct {
	OnIterationStart func(context.Context, *IterationEvent)
	OnIterationEnd   func(context.Context, *IterationEvent)
	OnEngineLaunch   func(context.Context, *EngineEvent)
	OnEngineExit     func(context.Context, *EngineEvent)
	OnRetry          func(context.Context, *EngineEvent)
	OnFinish         func(context.Context, *FinishEvent)
}

// MergeHooks chains two hook sets; a's callbacks fire before b's.
func MergeHooks(a, b LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnIterationStart: chain(a.OnIterationStart, b.OnIterationStart),
		OnIterationEnd:   chain(a.OnIterationEnd, b.OnIterationEnd),
		OnEngineLaunch:   chain(a.OnEngineLaunch, b.OnEngineLaunch),
		OnEngineExit:     chain(a.OnEngineExit, b.OnEngineExit),
		OnRetry:          chain(a.OnRetry, b.OnRetry),
		OnFinish:         chain(a.OnFinish, b.OnFinish),
	}
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}

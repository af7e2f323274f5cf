package domain

import "time"

// IterationRecord is one append-only entry of a run's history. The
// convergence decision is made on Residual; the rest is diagnostics.
type IterationRecord struct {
	// Index is the 1-based iteration number.
	Index int `json:"index"`

	// Residual is the maximum absolute parameter change produced by the
	// update rule in this iteration.
	Residual float64 `json:"residual"`

	// Retried reports whether the engine invocation needed its single
	// permitted retry.
	Retried bool `json:"retried"`

	// WallTime is the elapsed wall-clock time of the full iteration
	// (launch, decode, update, encode).
	WallTime time.Duration `json:"wall_time"`
}

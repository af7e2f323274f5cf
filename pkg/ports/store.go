package ports

import (
	"context"

	"github.com/voltlab/electric/pkg/domain"
)

// RecordStore persists per-run iteration history and status so that
// progress is inspectable during and after a run.
type RecordStore interface {
	// Append adds one iteration record to the run's history.
	Append(ctx context.Context, runID string, rec domain.IterationRecord) error

	// History returns the full, ordered record history for a run.
	// Returns domain.ErrRunNotFound for unknown runs.
	History(ctx context.Context, runID string) ([]domain.IterationRecord, error)

	// SetStatus records the run's state machine position.
	SetStatus(ctx context.Context, runID string, status domain.RunState) error

	// Status returns the last recorded state. Returns
	// domain.ErrRunNotFound for unknown runs.
	Status(ctx context.Context, runID string) (domain.RunState, error)
}

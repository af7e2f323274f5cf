// Package middleware wraps a ports.RecordStore to add behavior without
// touching the store implementations.
package middleware

import (
	"context"
	"log/slog"

	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

// Middleware allows wrapping a RecordStore to add behavior.
type Middleware func(ports.RecordStore) ports.RecordStore

// Chain applies middlewares left to right, so the first one sees calls
// first.
func Chain(store ports.RecordStore, mws ...Middleware) ports.RecordStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

type loggingMiddleware struct {
	next   ports.RecordStore
	logger *slog.Logger
}

// NewLoggingMiddleware logs every store operation at debug level.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.RecordStore) ports.RecordStore {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) Append(ctx context.Context, runID string, rec domain.IterationRecord) error {
	err := m.next.Append(ctx, runID, rec)
	m.logger.Debug("store append", "run_id", runID, "iteration", rec.Index, "err", err)
	return err
}

func (m *loggingMiddleware) History(ctx context.Context, runID string) ([]domain.IterationRecord, error) {
	records, err := m.next.History(ctx, runID)
	m.logger.Debug("store history", "run_id", runID, "records", len(records), "err", err)
	return records, err
}

func (m *loggingMiddleware) SetStatus(ctx context.Context, runID string, status domain.RunState) error {
	err := m.next.SetStatus(ctx, runID, status)
	m.logger.Debug("store set status", "run_id", runID, "status", status, "err", err)
	return err
}

func (m *loggingMiddleware) Status(ctx context.Context, runID string) (domain.RunState, error) {
	status, err := m.next.Status(ctx, runID)
	m.logger.Debug("store get status", "run_id", runID, "status", status, "err", err)
	return status, err
}

type teeMiddleware struct {
	next   ports.RecordStore
	mirror ports.RecordStore
	logger *slog.Logger
}

// NewTeeMiddleware mirrors every write to a secondary store. Reads come
// from the primary; mirror failures are logged, never propagated, so a
// slow or flaky mirror cannot fail the run.
func NewTeeMiddleware(mirror ports.RecordStore, logger *slog.Logger) Middleware {
	return func(next ports.RecordStore) ports.RecordStore {
		return &teeMiddleware{next: next, mirror: mirror, logger: logger}
	}
}

func (m *teeMiddleware) Append(ctx context.Context, runID string, rec domain.IterationRecord) error {
	if err := m.mirror.Append(ctx, runID, rec); err != nil {
		m.logger.Warn("mirror store append failed", "run_id", runID, "err", err)
	}
	return m.next.Append(ctx, runID, rec)
}

func (m *teeMiddleware) History(ctx context.Context, runID string) ([]domain.IterationRecord, error) {
	return m.next.History(ctx, runID)
}

func (m *teeMiddleware) SetStatus(ctx context.Context, runID string, status domain.RunState) error {
	if err := m.mirror.SetStatus(ctx, runID, status); err != nil {
		m.logger.Warn("mirror store set status failed", "run_id", runID, "err", err)
	}
	return m.next.SetStatus(ctx, runID, status)
}

func (m *teeMiddleware) Status(ctx context.Context, runID string) (domain.RunState, error) {
	return m.next.Status(ctx, runID)
}

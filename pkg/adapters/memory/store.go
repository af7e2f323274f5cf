// Package memory implements ports.RecordStore in memory.
package memory

import (
	"context"
	"sync"

	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

// Store keeps run histories in process memory. Safe for concurrent use;
// suitable for tests and single-shot CLI runs.
type Store struct {
	mu      sync.RWMutex
	records map[string][]domain.IterationRecord
	status  map[string]domain.RunState
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[string][]domain.IterationRecord),
		status:  make(map[string]domain.RunState),
	}
}

var _ ports.RecordStore = (*Store)(nil)

// Append adds a record to the run's history.
func (s *Store) Append(ctx context.Context, runID string, rec domain.IterationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[runID] = append(s.records[runID], rec)
	return nil
}

// History returns a copy of the run's history so callers cannot mutate
// store state through the returned slice.
func (s *Store) History(ctx context.Context, runID string) ([]domain.IterationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, ok := s.records[runID]
	if !ok {
		if _, hasStatus := s.status[runID]; !hasStatus {
			return nil, domain.ErrRunNotFound
		}
	}

	out := make([]domain.IterationRecord, len(records))
	copy(out, records)
	return out, nil
}

// SetStatus records the run state.
func (s *Store) SetStatus(ctx context.Context, runID string, status domain.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[runID] = status
	return nil
}

// Status returns the last recorded run state.
func (s *Store) Status(ctx context.Context, runID string) (domain.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.status[runID]
	if !ok {
		return "", domain.ErrRunNotFound
	}
	return status, nil
}

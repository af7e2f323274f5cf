// Package redis implements ports.RecordStore and ports.Locker on
// Redis, for deployments where several driver instances share a
// machine or a run's history must outlive the process.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

// Store implements ports.RecordStore using Redis lists.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithTTL sets the expiration for run keys. Zero means no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for run data.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "electric:run:",
		ttl:    0,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

var _ ports.RecordStore = (*Store)(nil)

// Client exposes the underlying connection, so a Locker can share it.
func (s *Store) Client() *backend.Client { return s.client }

// Close releases the connection pool.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) recordsKey(runID string) string { return s.prefix + runID + ":records" }
func (s *Store) statusKey(runID string) string  { return s.prefix + runID + ":status" }

// Append pushes a record onto the run's history list.
func (s *Store) Append(ctx context.Context, runID string, rec domain.IterationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.recordsKey(runID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.recordsKey(runID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// History returns the run's ordered record history.
func (s *Store) History(ctx context.Context, runID string) ([]domain.IterationRecord, error) {
	raw, err := s.client.LRange(ctx, s.recordsKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(raw) == 0 {
		exists, err := s.client.Exists(ctx, s.statusKey(runID)).Result()
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		if exists == 0 {
			return nil, domain.ErrRunNotFound
		}
	}

	out := make([]domain.IterationRecord, 0, len(raw))
	for i, item := range raw {
		var rec domain.IterationRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// SetStatus stores the run state.
func (s *Store) SetStatus(ctx context.Context, runID string, status domain.RunState) error {
	if err := s.client.Set(ctx, s.statusKey(runID), string(status), s.ttl).Err(); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// Status loads the run state.
func (s *Store) Status(ctx context.Context, runID string) (domain.RunState, error) {
	val, err := s.client.Get(ctx, s.statusKey(runID)).Result()
	if err == backend.Nil {
		return "", domain.ErrRunNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get status: %w", err)
	}
	return domain.RunState(val), nil
}

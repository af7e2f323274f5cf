package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltlab/electric/internal/logging"
	"github.com/voltlab/electric/pkg/adapters/memory"
	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/persistence/middleware"
	"github.com/voltlab/electric/pkg/ports"
)

// failingStore rejects every write.
type failingStore struct{}

func (failingStore) Append(context.Context, string, domain.IterationRecord) error {
	return errors.New("append refused")
}
func (failingStore) History(context.Context, string) ([]domain.IterationRecord, error) {
	return nil, domain.ErrRunNotFound
}
func (failingStore) SetStatus(context.Context, string, domain.RunState) error {
	return errors.New("set status refused")
}
func (failingStore) Status(context.Context, string) (domain.RunState, error) {
	return "", domain.ErrRunNotFound
}

func TestLoggingMiddleware_ContractPreserved(t *testing.T) {
	store := middleware.Chain(memory.NewStore(), middleware.NewLoggingMiddleware(logging.NewNop()))
	ports.RunRecordStoreContract(t, store)
}

func TestLoggingMiddleware_LogsOperations(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelDebug)

	store := middleware.Chain(memory.NewStore(), middleware.NewLoggingMiddleware(logger))
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "r1", domain.IterationRecord{Index: 1}))
	_, err := store.History(ctx, "r1")
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "store append")
	assert.Contains(t, buf.String(), "store history")
}

func TestTeeMiddleware(t *testing.T) {
	primary := memory.NewStore()
	mirror := memory.NewStore()
	ctx := context.Background()

	store := middleware.Chain(primary, middleware.NewTeeMiddleware(mirror, logging.NewNop()))

	require.NoError(t, store.Append(ctx, "r1", domain.IterationRecord{Index: 1, Residual: 0.5}))
	require.NoError(t, store.SetStatus(ctx, "r1", domain.RunRunning))

	t.Run("Writes Reach Both Stores", func(t *testing.T) {
		for _, s := range []ports.RecordStore{primary, mirror} {
			history, err := s.History(ctx, "r1")
			require.NoError(t, err)
			require.Len(t, history, 1)

			status, err := s.Status(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, domain.RunRunning, status)
		}
	})

	t.Run("Mirror Failure Is Swallowed", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.NewWithWriter(&buf, slog.LevelDebug)

		store := middleware.Chain(memory.NewStore(), middleware.NewTeeMiddleware(failingStore{}, logger))
		assert.NoError(t, store.Append(ctx, "r2", domain.IterationRecord{Index: 1}))
		assert.Contains(t, buf.String(), "mirror store append failed")
	})

	t.Run("Reads Come From Primary", func(t *testing.T) {
		store := middleware.Chain(primary, middleware.NewTeeMiddleware(failingStore{}, logging.NewNop()))
		history, err := store.History(ctx, "r1")
		require.NoError(t, err)
		assert.Len(t, history, 1)
	})
}

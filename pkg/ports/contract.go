package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltlab/electric/pkg/domain"
)

// RunRecordStoreContract exercises the RecordStore semantics every
// backend must satisfy. Adapter tests call this against their own
// instance.
func RunRecordStoreContract(t *testing.T, store RecordStore) {
	ctx := context.Background()

	t.Run("Unknown Run Is Not Found", func(t *testing.T) {
		_, err := store.History(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrRunNotFound)

		_, err = store.Status(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Append Preserves Order", func(t *testing.T) {
		const runID = "contract-order"
		for i := 1; i <= 3; i++ {
			rec := domain.IterationRecord{
				Index:    i,
				Residual: 1.0 / float64(i),
				WallTime: time.Duration(i) * time.Millisecond,
			}
			require.NoError(t, store.Append(ctx, runID, rec))
		}

		history, err := store.History(ctx, runID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		for i, rec := range history {
			assert.Equal(t, i+1, rec.Index)
		}
		assert.InDelta(t, 0.5, history[1].Residual, 1e-12)
	})

	t.Run("Status Round Trip", func(t *testing.T) {
		const runID = "contract-status"
		require.NoError(t, store.SetStatus(ctx, runID, domain.RunRunning))

		status, err := store.Status(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunRunning, status)

		require.NoError(t, store.SetStatus(ctx, runID, domain.RunConverged))
		status, err = store.Status(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunConverged, status)
	})

	t.Run("Runs Are Isolated", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, "contract-a", domain.IterationRecord{Index: 1}))
		require.NoError(t, store.Append(ctx, "contract-b", domain.IterationRecord{Index: 1}))

		a, err := store.History(ctx, "contract-a")
		require.NoError(t, err)
		assert.Len(t, a, 1)
	})
}

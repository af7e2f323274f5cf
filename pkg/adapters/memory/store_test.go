package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltlab/electric/pkg/adapters/memory"
	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunRecordStoreContract(t, memory.NewStore())
}

func TestMemoryStore_HistoryIsolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	require.NoError(t, store.Append(ctx, "run", domain.IterationRecord{Index: 1, Residual: 0.5}))

	history, err := store.History(ctx, "run")
	require.NoError(t, err)
	history[0].Residual = 99

	again, err := store.History(ctx, "run")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, again[0].Residual, 1e-12)
}

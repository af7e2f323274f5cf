package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "github.com/voltlab/electric/pkg/adapters/redis"
	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

func newTestClient(t *testing.T) *backend.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedisStore_Contract(t *testing.T) {
	store := redisadapter.NewFromClient(newTestClient(t))
	ports.RunRecordStoreContract(t, store)
}

func TestRedisStore_Prefix(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	a := redisadapter.NewFromClient(client, redisadapter.WithPrefix("a:"))
	b := redisadapter.NewFromClient(client, redisadapter.WithPrefix("b:"))

	require.NoError(t, a.Append(ctx, "run", domain.IterationRecord{Index: 1}))

	_, err := b.History(ctx, "run")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRedisLocker(t *testing.T) {
	client := newTestClient(t)
	locker := redisadapter.NewLocker(client, "electric:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "workdir", time.Minute)
	require.NoError(t, err)

	t.Run("Second Acquire Blocks Until Context Ends", func(t *testing.T) {
		blocked, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		defer cancel()

		_, err := locker.Lock(blocked, "workdir", time.Minute)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Acquire Succeeds After Unlock", func(t *testing.T) {
		require.NoError(t, unlock(ctx))

		unlock2, err := locker.Lock(ctx, "workdir", time.Minute)
		require.NoError(t, err)
		require.NoError(t, unlock2(ctx))
	})
}

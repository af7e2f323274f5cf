package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a held lock.
type UnlockFunc func(ctx context.Context) error

// Locker guards exclusive use of a working directory. The engine
// mutates shared input/output files in place, so no two runs may share
// a directory; the runtime acquires the lock for the whole run.
type Locker interface {
	// Lock acquires the lock for key, blocking until acquired or the
	// context is canceled. The returned UnlockFunc MUST be called.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

package electric

import (
	"path/filepath"

	"github.com/voltlab/electric/internal/config"
	"github.com/voltlab/electric/pkg/adapters/memory"
	redisadapter "github.com/voltlab/electric/pkg/adapters/redis"
	"github.com/voltlab/electric/pkg/adapters/sqlite"
	"github.com/voltlab/electric/pkg/ports"
)

// NewFromConfig builds a driver from a loaded configuration file.
// Relative exchange file paths are resolved against the working
// directory.
func NewFromConfig(c *config.Config, opts ...Option) *Driver {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.Engine.WorkDir, p)
	}

	return New(Config{
		RunID:          c.RunID,
		Engine:         c.Engine.Path,
		Args:           c.Engine.Args,
		WorkDir:        c.Engine.WorkDir,
		Template:       resolve(c.Files.Template),
		Params:         resolve(c.Files.Params),
		State:          resolve(c.Files.State),
		Tolerance:      c.Convergence.Tolerance,
		MaxIterations:  c.Convergence.MaxIterations,
		Mixing:         c.Convergence.Mixing,
		Polarizability: c.Convergence.Polarizability,
		StepTimeout:    c.Engine.StepTimeout.Std(),
	}, opts...)
}

// OpenStore builds the record store the configuration selects. The
// returned close function is always safe to call.
func OpenStore(c *config.Config) (ports.RecordStore, func() error, error) {
	switch c.Store.Backend {
	case "", "memory":
		return memory.NewStore(), noClose, nil
	case "sqlite":
		store, err := sqlite.Open(c.Store.Path)
		if err != nil {
			return nil, noClose, err
		}
		return store, store.Close, nil
	default: // redis, validated upstream
		store := redisadapter.New(c.Store.Addr, c.Store.Password, c.Store.DB)
		return store, store.Close, nil
	}
}

// OpenLocker returns a distributed locker when the configured store
// backend supports one, nil otherwise.
func OpenLocker(store ports.RecordStore) ports.Locker {
	if rs, ok := store.(*redisadapter.Store); ok {
		return redisadapter.NewLocker(rs.Client(), "electric:lock:")
	}
	return nil
}

func noClose() error { return nil }

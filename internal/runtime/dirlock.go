package runtime

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// lockFileName marks a working directory as claimed by a run.
const lockFileName = ".electric.lock"

// lockDir takes exclusive local ownership of the working directory by
// creating a lockfile. The engine mutates input/output files in place,
// so two concurrent runs in one directory would corrupt each other.
func lockDir(dir string) (release func(), err error) {
	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("working directory %s is already in use by another run (remove %s if stale)", dir, path)
		}
		return nil, fmt.Errorf("lock working directory: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	return func() { os.Remove(path) }, nil
}

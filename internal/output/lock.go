package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/maauso/srtsegment/internal/failure"
)

// LockFileName is the lock file created in the output directory.
const LockFileName = ".srtsegment.lock"

// ErrLocked is returned when another run holds the output directory.
var ErrLocked = errors.New("output directory is locked by another run")

// Lock is an exclusive hold on an output directory.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the output directory lock without blocking.
func AcquireLock(dir string) (*Lock, error) {
	lockPath := filepath.Join(dir, LockFileName)
	fl := flock.New(lockPath)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, failure.IO(lockPath, failure.NoIndex, fmt.Errorf("lock output directory: %w", err))
	}
	if !ok {
		return nil, failure.IO(lockPath, failure.NoIndex, ErrLocked)
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release unlocks and removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || !l.fl.Locked() {
		return nil
	}
	// The file goes away before the lock does.
	if err := os.Remove(l.fl.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = l.fl.Unlock()
		return fmt.Errorf("remove lock file: %w", err)
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("unlock output directory: %w", err)
	}
	return nil
}

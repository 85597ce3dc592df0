package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process already holds the instance lock.
var ErrLocked = errors.New("another instance holds the lock")

// InstanceLock keeps a single bot process per lock file.
type InstanceLock struct {
	lock *flock.Flock
}

// AcquireInstanceLock takes a non-blocking exclusive lock on path.
// An empty path disables locking and returns a nil lock.
func AcquireInstanceLock(path string) (*InstanceLock, error) {
	if path == "" {
		return nil, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock dir: %w", err)
		}
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: %w", path, ErrLocked)
	}
	return &InstanceLock{lock: lock}, nil
}

// Path returns the lock file location.
func (l *InstanceLock) Path() string {
	if l == nil {
		return ""
	}
	return l.lock.Path()
}

// Release unlocks the file. It is safe to call on a nil lock.
func (l *InstanceLock) Release() error {
	if l == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", l.lock.Path(), err)
	}
	return nil
}

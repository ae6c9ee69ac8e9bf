package fileutil

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the advisory lock file placed in stage output directories.
const LockFileName = ".vlmprep.lock"

// ErrLocked reports that another process holds the output directory lock.
var ErrLocked = errors.New("output directory is locked by another vlmprep process")

// DirLock is an exclusive advisory lock over an output directory.
type DirLock struct {
	path string
	lock *flock.Flock
}

// LockDir acquires the output lock for dir without blocking. The directory
// must already exist.
func LockDir(dir string) (*DirLock, error) {
	path := filepath.Join(dir, LockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &DirLock{path: path, lock: lock}, nil
}

// Unlock releases the lock. The lock file stays in place: removing it after
// release would let a waiter hold the old inode while a newcomer locks a new
// file at the same path.
func (l *DirLock) Unlock() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

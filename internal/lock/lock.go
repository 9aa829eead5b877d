// Package lock provides an exclusive advisory lock on a directory.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the name of the lock file created inside the locked directory.
const FileName = "LOCK"

// ErrLocked is returned when the directory is already locked, by this process
// or another one.
var ErrLocked = errors.New("lock: directory already in use")

// Lock is a held directory lock.
type Lock struct {
	f *os.File
}

// Acquire takes an exclusive, non-blocking lock on dir. It fails fast with
// ErrLocked if the lock is held elsewhere.
//
// The lock is tied to the open file handle and is released by the operating
// system if the process dies.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec // G302: lock file is not secret
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Release unlocks the directory. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.f == nil {
		return nil
	}
	err := errors.Join(unlockFile(l.f), l.f.Close())
	l.f = nil
	return err
}

// Package lock guards a staging directory against concurrent publish
// runs. Two runs over the same batch would race each other's pre-checks
// and double-publish.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// lockFileName lives inside the staging directory, next to the batch it
// protects.
const lockFileName = ".airgap.lock"

// RunLock is an exclusive per-staging-directory lock implemented via a
// PID file + flock(2). Keep the lock alive by keeping the file
// descriptor open.
type RunLock struct {
	path string
	f    *os.File
}

// AcquireRunLock acquires an exclusive non-blocking lock for
// stagingDir, writes the current PID into the lock file, and returns a
// handle that must be released.
func AcquireRunLock(stagingDir string) (*RunLock, error) {
	if stagingDir == "" {
		return nil, fmt.Errorf("staging directory is empty")
	}
	lockPath := filepath.Join(stagingDir, lockFileName)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("another run holds %s: %w", lockPath, err)
	}

	if err := f.Truncate(0); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("write pid: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &RunLock{path: lockPath, f: f}, nil
}

func (l *RunLock) Path() string { return l.path }

func (l *RunLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}

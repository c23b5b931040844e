package engine

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrLocked is returned when another process holds the run lock for an
// identity.
var ErrLocked = errors.New("identity is locked by another process")

// runLock is a pid lock file guarding one identity's catalog and library
// against concurrent runs.
type runLock struct {
	path string
}

func newRunLock(path string) *runLock {
	return &runLock{path: path}
}

// Acquire creates the lock file exclusively and writes the current pid.
// It fails fast if the file already exists.
func (l *runLock) Acquire() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			if pid, readErr := l.readPID(); readErr == nil {
				return fmt.Errorf("%w: lock file %q held by pid %d", ErrLocked, l.path, pid)
			}
			return fmt.Errorf("%w: lock file %q already exists", ErrLocked, l.path)
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if _, err := fmt.Fprintf(f, "%d", os.Getpid()); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return nil
}

// Release removes the lock file, but only if it records the current process'
// pid. Releasing an unheld lock is a no-op.
func (l *runLock) Release() error {
	pid, err := l.readPID()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read lock file: %w", err)
	}

	if pid != os.Getpid() {
		return fmt.Errorf("lock file %q is not owned by current process (held by pid %d)", l.path, pid)
	}
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (l *runLock) readPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("lock file %q is malformed: %w", l.path, err)
	}
	return pid, nil
}

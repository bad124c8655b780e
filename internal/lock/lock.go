// Package lock provides the exclusive run lock. Cron triggers can overlap
// under load; only one invocation may mutate the alert state or write
// backups at a time, and the loser exits cleanly reporting "already running".
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLockHeld is returned when another invocation holds the lock.
var ErrLockHeld = errors.New("lock: already held by another invocation")

// Lock is an exclusive file lock. Acquisition creates the file with
// O_CREATE|O_EXCL; existence of the file is the lock.
type Lock struct {
	path string
}

// New returns a Lock at path.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Acquire takes the lock, writing this process's pid into the lock file. A
// lock file whose pid no longer exists is stale (a crashed run) and is
// broken and re-acquired.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("lock: create dir: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(l.path)
				return fmt.Errorf("lock: write pid: %w", errors.Join(werr, cerr))
			}
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("lock: create %s: %w", l.path, err)
		}
		if !l.stale() {
			return fmt.Errorf("%w (%s)", ErrLockHeld, l.path)
		}
		// Stale lock from a crashed run; remove and retry once.
		_ = os.Remove(l.path)
	}
	return fmt.Errorf("%w (%s)", ErrLockHeld, l.path)
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lock: release: %w", err)
	}
	return nil
}

// stale reports whether the lock file names a pid that is no longer alive.
// An unreadable or malformed lock file is treated as held, never stale:
// breaking a live lock is worse than skipping a run.
func (l *Lock) stale() bool {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	// Signal 0 probes process existence without touching it.
	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	return proc.Signal(syscall.Signal(0)) != nil
}

package playbook

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// fileLock serializes playbook read-modify-write cycles across processes.
// The in-process mutex in Store covers goroutines; this covers worker
// processes of different tasks curating concurrently. It is the same
// PID-stamped lock-file technique used for worker locks: O_EXCL creation,
// stale locks from dead processes are cleaned up.
type fileLock struct {
	path string
}

// acquire blocks until the lock is obtained or the wait budget runs out.
func (l *fileLock) acquire(wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, writeErr := fmt.Fprintf(f, "%d", os.Getpid())
			f.Close()
			if writeErr != nil {
				os.Remove(l.path)
				return fmt.Errorf("failed to write playbook lock: %w", writeErr)
			}
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create playbook lock: %w", err)
		}

		l.reapStale()

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for playbook lock at %s", l.path)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// release removes the lock file. Releasing an absent lock is a no-op.
func (l *fileLock) release() {
	os.Remove(l.path)
}

// reapStale removes the lock file if its owning process is gone or its
// contents are unreadable.
func (l *fileLock) reapStale() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr != nil {
		os.Remove(l.path)
		return
	}
	if pid == os.Getpid() {
		return
	}
	process, err := os.FindProcess(pid)
	if err != nil || process.Signal(syscall.Signal(0)) != nil {
		os.Remove(l.path)
	}
}

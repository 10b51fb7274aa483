package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const lockFileName = "worker.lock"

// WorkerLock guarantees at most one live worker process per task. The lock
// file lives in the task directory and records the worker's PID. Stale locks
// left by dead processes are cleaned up automatically.
type WorkerLock struct {
	path string
}

// NewWorkerLock creates a lock manager for the given task directory.
func NewWorkerLock(taskDir string) *WorkerLock {
	return &WorkerLock{
		path: filepath.Join(taskDir, lockFileName),
	}
}

// Acquire attempts to acquire the lock for the given worker PID.
// Returns an error if the lock is held by another running process.
func (l *WorkerLock) Acquire(pid int) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		_, writeErr := fmt.Fprintf(f, "%d", pid)
		f.Close()
		if writeErr != nil {
			os.Remove(l.path)
			return fmt.Errorf("failed to write lock file: %w", writeErr)
		}
		return nil
	}

	if !os.IsExist(err) {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	holder, ok, readErr := l.holder()
	if readErr != nil {
		return readErr
	}
	if ok {
		return fmt.Errorf("task already has a running worker (PID %d)", holder)
	}

	// Stale or invalid lock was removed by holder(); try once more.
	f, err = os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("lock acquired by another process during retry")
		}
		return fmt.Errorf("failed to create lock file on retry: %w", err)
	}
	_, writeErr := fmt.Fprintf(f, "%d", pid)
	f.Close()
	if writeErr != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock file on retry: %w", writeErr)
	}
	return nil
}

// Reassign rewrites the recorded holder PID. The caller must already hold
// the lock; used when a parent acquires on behalf of a child it is about to
// spawn.
func (l *WorkerLock) Reassign(pid int) error {
	if err := os.WriteFile(l.path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("failed to reassign lock file: %w", err)
	}
	return nil
}

// Release removes the lock file. Releasing an absent lock is a no-op.
func (l *WorkerLock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// IsLocked reports whether the lock is currently held by a live process.
// Stale and invalid lock files are removed and reported as unlocked.
func (l *WorkerLock) IsLocked() (bool, error) {
	_, ok, err := l.holder()
	return ok, err
}

// Terminate kills any live worker holding the lock and removes the lock
// file. It returns the PID that was terminated, or 0 if no live worker was
// found. A SIGTERM is sent first; if the process survives a short grace
// period it is killed.
func (l *WorkerLock) Terminate() (int, error) {
	pid, ok, err := l.holder()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	process, err := os.FindProcess(pid)
	if err == nil {
		_ = process.Signal(syscall.SIGTERM)
		for i := 0; i < 10 && processExists(pid); i++ {
			time.Sleep(100 * time.Millisecond)
		}
		if processExists(pid) {
			_ = process.Kill()
		}
	}

	if err := l.Release(); err != nil {
		return pid, err
	}
	return pid, nil
}

// holder returns the PID of the live lock owner. Stale and invalid lock
// files are removed; absence is reported as not held.
func (l *WorkerLock) holder() (int, bool, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read lock file: %w", err)
	}

	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr != nil {
		if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
			return 0, false, fmt.Errorf("failed to remove invalid lock file: %w", removeErr)
		}
		return 0, false, nil
	}

	if processExists(pid) {
		return pid, true, nil
	}

	if removeErr := os.Remove(l.path); removeErr != nil && !os.IsNotExist(removeErr) {
		return 0, false, fmt.Errorf("failed to remove stale lock file: %w", removeErr)
	}
	return 0, false, nil
}

// processExists checks if a process with the given PID is running.
// Signal 0 checks for existence without sending a signal.
func processExists(pid int) bool {
	if pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion/playmaker/internal/task"
)

// CommandContext is the function used to create exec.Cmd instances.
// It can be replaced in tests to mock worker launches.
var CommandContext = exec.CommandContext

// StageRunner executes one stage for one task. The default implementation
// launches an isolated worker process; tests swap in a fake.
type StageRunner interface {
	Run(ctx context.Context, t *task.Task, stage task.Stage, taskDir string) error
}

// ProcessRunner runs a stage in a child worker process, so a crash or hang
// in the generation logic cannot corrupt supervisor state. The parent and
// worker share nothing but the task directory.
type ProcessRunner struct {
	// Binary is the executable to launch; defaults to the current binary.
	Binary string
}

// Run launches `<binary> worker --task <id> --stage <stage>` and holds the
// task's worker lock for the child's lifetime. The worker's stderr becomes
// the recorded error text on failure.
func (r *ProcessRunner) Run(ctx context.Context, t *task.Task, stage task.Stage, taskDir string) error {
	bin := r.Binary
	if bin == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate worker binary: %w", err)
		}
		bin = exe
	}

	// The lock is taken before the child exists, so two racing supervisors
	// can never both have a live worker. It is reassigned to the child's
	// PID once known, keeping the lock terminable if this process dies.
	lock := task.NewWorkerLock(taskDir)
	if err := lock.Acquire(os.Getpid()); err != nil {
		return err
	}
	defer lock.Release()

	cmd := CommandContext(ctx, bin, "worker", "--task", t.ID, "--stage", string(stage))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch worker: %w", err)
	}
	if err := lock.Reassign(cmd.Process.Pid); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return err
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return errors.New(msg)
	}
	return nil
}

package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/dgallion/playmaker/internal/artifact"
	"github.com/dgallion/playmaker/internal/curation"
	"github.com/dgallion/playmaker/internal/playbook"
	"github.com/dgallion/playmaker/internal/recovery"
	"github.com/dgallion/playmaker/internal/task"
)

// Supervisor owns the task's persisted state record. It validates
// preconditions before each transition, launches one isolated worker per
// stage, and finalizes status strictly from the worker's reported outcome.
// At most one live worker per task id exists at any time.
type Supervisor struct {
	tasks    *task.Store
	playbook *playbook.Store
	engine   *curation.Engine
	planner  *recovery.Planner
	runner   StageRunner
}

// New creates a supervisor. A nil runner defaults to launching worker
// processes.
func New(tasks *task.Store, pb *playbook.Store, engine *curation.Engine, runner StageRunner) *Supervisor {
	if runner == nil {
		runner = &ProcessRunner{}
	}
	return &Supervisor{
		tasks:    tasks,
		playbook: pb,
		engine:   engine,
		planner:  recovery.NewPlanner(tasks),
		runner:   runner,
	}
}

// RunOptions control how far one Run call drives the pipeline.
type RunOptions struct {
	// AutoConfirm skips the awaiting-confirm gate after extraction.
	AutoConfirm bool
	// Feedback continues past completion into the evaluation cycle.
	Feedback bool
	// FeedbackMode overrides the task's persisted evaluation strategy.
	// Empty reuses the persisted mode, defaulting to auto.
	FeedbackMode string
	// OnStage, if set, is called just before each stage launches. Used for
	// progress display.
	OnStage func(stage task.Stage, attempt, maxAttempts int)
}

// CreateTask creates a new task in pending status.
func (s *Supervisor) CreateTask(name string, maxRetries int) (*task.Task, error) {
	return s.tasks.Create(name, maxRetries)
}

// runningStatus maps each stage to the status the task holds while the
// stage's worker is alive.
var runningStatus = map[task.Stage]task.Status{
	task.StageExtracting: task.StatusPending,
	task.StageRetrieving: task.StatusRetrieving,
	task.StageGenerating: task.StatusGenerating,
	task.StageEvaluating: task.StatusEvaluating,
	task.StageReflecting: task.StatusReflecting,
	task.StageCurating:   task.StatusCurating,
}

// successStatus maps stages whose completion advances the task to a new
// milestone status. Stages absent here leave the task in the running status
// with the output artifact marking completion.
var successStatus = map[task.Stage]task.Status{
	task.StageExtracting: task.StatusAwaitingConfirm,
	task.StageGenerating: task.StatusCompleted,
	task.StageCurating:   task.StatusFeedbackCompleted,
}

// Run drives the task's pipeline stage by stage until it reaches a gate
// (awaiting confirmation, completed without feedback requested), finishes,
// fails, or is cancelled. The returned task reflects the final persisted
// state.
func (s *Supervisor) Run(ctx context.Context, id string, opts RunOptions) (*task.Task, error) {
	for {
		t, err := s.tasks.Load(id)
		if err != nil {
			return nil, err
		}
		dir := s.tasks.Dir(id)
		store := artifact.NewStore(dir)
		events := task.NewEventLogger(dir)

		if s.tasks.CancelRequested(id) && t.Status.Active() {
			return s.finalizeCancel(t, store, events)
		}

		next, ok := task.NextStage(t.Status, store.Exists)
		if !ok {
			// A finished phase left mid-finalization (e.g. a crash between
			// the artifact write and the status advance) is finalized here.
			switch t.Status {
			case task.StatusPending:
				if err := t.Advance(task.StatusAwaitingConfirm); err != nil {
					return t, err
				}
				if err := s.tasks.Save(t); err != nil {
					return t, err
				}
				continue
			case task.StatusGenerating:
				if err := t.Advance(task.StatusCompleted); err != nil {
					return t, err
				}
				if err := s.tasks.Save(t); err != nil {
					return t, err
				}
				continue
			case task.StatusCurating:
				if err := t.Advance(task.StatusFeedbackCompleted); err != nil {
					return t, err
				}
				return t, s.tasks.Save(t)
			}
			return t, nil
		}

		// Gates.
		if t.Status == task.StatusAwaitingConfirm && !opts.AutoConfirm {
			return t, nil
		}
		if t.Status == task.StatusCompleted && !opts.Feedback {
			return t, nil
		}

		// The evaluation strategy is established on the first feedback
		// attempt and reused afterwards unless explicitly overridden.
		if next == task.StageEvaluating {
			if opts.FeedbackMode != "" {
				t.FeedbackMode = opts.FeedbackMode
			} else if t.FeedbackMode == "" {
				t.FeedbackMode = task.FeedbackAuto
			}
		}

		if err := s.preflight(t, next, store); err != nil {
			return t, err
		}

		// A stale worker from a previous attempt is terminated, never
		// raced.
		if _, err := task.NewWorkerLock(dir).Terminate(); err != nil {
			return t, fmt.Errorf("failed to clear stale worker: %w", err)
		}

		if t.Status != runningStatus[next] {
			if err := t.Advance(runningStatus[next]); err != nil {
				return t, err
			}
		}
		if err := s.tasks.Save(t); err != nil {
			return t, err
		}

		if opts.OnStage != nil {
			opts.OnStage(next, t.RetryCount+1, t.MaxRetries+1)
		}
		runErr := s.runner.Run(ctx, t, next, dir)
		if runErr != nil {
			if ctx.Err() != nil || s.tasks.CancelRequested(id) {
				return s.finalizeCancel(t, store, events)
			}
			if err := t.Fail(next, runErr.Error()); err != nil {
				return t, err
			}
			if err := s.tasks.Save(t); err != nil {
				return t, err
			}
			return t, fmt.Errorf("stage %s failed: %s", next, runErr.Error())
		}

		if to, ok := successStatus[next]; ok {
			if err := t.Advance(to); err != nil {
				return t, err
			}
		}
		if err := s.tasks.Save(t); err != nil {
			return t, err
		}
	}
}

// preflight validates a stage's preconditions: its input artifacts must be
// present and the playbook must exist and be readable for stages that
// consult it.
func (s *Supervisor) preflight(t *task.Task, stage task.Stage, store *artifact.Store) error {
	spec, err := stage.Spec()
	if err != nil {
		return err
	}
	for _, name := range spec.Keep {
		if !store.Exists(name) {
			return fmt.Errorf("cannot run stage %s: artifact %s is missing", stage, name)
		}
	}

	if stage == task.StageGenerating || stage == task.StageCurating {
		if !s.playbook.Exists() {
			return fmt.Errorf("playbook not found; run 'playmaker init' first")
		}
		if _, err := s.playbook.Load(); err != nil {
			return fmt.Errorf("playbook is not readable: %w", err)
		}
	}
	return nil
}

// finalizeCancel transitions an active task to cancelled, recording the
// stage in flight, and clears the cancellation flag.
func (s *Supervisor) finalizeCancel(t *task.Task, store *artifact.Store, events *task.EventLogger) (*task.Task, error) {
	stage, ok := task.NextStage(t.Status, store.Exists)
	if !ok {
		stage = task.StageGenerating
	}
	if err := t.Cancel(stage); err != nil {
		return t, err
	}
	if err := s.tasks.Save(t); err != nil {
		return t, err
	}
	s.tasks.ClearCancel(t.ID)
	events.TaskCancelled(stage)
	return t, nil
}

// Cancel requests cancellation of an active task, terminates any live
// worker, and finalizes the task state.
func (s *Supervisor) Cancel(id string) (*task.Task, error) {
	t, err := s.tasks.Load(id)
	if err != nil {
		return nil, err
	}
	if !t.Status.Active() {
		return t, fmt.Errorf("task %s is %s; only active tasks can be cancelled", id, t.Status)
	}

	if err := s.tasks.RequestCancel(id); err != nil {
		return t, err
	}
	dir := s.tasks.Dir(id)
	if _, err := task.NewWorkerLock(dir).Terminate(); err != nil {
		return t, fmt.Errorf("failed to terminate worker: %w", err)
	}

	return s.finalizeCancel(t, artifact.NewStore(dir), task.NewEventLogger(dir))
}

// Resume computes and applies a recovery plan: roll back the playbook if
// requested, discard artifacts the plan rejects, and place the task into its
// resume status with the retry accounting the plan prescribes. The next Run
// call re-executes from there.
func (s *Supervisor) Resume(id string, opts recovery.Options) (*recovery.Plan, *task.Task, error) {
	t, err := s.tasks.Load(id)
	if err != nil {
		return nil, nil, err
	}

	plan, err := s.planner.BuildPlan(t, opts)
	if err != nil {
		return nil, t, err
	}

	dir := s.tasks.Dir(id)
	store := artifact.NewStore(dir)
	events := task.NewEventLogger(dir)

	if plan.PlaybookAction == recovery.ActionRollback {
		s.rollbackPlaybook(plan, store, events)
	}

	for _, name := range plan.Remove {
		if err := store.Remove(name); err != nil {
			return plan, t, err
		}
	}

	t.RetryCount += plan.RetryCountDelta
	strategy := string(plan.Stage)
	if opts.Clean {
		strategy = "clean"
	}
	t.ResumeTo(plan.ResumeStatus, task.RetryRecord{
		Timestamp:      time.Now(),
		Operation:      plan.Operation,
		RetryCount:     t.RetryCount,
		Strategy:       strategy,
		PlaybookAction: string(plan.PlaybookAction),
	})
	s.tasks.ClearCancel(id)

	if err := s.tasks.Save(t); err != nil {
		return plan, t, err
	}
	events.TaskResumed(plan.ResumeStatus, t.RetryCount, string(plan.PlaybookAction))
	return plan, t, nil
}

// rollbackPlaybook reverses the task's curation record. Any failure here
// degrades to a warning on the plan; it never blocks an otherwise-valid
// recovery.
func (s *Supervisor) rollbackPlaybook(plan *recovery.Plan, store *artifact.Store, events *task.EventLogger) {
	var record curation.Record
	if err := store.Read(artifact.CurationRecord, &record); err != nil {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("playbook rollback skipped: %v", err))
		return
	}
	warnings, err := s.engine.Rollback(&record)
	plan.Warnings = append(plan.Warnings, warnings...)
	if err != nil {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("playbook rollback skipped: %v", err))
		return
	}
	events.PlaybookRolledBack(len(record.Operations))
}

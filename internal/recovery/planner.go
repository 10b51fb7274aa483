package recovery

import (
	"fmt"

	"github.com/dgallion/playmaker/internal/artifact"
	"github.com/dgallion/playmaker/internal/task"
)

// PlaybookAction tells the caller what to do with the task's prior curation
// contribution before resuming.
type PlaybookAction string

const (
	// ActionNone retains the bullets the task already contributed.
	ActionNone PlaybookAction = "none"
	// ActionRollback reverses the task's curation record before resuming.
	ActionRollback PlaybookAction = "rollback"
)

// Operation names recorded in retry history.
const (
	OpRetry      = "retry"
	OpResume     = "resume"
	OpRegenerate = "regenerate"
)

// Options are the caller's requested recovery knobs.
type Options struct {
	// Force overrides the retry ceiling, non-retryable errors, and allows
	// regenerating a terminal task.
	Force bool
	// TargetStage explicitly overrides stage resolution.
	TargetStage task.Stage
	// Clean discards every artifact and resumes from the initial state.
	Clean bool
	// DiscardPlaybook rolls back the task's curation contribution instead
	// of retaining it.
	DiscardPlaybook bool
}

// Plan is a concrete recovery plan: which artifacts to keep, which to
// discard, which status to resume into, and what the next executable stage
// is. The supervisor applies it; the planner never mutates task state.
type Plan struct {
	TaskID          string
	Operation       string
	Stage           task.Stage
	ResumeStatus    task.Status
	Keep            []artifact.Name
	Remove          []artifact.Name
	PlaybookAction  PlaybookAction
	RetryCountDelta int
	// IntegrityCompromised is set when a kept artifact failed verification
	// and was demoted to removal; clean mode is recommended to the caller.
	IntegrityCompromised bool
	Warnings             []string
}

// Planner computes recovery plans from a task's recorded state and the
// artifacts present on disk.
type Planner struct {
	tasks *task.Store
}

// NewPlanner creates a planner over the given task store.
func NewPlanner(tasks *task.Store) *Planner {
	return &Planner{tasks: tasks}
}

// BuildPlan inspects the task record and artifact store and computes a
// recovery plan. Before returning it terminates any still-running worker
// process associated with the task, so the caller can apply the plan without
// racing a stale attempt.
func (p *Planner) BuildPlan(t *task.Task, opts Options) (*Plan, error) {
	plan := &Plan{
		TaskID:         t.ID,
		PlaybookAction: ActionNone,
	}

	// Retryability check.
	switch {
	case t.Status == task.StatusFailed:
		if Classify(t.LastError) == KindNonRetryable && !opts.Force {
			return nil, fmt.Errorf("task %s failed with a non-retryable error (%s); use force to override", t.ID, t.LastError)
		}
		if t.RetryCount >= t.MaxRetries && !opts.Force {
			return nil, fmt.Errorf("task %s reached the retry ceiling (%d/%d); use force to override", t.ID, t.RetryCount, t.MaxRetries)
		}
		plan.Operation = OpRetry
		plan.RetryCountDelta = 1

	case t.Status == task.StatusCancelled:
		// Always resumable, no ceiling, and the count resets: a
		// cancellation is not an error and shouldn't count against it.
		// A recorded non-retryable error still blocks resume unless
		// forced; cancellation doesn't make the environment problem go
		// away.
		if t.LastError != "" && Classify(t.LastError) == KindNonRetryable && !opts.Force {
			return nil, fmt.Errorf("task %s has a non-retryable error recorded (%s); use force to override", t.ID, t.LastError)
		}
		plan.Operation = OpResume
		plan.RetryCountDelta = -t.RetryCount

	case t.Status.Terminal():
		if !opts.Force {
			return nil, fmt.Errorf("task %s is %s; use force to regenerate", t.ID, t.Status)
		}
		plan.Operation = OpRegenerate
		plan.RetryCountDelta = 0

	default:
		return nil, fmt.Errorf("task %s is %s; cancel it before planning a recovery", t.ID, t.Status)
	}

	// Stage resolution.
	stage, clean, err := p.resolveStage(t, opts, plan)
	if err != nil {
		return nil, err
	}

	if clean {
		plan.Stage = task.StageExtracting
		plan.ResumeStatus = task.StatusPending
		plan.Keep = nil
		plan.Remove = append([]artifact.Name(nil), artifact.All...)
	} else {
		spec, err := stage.Spec()
		if err != nil {
			return nil, err
		}
		plan.Stage = stage
		plan.ResumeStatus = spec.ResumeStatus
		plan.Keep = append([]artifact.Name(nil), spec.Keep...)
		plan.Remove = complement(plan.Keep)
	}

	// Integrity verification: every kept artifact must parse and contain
	// its required fields. Failures demote the artifact to removal and
	// annotate the plan; they never abort it.
	store := artifact.NewStore(p.tasks.Dir(t.ID))
	var verified []artifact.Name
	for _, name := range plan.Keep {
		// A kept artifact that was never produced (an explicit stage past
		// the task's progress) is not corruption; it just cannot be kept.
		if !store.Exists(name) {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("artifact %s has not been produced yet and cannot be kept", name))
			continue
		}
		if err := store.Verify(name); err != nil {
			plan.IntegrityCompromised = true
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("artifact %s failed verification (%v); it will be discarded, consider a clean retry", name, err))
			plan.Remove = append(plan.Remove, name)
			continue
		}
		verified = append(verified, name)
	}
	plan.Keep = verified

	// Playbook action: only meaningful when a curation record exists.
	if store.Exists(artifact.CurationRecord) && opts.DiscardPlaybook {
		plan.PlaybookAction = ActionRollback
	}

	// Terminate any conflicting worker before the caller applies the plan.
	lock := task.NewWorkerLock(p.tasks.Dir(t.ID))
	pid, err := lock.Terminate()
	if err != nil {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("failed to terminate stale worker: %v", err))
	} else if pid != 0 {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("terminated stale worker (PID %d)", pid))
	}

	return plan, nil
}

// resolveStage picks the stage to resume at: the explicit override if given,
// otherwise the recorded failure point or last in-flight stage. A terminal
// task regenerates from the generating stage. The clean result is true when
// clean mode was requested or forced by a missing stage record.
func (p *Planner) resolveStage(t *task.Task, opts Options, plan *Plan) (task.Stage, bool, error) {
	if opts.Clean {
		return task.StageExtracting, true, nil
	}
	if opts.TargetStage != "" {
		if !opts.TargetStage.Valid() {
			return "", false, fmt.Errorf("unknown stage: %s", opts.TargetStage)
		}
		return opts.TargetStage, false, nil
	}

	switch t.Status {
	case task.StatusFailed, task.StatusCancelled:
		if t.FailedStage == "" {
			plan.Warnings = append(plan.Warnings, "no stage recorded; falling back to a clean restart")
			return task.StageExtracting, true, nil
		}
		return t.FailedStage, false, nil
	default:
		// Terminal: regenerate keeps requirements and retrieved context
		// and re-runs generation as a fresh attempt.
		return task.StageGenerating, false, nil
	}
}

// complement returns every artifact not in keep, in pipeline order.
func complement(keep []artifact.Name) []artifact.Name {
	kept := make(map[artifact.Name]bool, len(keep))
	for _, name := range keep {
		kept[name] = true
	}
	var out []artifact.Name
	for _, name := range artifact.All {
		if !kept[name] {
			out = append(out, name)
		}
	}
	return out
}

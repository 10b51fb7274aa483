package task

import (
	"fmt"
	"time"
)

// Status is the single source of truth for what may happen to a task next.
type Status string

// Task status constants. The normal path runs pending through completed;
// the optional feedback branch runs evaluating through feedback_completed.
// failed and cancelled are recoverable via a recovery plan.
const (
	StatusPending           Status = "pending"
	StatusAwaitingConfirm   Status = "awaiting_confirm"
	StatusRetrieving        Status = "retrieving"
	StatusGenerating        Status = "generating"
	StatusCompleted         Status = "completed"
	StatusEvaluating        Status = "evaluating"
	StatusReflecting        Status = "reflecting"
	StatusCurating          Status = "curating"
	StatusFeedbackCompleted Status = "feedback_completed"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
)

// Feedback mode constants, persisted on first feedback attempt and reused
// on resume unless explicitly overridden.
const (
	FeedbackAuto     = "auto"
	FeedbackLLMJudge = "llm_judge"
	FeedbackHuman    = "human"
)

// DefaultMaxRetries bounds automatic retries of a failed task.
const DefaultMaxRetries = 3

// RetryRecord is one entry in a task's append-only retry history.
type RetryRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	Operation      string    `json:"operation"`
	PreviousStatus Status    `json:"previous_status"`
	RetryCount     int       `json:"retry_count"`
	Strategy       string    `json:"strategy,omitempty"`
	PlaybookAction string    `json:"playbook_action,omitempty"`
}

// Task is one generation attempt and its optional feedback cycle.
type Task struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	FailedStage  Stage         `json:"failedStage,omitempty"`
	LastError    string        `json:"lastError,omitempty"`
	RetryCount   int           `json:"retryCount"`
	MaxRetries   int           `json:"maxRetries"`
	FeedbackMode string        `json:"feedbackMode,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	RetryHistory []RetryRecord `json:"retryHistory,omitempty"`
}

// successor maps each status to its one legitimate next status under normal
// execution. failed and cancelled are reachable from any active status and
// are handled separately by Fail and Cancel.
var successor = map[Status]Status{
	StatusPending:         StatusAwaitingConfirm,
	StatusAwaitingConfirm: StatusRetrieving,
	StatusRetrieving:      StatusGenerating,
	StatusGenerating:      StatusCompleted,
	StatusCompleted:       StatusEvaluating,
	StatusEvaluating:      StatusReflecting,
	StatusReflecting:      StatusCurating,
	StatusCurating:        StatusFeedbackCompleted,
}

// InvalidTransitionError reports a transition request that does not match the
// task's current status. It is a first-class error, not a silent no-op.
type InvalidTransitionError struct {
	TaskID string
	From   Status
	To     Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: invalid transition %s -> %s", e.TaskID, e.From, e.To)
}

// Advance moves the task to the requested status, rejecting any request that
// is not the single legitimate successor of the current status.
func (t *Task) Advance(to Status) error {
	if successor[t.Status] != to {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, To: to}
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	return nil
}

// Fail transitions the task to failed, recording the stage and error text.
// Only active statuses can fail.
func (t *Task) Fail(stage Stage, errText string) error {
	if !t.Status.Active() {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, To: StatusFailed}
	}
	t.Status = StatusFailed
	t.FailedStage = stage
	t.LastError = errText
	t.UpdatedAt = time.Now()
	return nil
}

// Cancel transitions the task to cancelled, recording the stage in flight.
func (t *Task) Cancel(stage Stage) error {
	if !t.Status.Active() {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, To: StatusCancelled}
	}
	t.Status = StatusCancelled
	t.FailedStage = stage
	t.UpdatedAt = time.Now()
	return nil
}

// ResumeTo forces the task into a resume status as computed by a recovery
// plan. Unlike Advance it does not consult the successor table; the caller is
// expected to have validated the plan. The restore is recorded in history.
func (t *Task) ResumeTo(resume Status, record RetryRecord) {
	record.PreviousStatus = t.Status
	t.Status = resume
	t.FailedStage = ""
	t.LastError = ""
	t.UpdatedAt = time.Now()
	t.RetryHistory = append(t.RetryHistory, record)
}

// Active reports whether the status represents an in-flight pipeline phase.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusAwaitingConfirm, StatusRetrieving, StatusGenerating,
		StatusEvaluating, StatusReflecting, StatusCurating:
		return true
	}
	return false
}

// Terminal reports whether the status ends the represented attempt. Terminal
// tasks may still be regenerated into a new attempt with an explicit force.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFeedbackCompleted
}

package task

import (
	"errors"
	"strings"
	"testing"
)

func TestAdvance_NormalPath(t *testing.T) {
	tk := &Task{ID: "t1", Status: StatusPending}

	path := []Status{
		StatusAwaitingConfirm, StatusRetrieving, StatusGenerating, StatusCompleted,
		StatusEvaluating, StatusReflecting, StatusCurating, StatusFeedbackCompleted,
	}
	for _, next := range path {
		if err := tk.Advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
		if tk.Status != next {
			t.Fatalf("status = %s, want %s", tk.Status, next)
		}
	}
}

func TestAdvance_RejectsSkippedStatus(t *testing.T) {
	tk := &Task{ID: "t1", Status: StatusPending}

	err := tk.Advance(StatusGenerating)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %T", err)
	}
	if invalid.From != StatusPending || invalid.To != StatusGenerating {
		t.Errorf("error records %s -> %s, want pending -> generating", invalid.From, invalid.To)
	}
	if tk.Status != StatusPending {
		t.Errorf("status mutated to %s on rejected transition", tk.Status)
	}
}

func TestAdvance_RejectsBackwardsStatus(t *testing.T) {
	tk := &Task{ID: "t1", Status: StatusGenerating}

	if err := tk.Advance(StatusRetrieving); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestFail_RecordsStageAndError(t *testing.T) {
	tk := &Task{ID: "t1", Status: StatusGenerating}

	if err := tk.Fail(StageGenerating, "timeout contacting model"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.Status != StatusFailed {
		t.Errorf("status = %s, want failed", tk.Status)
	}
	if tk.FailedStage != StageGenerating {
		t.Errorf("failed stage = %s, want generating", tk.FailedStage)
	}
	if tk.LastError != "timeout contacting model" {
		t.Errorf("last error = %q", tk.LastError)
	}
}

func TestFail_RejectsTerminalTask(t *testing.T) {
	tk := &Task{ID: "t1", Status: StatusCompleted}

	if err := tk.Fail(StageGenerating, "boom"); err == nil {
		t.Fatal("expected error, got nil")
	}
	if tk.Status != StatusCompleted {
		t.Errorf("status mutated to %s", tk.Status)
	}
}

func TestCancel_ActiveOnly(t *testing.T) {
	active := &Task{ID: "t1", Status: StatusRetrieving}
	if err := active.Cancel(StageRetrieving); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", active.Status)
	}

	done := &Task{ID: "t2", Status: StatusFeedbackCompleted}
	if err := done.Cancel(StageCurating); err == nil {
		t.Fatal("expected error cancelling a finished task, got nil")
	}

	failed := &Task{ID: "t3", Status: StatusFailed}
	if err := failed.Cancel(StageGenerating); err == nil {
		t.Fatal("expected error cancelling a failed task, got nil")
	}
}

func TestResumeTo_ClearsFailureAndAppendsHistory(t *testing.T) {
	tk := &Task{
		ID:          "t1",
		Status:      StatusFailed,
		FailedStage: StageGenerating,
		LastError:   "timeout",
		RetryCount:  2,
	}

	tk.ResumeTo(StatusRetrieving, RetryRecord{Operation: "retry", RetryCount: 2, Strategy: "generating"})

	if tk.Status != StatusRetrieving {
		t.Errorf("status = %s, want retrieving", tk.Status)
	}
	if tk.FailedStage != "" || tk.LastError != "" {
		t.Errorf("failure fields not cleared: stage=%q err=%q", tk.FailedStage, tk.LastError)
	}
	if len(tk.RetryHistory) != 1 {
		t.Fatalf("retry history length = %d, want 1", len(tk.RetryHistory))
	}
	rec := tk.RetryHistory[0]
	if rec.PreviousStatus != StatusFailed {
		t.Errorf("previous status = %s, want failed", rec.PreviousStatus)
	}
	if rec.Operation != "retry" || rec.Strategy != "generating" {
		t.Errorf("record = %+v", rec)
	}

	// A second resume appends rather than replaces.
	tk.Status = StatusCancelled
	tk.ResumeTo(StatusPending, RetryRecord{Operation: "resume"})
	if len(tk.RetryHistory) != 2 {
		t.Errorf("retry history length = %d, want 2", len(tk.RetryHistory))
	}
}

func TestStatus_ActiveAndTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		active   bool
		terminal bool
	}{
		{StatusPending, true, false},
		{StatusAwaitingConfirm, true, false},
		{StatusRetrieving, true, false},
		{StatusGenerating, true, false},
		{StatusCompleted, false, true},
		{StatusEvaluating, true, false},
		{StatusReflecting, true, false},
		{StatusCurating, true, false},
		{StatusFeedbackCompleted, false, true},
		{StatusFailed, false, false},
		{StatusCancelled, false, false},
	}

	for _, tt := range tests {
		if got := tt.status.Active(); got != tt.active {
			t.Errorf("%s.Active() = %v, want %v", tt.status, got, tt.active)
		}
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := &InvalidTransitionError{TaskID: "abc", From: StatusCompleted, To: StatusPending}
	if !strings.Contains(err.Error(), "invalid transition completed -> pending") {
		t.Errorf("unexpected error message: %v", err)
	}
}

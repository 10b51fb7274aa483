package task

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const eventLogFileName = "events.log"

// Event type constants for the task event log.
const (
	EventStageStarted   = "stage_started"
	EventStageCompleted = "stage_completed"
	EventStageFailed    = "stage_failed"
	EventTaskCancelled  = "task_cancelled"
	EventTaskResumed    = "task_resumed"
	EventPlaybookRolled = "playbook_rolled_back"
)

// Event is a single entry in a task's append-only JSON Lines event log.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventLogger appends lifecycle events to the task's events.log. The log is
// the only channel, besides artifacts, through which a worker communicates
// with the supervisor.
type EventLogger struct {
	path string
}

// NewEventLogger creates an event logger for the given task directory.
func NewEventLogger(taskDir string) *EventLogger {
	return &EventLogger{
		path: filepath.Join(taskDir, eventLogFileName),
	}
}

// Log appends one event to the log file.
func (e *EventLogger) Log(event string, data map[string]any) error {
	entry := Event{
		Timestamp: time.Now(),
		Event:     event,
		Data:      data,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	jsonBytes = append(jsonBytes, '\n')

	f, err := os.OpenFile(e.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(jsonBytes)
	return err
}

// StageStarted logs a stage_started event.
func (e *EventLogger) StageStarted(stage Stage, attempt int) error {
	return e.Log(EventStageStarted, map[string]any{
		"stage":   string(stage),
		"attempt": attempt,
	})
}

// StageCompleted logs a stage_completed event.
func (e *EventLogger) StageCompleted(stage Stage) error {
	return e.Log(EventStageCompleted, map[string]any{
		"stage": string(stage),
	})
}

// StageFailed logs a stage_failed event with the error text.
func (e *EventLogger) StageFailed(stage Stage, errText string) error {
	return e.Log(EventStageFailed, map[string]any{
		"stage": string(stage),
		"error": errText,
	})
}

// TaskCancelled logs a task_cancelled event recording the stage in flight.
func (e *EventLogger) TaskCancelled(stage Stage) error {
	return e.Log(EventTaskCancelled, map[string]any{
		"stage": string(stage),
	})
}

// TaskResumed logs a task_resumed event describing the applied recovery plan.
func (e *EventLogger) TaskResumed(resume Status, retryCount int, playbookAction string) error {
	return e.Log(EventTaskResumed, map[string]any{
		"resume_status":   string(resume),
		"retry_count":     retryCount,
		"playbook_action": playbookAction,
	})
}

// PlaybookRolledBack logs reversal of the task's curation contribution.
func (e *EventLogger) PlaybookRolledBack(operations int) error {
	return e.Log(EventPlaybookRolled, map[string]any{
		"operations": operations,
	})
}

package task

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readEvents(t *testing.T, dir string) []Event {
	t.Helper()

	f, err := os.Open(filepath.Join(dir, eventLogFileName))
	if err != nil {
		t.Fatalf("failed to open event log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("failed to parse event line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	return events
}

func TestEventLogger_AppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	logger := NewEventLogger(dir)

	if err := logger.StageStarted(StageGenerating, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := logger.StageFailed(StageGenerating, "timeout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := logger.StageCompleted(StageGenerating); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := readEvents(t, dir)
	if len(events) != 3 {
		t.Fatalf("event count = %d, want 3", len(events))
	}
	if events[0].Event != EventStageStarted || events[0].Data["attempt"] != float64(1) {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Event != EventStageFailed || events[1].Data["error"] != "timeout" {
		t.Errorf("second event = %+v", events[1])
	}
	if events[2].Event != EventStageCompleted || events[2].Data["stage"] != "generating" {
		t.Errorf("third event = %+v", events[2])
	}
}

func TestEventLogger_LifecycleEvents(t *testing.T) {
	dir := t.TempDir()
	logger := NewEventLogger(dir)

	if err := logger.TaskCancelled(StageRetrieving); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := logger.TaskResumed(StatusRetrieving, 2, "rollback"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := logger.PlaybookRolledBack(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := readEvents(t, dir)
	if len(events) != 3 {
		t.Fatalf("event count = %d, want 3", len(events))
	}
	if events[0].Event != EventTaskCancelled {
		t.Errorf("first event = %s", events[0].Event)
	}
	if events[1].Data["resume_status"] != "retrieving" || events[1].Data["retry_count"] != float64(2) {
		t.Errorf("resume event data = %+v", events[1].Data)
	}
	if events[2].Data["operations"] != float64(4) {
		t.Errorf("rollback event data = %+v", events[2].Data)
	}
}

package ai

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion/playmaker/internal/pipeline"
)

func writeNotes(t *testing.T, dir string, notes map[string]string) {
	t.Helper()
	for name, content := range notes {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write note: %v", err)
		}
	}
}

func TestKnowledgeBase_QueryBestMatch(t *testing.T) {
	dir := t.TempDir()
	writeNotes(t, dir, map[string]string{
		"caching.md":    "Cache invalidation strategies and TTL tuning.",
		"pagination.md": "Cursor pagination beats offset pagination at scale.",
		"notes.txt":     "not indexed, wrong extension",
	})

	kb := NewKnowledgeBase(dir)
	kb.Start()

	got, err := kb.Query(context.Background(), "how should pagination work at scale")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "Cursor pagination") {
		t.Errorf("query returned %q", got)
	}

	// No keyword overlap yields an empty match, not an error.
	got, err = kb.Query(context.Background(), "zzzz qqqq")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("query returned %q, want empty", got)
	}
}

func TestKnowledgeBase_MissingDirReplayedToEveryQuery(t *testing.T) {
	kb := NewKnowledgeBase(filepath.Join(t.TempDir(), "absent"))
	kb.Start()

	for i := 0; i < 3; i++ {
		_, err := kb.Query(context.Background(), "anything")
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "knowledge base missing") {
			t.Errorf("unexpected error message: %v", err)
		}
	}
}

func TestKBRetriever_OneNotePerRequirement(t *testing.T) {
	dir := t.TempDir()
	writeNotes(t, dir, map[string]string{
		"databases.md": "Index selectivity matters for database query plans.",
		"queues.md":    "Prefer idempotent consumers on message queues.",
	})

	kb := NewKnowledgeBase(dir)
	kb.Start()
	r := &KBRetriever{KB: kb}

	out, err := r.Retrieve(context.Background(), &pipeline.RequirementsPayload{
		Requirements: []string{
			"design the database index",
			"make the queue consumer idempotent",
			"zzzz unmatched requirement",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two matches; the unmatched requirement contributes nothing.
	if len(out.Context) != 2 {
		t.Errorf("context size = %d, want 2: %v", len(out.Context), out.Context)
	}
}

func TestKBRetriever_PropagatesInitFailure(t *testing.T) {
	kb := NewKnowledgeBase(filepath.Join(t.TempDir(), "absent"))
	kb.Start()
	r := &KBRetriever{KB: kb}

	_, err := r.Retrieve(context.Background(), &pipeline.RequirementsPayload{
		Requirements: []string{"anything"},
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "retrieval failed") {
		t.Errorf("unexpected error message: %v", err)
	}
}

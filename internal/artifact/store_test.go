package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStore_WriteReadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	in := map[string]any{"requirements": []string{"parse input", "emit report"}}
	if err := store.Write(Requirements, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out map[string][]string
	if err := store.Read(Requirements, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out["requirements"]) != 2 || out["requirements"][0] != "parse input" {
		t.Errorf("round trip lost data: %v", out)
	}
}

func TestStore_Exists(t *testing.T) {
	store := NewStore(t.TempDir())

	if store.Exists(Plan) {
		t.Error("absent artifact reported present")
	}
	if err := store.Write(Plan, map[string]any{"artifact": map[string]any{}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.Exists(Plan) {
		t.Error("written artifact reported absent")
	}
}

func TestStore_Remove(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Write(Feedback, map[string]any{"score": 0.8}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Remove(Feedback); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Exists(Feedback) {
		t.Error("artifact still present after remove")
	}

	// Removing again is a no-op.
	if err := store.Remove(Feedback); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_WriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if err := store.Write(Insights, map[string]any{"insights": []string{}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "insights.json" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestStore_Verify_Intact(t *testing.T) {
	store := NewStore(t.TempDir())

	payload := map[string]any{
		"artifact":           map[string]any{"title": "x"},
		"reasoning_trace":    "consulted str-00001",
		"bullets_referenced": []string{"str-00001"},
	}
	if err := store.Write(Plan, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Verify(Plan); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStore_Verify_MissingField(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Write(Plan, map[string]any{"artifact": map[string]any{}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := store.Verify(Plan)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "missing required field") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestStore_Verify_Malformed(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if err := os.WriteFile(filepath.Join(dir, "feedback.json"), []byte("{truncated"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := store.Verify(Feedback)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "malformed") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestStore_Verify_Missing(t *testing.T) {
	store := NewStore(t.TempDir())

	err := store.Verify(Requirements)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("unexpected error message: %v", err)
	}
}

package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store reads and writes one task's artifacts. Each artifact is a single
// JSON file inside the task directory, named after its stage output.
// Stores are per-task; no cross-task locking is needed.
type Store struct {
	dir string
}

// NewStore creates a store rooted at the given task directory.
func NewStore(taskDir string) *Store {
	return &Store{dir: taskDir}
}

// Path returns the file path for the named artifact.
func (s *Store) Path(name Name) string {
	return filepath.Join(s.dir, string(name)+".json")
}

// Exists reports whether the named artifact is present on disk.
func (s *Store) Exists(name Name) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && !info.IsDir()
}

// Write atomically persists an artifact payload using a temp file + rename.
func (s *Store) Write(name Name, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact %s: %w", name, err)
	}

	path := s.Path(name)
	tmpPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Read loads the named artifact into out.
func (s *Store) Read(name Name, out any) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read artifact %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse artifact %s: %w", name, err)
	}
	return nil
}

// Remove deletes the named artifact. Removing an absent artifact is a no-op.
func (s *Store) Remove(name Name) error {
	err := os.Remove(s.Path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact %s: %w", name, err)
	}
	return nil
}

// Verify checks that the named artifact parses as a JSON object and contains
// every required top-level field. It returns an error describing the first
// problem found; a missing file is reported as such.
func (s *Store) Verify(name Name) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("artifact %s is missing", name)
		}
		return fmt.Errorf("failed to read artifact %s: %w", name, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("artifact %s is malformed: %w", name, err)
	}

	for _, field := range RequiredFields(name) {
		if _, ok := doc[field]; !ok {
			return fmt.Errorf("artifact %s is missing required field %q", name, field)
		}
	}
	return nil
}

package playbook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const playbookFileName = "playbook.json"

// Store owns the shared playbook document on disk. All mutation goes through
// Mutate, which serializes read-modify-write cycles behind a single lock so
// bullet ID assignment and counter increments cannot race across tasks. The
// mutex covers goroutines in one process; the file lock covers worker
// processes of different tasks.
type Store struct {
	path  string
	mu    sync.Mutex
	flock fileLock
}

// lockWait bounds how long a mutation waits on another process's curation.
const lockWait = 10 * time.Second

// NewStore creates a store for the playbook document inside the given data
// directory (typically .playmaker/).
func NewStore(dataDir string) *Store {
	path := filepath.Join(dataDir, playbookFileName)
	return &Store{
		path:  path,
		flock: fileLock{path: path + ".lock"},
	}
}

// Path returns the playbook file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the playbook document is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Init writes an empty playbook with the configured sections if none exists.
func (s *Store) Init(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create playbook directory: %w", err)
	}
	if err := s.flock.acquire(lockWait); err != nil {
		return err
	}
	defer s.flock.release()

	if s.Exists() {
		return nil
	}
	return s.save(NewPlaybook(cfg.SectionNames()))
}

// Load reads the current playbook. Callers that intend to write must use
// Mutate instead.
func (s *Store) Load() (*Playbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Mutate runs fn against the current playbook under the store lock and
// persists the result if fn succeeds. If fn returns an error, nothing is
// written.
func (s *Store) Mutate(fn func(*Playbook) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Exists() {
		return fmt.Errorf("playbook not found at %s (run 'playmaker init')", s.path)
	}
	if err := s.flock.acquire(lockWait); err != nil {
		return err
	}
	defer s.flock.release()

	pb, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(pb); err != nil {
		return err
	}
	return s.save(pb)
}

func (s *Store) load() (*Playbook, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("playbook not found at %s (run 'playmaker init')", s.path)
		}
		return nil, fmt.Errorf("failed to read playbook: %w", err)
	}

	var pb Playbook
	if err := json.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("failed to parse playbook: %w", err)
	}
	if pb.Sections == nil {
		pb.Sections = make(map[string][]Bullet)
	}
	if pb.Sequences == nil {
		pb.Sequences = make(map[string]int)
	}
	return &pb, nil
}

func (s *Store) save(pb *Playbook) error {
	pb.UpdatedAt = time.Now()
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create playbook directory: %w", err)
	}

	data, err := json.MarshalIndent(pb, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal playbook: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp.%d", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

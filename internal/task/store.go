package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	dataDir      = ".playmaker"
	tasksDir     = "tasks"
	taskFileName = "task.json"
	cancelFlag   = "cancel.requested"
)

// Store persists task records, one directory per task under
// <root>/.playmaker/tasks/<id>/. The directory also holds the task's
// artifacts, event log, worker lock, and cancellation flag.
type Store struct {
	root string
}

// NewStore creates a task store rooted at the given base directory
// (typically the working directory).
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Dir returns the directory for the given task id.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, dataDir, tasksDir, id)
}

// Create allocates a new task in pending status and persists it.
func (s *Store) Create(name string, maxRetries int) (*Task, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	t := &Task{
		ID:         uuid.NewString(),
		Name:       name,
		Status:     StatusPending,
		MaxRetries: maxRetries,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if err := os.MkdirAll(s.Dir(t.ID), 0755); err != nil {
		return nil, fmt.Errorf("failed to create task folder: %w", err)
	}
	if err := s.Save(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Load reads and parses a task record by id.
func (s *Store) Load(id string) (*Task, error) {
	path := filepath.Join(s.Dir(id), taskFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("task not found: %s", id)
		}
		return nil, fmt.Errorf("failed to read task record: %w", err)
	}

	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse task record: %w", err)
	}
	return &t, nil
}

// Save atomically writes the task record using a temp file + rename.
func (s *Store) Save(t *Task) error {
	path := filepath.Join(s.Dir(t.ID), taskFileName)
	tmpPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// List returns every task record, newest first. Unreadable task directories
// are skipped rather than failing the whole listing.
func (s *Store) List() ([]*Task, error) {
	base := filepath.Join(s.root, dataDir, tasksDir)
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tasks directory: %w", err)
	}

	var tasks []*Task
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		t, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		tasks = append(tasks, t)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// RequestCancel marks the task for cooperative cancellation. The supervisor
// observes the flag between stages; a running worker polls it periodically.
func (s *Store) RequestCancel(id string) error {
	path := filepath.Join(s.Dir(id), cancelFlag)
	if err := os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write cancel flag: %w", err)
	}
	return nil
}

// CancelRequested reports whether cancellation has been requested.
func (s *Store) CancelRequested(id string) bool {
	_, err := os.Stat(filepath.Join(s.Dir(id), cancelFlag))
	return err == nil
}

// ClearCancel removes the cancellation flag. Clearing an absent flag is a
// no-op.
func (s *Store) ClearCancel(id string) error {
	err := os.Remove(filepath.Join(s.Dir(id), cancelFlag))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cancel flag: %w", err)
	}
	return nil
}

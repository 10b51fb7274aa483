package curation

import (
	"fmt"
	"time"

	"github.com/dgallion/playmaker/internal/playbook"
)

// Kind is the type of a curation operation.
type Kind string

const (
	OpAdd    Kind = "ADD"
	OpUpdate Kind = "UPDATE"
	OpDelete Kind = "DELETE"
)

// Tag values accepted by the tagging operation.
const (
	TagHelpful = "helpful"
	TagHarmful = "harmful"
	TagNeutral = "neutral"
)

// CounterDelta is a set of counter increments carried by an UPDATE. Tagging
// uses deltas of one; dedup merges use the absorbed bullet's counters.
type CounterDelta struct {
	Helpful int `json:"helpful,omitempty"`
	Harmful int `json:"harmful,omitempty"`
	Neutral int `json:"neutral,omitempty"`
}

// Op is one structured curation operation proposed against the playbook.
// ADD requires Section and Content. UPDATE and DELETE require BulletID;
// UPDATE applies Content replacement and/or counter Delta.
type Op struct {
	Kind     Kind          `json:"kind"`
	Section  string        `json:"section,omitempty"`
	BulletID string        `json:"bullet_id,omitempty"`
	Content  string        `json:"content,omitempty"`
	Delta    *CounterDelta `json:"delta,omitempty"`
}

// AppliedOp is one committed operation plus everything needed to reverse it:
// the assigned bullet ID for adds, and a snapshot of the bullet as it was
// before the change for updates and deletes. Section remaps are recorded so
// they stay auditable.
type AppliedOp struct {
	Op
	RemappedFrom string           `json:"remapped_from,omitempty"`
	Prev         *playbook.Bullet `json:"prev,omitempty"`
}

// Record is the exact set of operations one task's curation stage applied to
// the playbook. It is owned by the task and read by rollback.
type Record struct {
	TaskID     string      `json:"task_id"`
	AppliedAt  time.Time   `json:"applied_at"`
	Operations []AppliedOp `json:"operations"`
	Warnings   []string    `json:"warnings,omitempty"`
}

// InvalidSectionError reports an operation proposing a section that is not
// in the configured valid-section set and has no remap entry.
type InvalidSectionError struct {
	Section string
}

func (e *InvalidSectionError) Error() string {
	return fmt.Sprintf("invalid section: %q is not a configured section", e.Section)
}

// BulletNotFoundError reports an UPDATE or DELETE naming an unknown bullet.
type BulletNotFoundError struct {
	ID string
}

func (e *BulletNotFoundError) Error() string {
	return fmt.Sprintf("bullet not found: %s", e.ID)
}

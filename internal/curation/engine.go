package curation

import (
	"fmt"
	"sort"
	"time"

	"github.com/dgallion/playmaker/internal/playbook"
)

// Engine validates and applies structured operations against the playbook
// store. All mutation of the shared playbook flows through here so every
// change is represented as a reversible operation log.
type Engine struct {
	store *playbook.Store
	cfg   playbook.Config

	// Similarity scores two bullet contents in [0, 1] for dedup. Defaults
	// to normalized token overlap; swappable because the exact metric is a
	// configuration decision, not a fixed algorithm.
	Similarity func(a, b string) float64
}

// NewEngine creates a curation engine over the given store and config.
func NewEngine(store *playbook.Store, cfg playbook.Config) *Engine {
	return &Engine{
		store:      store,
		cfg:        cfg,
		Similarity: tokenSimilarity,
	}
}

// Apply validates the whole batch against the current playbook and, only if
// every operation is valid, applies them in order. A single invalid
// operation rejects the entire batch; nothing is written. The returned
// record carries enough information to reverse every operation.
func (e *Engine) Apply(taskID string, ops []Op) (*Record, error) {
	return e.ApplyWith(taskID, func(*playbook.Playbook) ([]Op, error) {
		return ops, nil
	})
}

// ApplyWith builds the batch from the live playbook and applies it in the
// same critical section, so the decisions the batch encodes cannot go stale
// against a concurrent writer between snapshot and apply.
func (e *Engine) ApplyWith(taskID string, build func(pb *playbook.Playbook) ([]Op, error)) (*Record, error) {
	record := &Record{
		TaskID:    taskID,
		AppliedAt: time.Now(),
	}

	err := e.store.Mutate(func(pb *playbook.Playbook) error {
		ops, err := build(pb)
		if err != nil {
			return err
		}
		resolved, err := e.validate(pb, ops)
		if err != nil {
			return err
		}

		for i, op := range resolved {
			applied := AppliedOp{Op: op}
			if op.Kind == OpAdd && op.Section != ops[i].Section {
				applied.RemappedFrom = ops[i].Section
				record.Warnings = append(record.Warnings,
					fmt.Sprintf("section %q remapped to %q", ops[i].Section, op.Section))
			}

			switch op.Kind {
			case OpAdd:
				prefix, _ := e.cfg.PrefixFor(op.Section)
				b := playbook.Bullet{
					ID:      pb.NextID(prefix),
					Section: op.Section,
					Content: op.Content,
					Metadata: playbook.Metadata{
						CreatedAt: time.Now(),
					},
				}
				pb.Insert(b)
				applied.BulletID = b.ID

			case OpUpdate:
				b, _, _ := pb.Find(op.BulletID)
				prev := *b
				applied.Prev = &prev
				if op.Content != "" {
					b.Content = op.Content
				}
				if op.Delta != nil {
					b.Metadata.HelpfulCount += op.Delta.Helpful
					b.Metadata.HarmfulCount += op.Delta.Harmful
					b.Metadata.NeutralCount += op.Delta.Neutral
					b.Metadata.LastTaggedAt = time.Now()
				}

			case OpDelete:
				b, _, _ := pb.Find(op.BulletID)
				prev := *b
				applied.Prev = &prev
				pb.Delete(op.BulletID)
			}

			record.Operations = append(record.Operations, applied)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// validate checks every operation before anything is written and returns the
// batch with sections remapped where the config allows it. Unknown sections
// without a remap entry fail with InvalidSectionError; UPDATE and DELETE of
// an unknown bullet fail with BulletNotFoundError.
func (e *Engine) validate(pb *playbook.Playbook, ops []Op) ([]Op, error) {
	resolved := make([]Op, len(ops))
	for i, op := range ops {
		resolved[i] = op
		switch op.Kind {
		case OpAdd:
			section := op.Section
			if !e.cfg.ValidSection(section) {
				mapped, ok := e.cfg.Remap[section]
				if !ok {
					return nil, &InvalidSectionError{Section: section}
				}
				section = mapped
			}
			if op.Content == "" {
				return nil, fmt.Errorf("ADD requires content")
			}
			resolved[i].Section = section

		case OpUpdate, OpDelete:
			if op.BulletID == "" {
				return nil, fmt.Errorf("%s requires a bullet_id", op.Kind)
			}
			_, section, ok := pb.Find(op.BulletID)
			if !ok {
				return nil, &BulletNotFoundError{ID: op.BulletID}
			}
			resolved[i].Section = section

		default:
			return nil, fmt.Errorf("unknown operation kind: %q", op.Kind)
		}
	}
	return resolved, nil
}

// BuildTagOps converts a bullet-id to tag mapping into UPDATE operations
// that increment the matching counter by one. Keys must be bullet ids: any
// key that is not a bullet id known to pb is dropped and reported in the
// returned warnings, and never creates or mutates a bullet. A tag value
// outside {helpful, harmful, neutral} rejects the whole mapping as
// structurally invalid. Callers pass the playbook from an ApplyWith closure
// so the ops are built against the same state they apply to.
func (e *Engine) BuildTagOps(pb *playbook.Playbook, tags map[string]string) ([]Op, []string, error) {
	for id, tag := range tags {
		switch tag {
		case TagHelpful, TagHarmful, TagNeutral:
		default:
			return nil, nil, fmt.Errorf("invalid tag %q for bullet %s: must be helpful, harmful, or neutral", tag, id)
		}
	}

	// Deterministic order for the record.
	ids := make([]string, 0, len(tags))
	for id := range tags {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var ops []Op
	var warnings []string
	for _, id := range ids {
		if _, _, ok := pb.Find(id); !ok {
			warnings = append(warnings, fmt.Sprintf("unknown bullet id %q dropped from tagging", id))
			continue
		}
		delta := &CounterDelta{}
		switch tags[id] {
		case TagHelpful:
			delta.Helpful = 1
		case TagHarmful:
			delta.Harmful = 1
		case TagNeutral:
			delta.Neutral = 1
		}
		ops = append(ops, Op{Kind: OpUpdate, BulletID: id, Delta: delta})
	}
	return ops, warnings, nil
}

// Tag builds and applies tagging operations in one batch.
func (e *Engine) Tag(taskID string, tags map[string]string) (*Record, []string, error) {
	var warnings []string
	record, err := e.ApplyWith(taskID, func(pb *playbook.Playbook) ([]Op, error) {
		ops, w, err := e.BuildTagOps(pb, tags)
		warnings = w
		return ops, err
	})
	if err != nil {
		return nil, warnings, err
	}
	record.Warnings = append(record.Warnings, warnings...)
	return record, warnings, nil
}

// Rollback reverses exactly the operations in a record, in reverse apply
// order. Deleting an already-absent bullet is a no-op so rollback stays
// robust against partial prior application; other irregularities are
// reported as warnings rather than failing the rollback.
func (e *Engine) Rollback(record *Record) ([]string, error) {
	var warnings []string

	err := e.store.Mutate(func(pb *playbook.Playbook) error {
		for i := len(record.Operations) - 1; i >= 0; i-- {
			op := record.Operations[i]
			switch op.Kind {
			case OpAdd:
				if !pb.Delete(op.BulletID) {
					// Already absent; idempotent.
					continue
				}

			case OpUpdate:
				if op.Prev == nil {
					warnings = append(warnings, fmt.Sprintf("no prior snapshot for update of %s, skipped", op.BulletID))
					continue
				}
				b, _, ok := pb.Find(op.BulletID)
				if !ok {
					warnings = append(warnings, fmt.Sprintf("bullet %s missing during rollback, skipped", op.BulletID))
					continue
				}
				*b = *op.Prev

			case OpDelete:
				if op.Prev == nil {
					warnings = append(warnings, fmt.Sprintf("no prior snapshot for delete of %s, skipped", op.BulletID))
					continue
				}
				if _, _, ok := pb.Find(op.BulletID); ok {
					warnings = append(warnings, fmt.Sprintf("bullet %s already present during rollback, skipped", op.BulletID))
					continue
				}
				pb.Insert(*op.Prev)
			}
		}
		return nil
	})
	if err != nil {
		return warnings, err
	}
	return warnings, nil
}

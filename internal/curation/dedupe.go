package curation

import (
	"strings"
	"unicode"

	"github.com/dgallion/playmaker/internal/playbook"
)

// Dedupe merges near-duplicate bullets within each section: the earlier
// bullet survives, its counters absorb the later bullet's, and the later
// bullet is deleted. The merge is expressed as ordinary UPDATE and DELETE
// operations so it is auditable and reversible identically to any other
// curation. Merge decisions are computed under the same store lock that
// applies them. Returns the applied record, or an empty record when nothing
// was close enough to merge.
func (e *Engine) Dedupe(taskID string) (*Record, error) {
	return e.ApplyWith(taskID, func(pb *playbook.Playbook) ([]Op, error) {
		return e.dedupeOps(pb), nil
	})
}

// dedupeOps pairs each bullet against every later bullet in its section and
// emits merge operations for pairs at or above the similarity threshold.
func (e *Engine) dedupeOps(pb *playbook.Playbook) []Op {
	var ops []Op
	for _, section := range e.cfg.SectionNames() {
		bullets := pb.Sections[section]
		absorbed := make(map[string]bool)

		for i := 0; i < len(bullets); i++ {
			if absorbed[bullets[i].ID] {
				continue
			}
			for j := i + 1; j < len(bullets); j++ {
				if absorbed[bullets[j].ID] {
					continue
				}
				if e.Similarity(bullets[i].Content, bullets[j].Content) < e.cfg.DedupThreshold {
					continue
				}

				dup := bullets[j]
				absorbed[dup.ID] = true
				ops = append(ops,
					Op{
						Kind:     OpUpdate,
						BulletID: bullets[i].ID,
						Delta: &CounterDelta{
							Helpful: dup.Metadata.HelpfulCount,
							Harmful: dup.Metadata.HarmfulCount,
							Neutral: dup.Metadata.NeutralCount,
						},
					},
					Op{Kind: OpDelete, BulletID: dup.ID},
				)
			}
		}
	}
	return ops
}

// tokenSimilarity is the default similarity metric: Jaccard overlap of
// lowercased word tokens. Identical content always scores 1.
func tokenSimilarity(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for tok := range ta {
		if tb[tok] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[tok] = true
	}
	return tokens
}

package playbook

import (
	"fmt"
	"time"
)

// Metadata holds a bullet's usage counters. Counters are only ever
// incremented, never reset, except by explicit rollback of the curation
// record that incremented them.
type Metadata struct {
	HelpfulCount int       `json:"helpfulCount"`
	HarmfulCount int       `json:"harmfulCount"`
	NeutralCount int       `json:"neutralCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastTaggedAt time.Time `json:"lastTaggedAt,omitempty"`
}

// Bullet is one atomic unit of curated knowledge. The ID is a fixed
// per-section prefix plus a monotonically increasing sequence number.
type Bullet struct {
	ID       string   `json:"id"`
	Section  string   `json:"section"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Playbook is the full set of bullets partitioned by section. It is the one
// resource shared across all tasks; mutation is serialized by the Store.
type Playbook struct {
	Sections  map[string][]Bullet `json:"sections"`
	Sequences map[string]int      `json:"sequences"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// NewPlaybook returns an empty playbook with the given section names
// initialized.
func NewPlaybook(sections []string) *Playbook {
	pb := &Playbook{
		Sections:  make(map[string][]Bullet),
		Sequences: make(map[string]int),
		UpdatedAt: time.Now(),
	}
	for _, name := range sections {
		pb.Sections[name] = nil
	}
	return pb
}

// NextID allocates the next bullet ID for a section prefix. Sequence numbers
// are monotonic per prefix and never reused, even after deletes.
func (pb *Playbook) NextID(prefix string) string {
	pb.Sequences[prefix]++
	return fmt.Sprintf("%s-%05d", prefix, pb.Sequences[prefix])
}

// Find returns the bullet with the given id and the section holding it.
func (pb *Playbook) Find(id string) (*Bullet, string, bool) {
	for section, bullets := range pb.Sections {
		for i := range bullets {
			if bullets[i].ID == id {
				return &pb.Sections[section][i], section, true
			}
		}
	}
	return nil, "", false
}

// Insert appends a bullet to its section.
func (pb *Playbook) Insert(b Bullet) {
	pb.Sections[b.Section] = append(pb.Sections[b.Section], b)
}

// Delete removes the bullet with the given id. Returns false if absent.
func (pb *Playbook) Delete(id string) bool {
	for section, bullets := range pb.Sections {
		for i := range bullets {
			if bullets[i].ID == id {
				pb.Sections[section] = append(bullets[:i:i], bullets[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Count returns the total number of bullets across all sections.
func (pb *Playbook) Count() int {
	total := 0
	for _, bullets := range pb.Sections {
		total += len(bullets)
	}
	return total
}

// Stats summarizes the playbook for display: bullets per section and
// aggregate counter totals.
type Stats struct {
	Bullets      int
	PerSection   map[string]int
	HelpfulTotal int
	HarmfulTotal int
	NeutralTotal int
}

// Summarize computes display statistics.
func (pb *Playbook) Summarize() Stats {
	stats := Stats{PerSection: make(map[string]int)}
	for section, bullets := range pb.Sections {
		stats.PerSection[section] = len(bullets)
		stats.Bullets += len(bullets)
		for _, b := range bullets {
			stats.HelpfulTotal += b.Metadata.HelpfulCount
			stats.HarmfulTotal += b.Metadata.HarmfulCount
			stats.NeutralTotal += b.Metadata.NeutralCount
		}
	}
	return stats
}

package ai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion/playmaker/internal/pipeline"
)

// KnowledgeBase is the external query subsystem: a directory of reference
// notes indexed once at process start. Indexing can be slow, so it runs on
// its own goroutine behind a one-shot readiness gate; callers that query
// before initialization completes block until the gate fires, and an
// initialization failure is replayed to every caller rather than retried.
type KnowledgeBase struct {
	dir   string
	ready *pipeline.Readiness
	docs  map[string]string
}

// NewKnowledgeBase creates an unstarted knowledge base over a notes
// directory.
func NewKnowledgeBase(dir string) *KnowledgeBase {
	return &KnowledgeBase{
		dir:   dir,
		ready: pipeline.NewReadiness(),
	}
}

// Start launches background initialization. Call once at process start.
func (k *KnowledgeBase) Start() {
	k.ready.Start(k.init)
}

// Readiness exposes the completion signal.
func (k *KnowledgeBase) Readiness() *pipeline.Readiness {
	return k.ready
}

func (k *KnowledgeBase) init() error {
	entries, err := os.ReadDir(k.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("knowledge base missing: %s", k.dir)
		}
		return fmt.Errorf("failed to read knowledge base: %w", err)
	}

	docs := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(k.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read note %s: %w", entry.Name(), err)
		}
		docs[entry.Name()] = string(data)
	}
	k.docs = docs
	return nil
}

// Query returns the note that best matches the query by keyword overlap.
// It blocks until initialization completes and replays any captured
// initialization failure.
func (k *KnowledgeBase) Query(ctx context.Context, query string) (string, error) {
	if err := k.ready.Wait(ctx); err != nil {
		return "", err
	}

	words := strings.Fields(strings.ToLower(query))
	best := ""
	bestScore := 0
	names := make([]string, 0, len(k.docs))
	for name := range k.docs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		lower := strings.ToLower(k.docs[name])
		score := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = k.docs[name]
		}
	}
	return best, nil
}

// KBRetriever implements the retrieving stage against the knowledge base,
// querying one note per requirement.
type KBRetriever struct {
	KB *KnowledgeBase
}

// Retrieve looks up reference material for each requirement. An empty match
// is skipped rather than recorded.
func (r *KBRetriever) Retrieve(ctx context.Context, req *pipeline.RequirementsPayload) (*pipeline.ContextPayload, error) {
	var out pipeline.ContextPayload
	for _, requirement := range req.Requirements {
		note, err := r.KB.Query(ctx, requirement)
		if err != nil {
			return nil, fmt.Errorf("retrieval failed: %w", err)
		}
		if note != "" {
			out.Context = append(out.Context, note)
		}
	}
	return &out, nil
}

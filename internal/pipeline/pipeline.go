package pipeline

import (
	"context"

	"github.com/dgallion/playmaker/internal/playbook"
)

// Stage payloads. Each struct is the JSON document one pipeline stage writes
// to the artifact store; field names are the integrity contract the recovery
// planner verifies.

// RequirementsPayload is the extracting stage output.
type RequirementsPayload struct {
	Requirements []string `json:"requirements"`
}

// ContextPayload is the retrieving stage output.
type ContextPayload struct {
	Context []string `json:"context"`
}

// PlanPayload is the generating stage output: the generated artifact, the
// reasoning trace, and the playbook bullets the generator consulted.
type PlanPayload struct {
	Artifact          map[string]any `json:"artifact"`
	ReasoningTrace    string         `json:"reasoning_trace"`
	BulletsReferenced []string       `json:"bullets_referenced"`
}

// FeedbackPayload is the evaluating stage output.
type FeedbackPayload struct {
	Score float64 `json:"score"`
	Notes string  `json:"notes"`
	Mode  string  `json:"mode,omitempty"`
}

// InsightsPayload is the reflecting stage output. BulletTags maps bullet ids
// (never free-text labels) to helpful, harmful, or neutral.
type InsightsPayload struct {
	Insights   []string          `json:"insights"`
	BulletTags map[string]string `json:"bullet_tags"`
}

// Extractor produces structured requirements from the task's source input.
type Extractor interface {
	Extract(ctx context.Context, taskName string) (*RequirementsPayload, error)
}

// Retriever gathers reference material relevant to the requirements.
type Retriever interface {
	Retrieve(ctx context.Context, req *RequirementsPayload) (*ContextPayload, error)
}

// Generator produces the artifact from requirements, retrieved context, and
// a snapshot of the playbook. It is treated as a pure, possibly slow,
// possibly-failing call; its internal reasoning is never inspected.
type Generator interface {
	Generate(ctx context.Context, req *RequirementsPayload, retrieved *ContextPayload, snapshot *playbook.Playbook) (*PlanPayload, error)
}

// Evaluator scores a generated artifact. Mode is an opaque strategy string
// (auto, llm_judge, human) persisted on the task and passed through
// unchanged.
type Evaluator interface {
	Evaluate(ctx context.Context, plan *PlanPayload, mode string) (*FeedbackPayload, error)
}

// Reflector distills feedback into insights and per-bullet tags. Its output
// is untrusted: tag keys are schema-checked against known bullet ids before
// any playbook mutation.
type Reflector interface {
	Reflect(ctx context.Context, plan *PlanPayload, feedback *FeedbackPayload) (*InsightsPayload, error)
}

// Curator turns insights into structured playbook operations.
type Curator interface {
	Curate(ctx context.Context, insights *InsightsPayload, snapshot *playbook.Playbook) ([]ProposedOp, error)
}

// ProposedOp mirrors a curation operation as proposed by the curator
// collaborator, before validation by the curation engine.
type ProposedOp struct {
	Kind     string `json:"kind"`
	Section  string `json:"section,omitempty"`
	BulletID string `json:"bullet_id,omitempty"`
	Content  string `json:"content,omitempty"`
}

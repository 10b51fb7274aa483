package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgallion/playmaker/internal/pipeline"
	"github.com/dgallion/playmaker/internal/task"
)

// Evaluator scores a generated artifact under the task's persisted feedback
// mode. The mode string is opaque to the rest of the system; this is where
// it is interpreted.
type Evaluator struct {
	claude *Claude
	// HumanFeedback supplies a pre-recorded human verdict when the mode is
	// human. Left nil, human mode fails with an instructive error.
	HumanFeedback func() (*pipeline.FeedbackPayload, error)
}

// NewEvaluator creates an evaluator sharing the given Claude client.
func NewEvaluator(claude *Claude) *Evaluator {
	return &Evaluator{claude: claude}
}

// Evaluate dispatches by mode: deterministic rules for auto, an LLM judge
// for llm_judge, and the supplied human feedback source for human.
func (e *Evaluator) Evaluate(ctx context.Context, plan *pipeline.PlanPayload, mode string) (*pipeline.FeedbackPayload, error) {
	switch mode {
	case task.FeedbackAuto:
		return autoEvaluate(plan), nil

	case task.FeedbackLLMJudge:
		prompt := fmt.Sprintf(`Judge this generated artifact against its reasoning trace.

REASONING TRACE:
%s

Return ONLY a JSON object: {"score": 0.0-1.0, "notes": "..."}`, plan.ReasoningTrace)

		var out pipeline.FeedbackPayload
		if err := e.claude.call(ctx, prompt, &out); err != nil {
			return nil, err
		}
		return &out, nil

	case task.FeedbackHuman:
		if e.HumanFeedback == nil {
			return nil, fmt.Errorf("human feedback mode requires recorded feedback; none was provided")
		}
		return e.HumanFeedback()

	default:
		return nil, fmt.Errorf("unknown feedback mode: %q", mode)
	}
}

// autoEvaluate applies deterministic structural rules: the artifact must be
// non-empty, the trace must exist, and referenced bullets must be reported.
func autoEvaluate(plan *pipeline.PlanPayload) *pipeline.FeedbackPayload {
	score := 0.0
	var notes []string

	if len(plan.Artifact) > 0 {
		score += 0.5
	} else {
		notes = append(notes, "artifact is empty")
	}
	if strings.TrimSpace(plan.ReasoningTrace) != "" {
		score += 0.3
	} else {
		notes = append(notes, "no reasoning trace recorded")
	}
	if len(plan.BulletsReferenced) > 0 {
		score += 0.2
	} else {
		notes = append(notes, "no playbook bullets were consulted")
	}

	if len(notes) == 0 {
		notes = append(notes, "all structural checks passed")
	}
	return &pipeline.FeedbackPayload{Score: score, Notes: strings.Join(notes, "; ")}
}

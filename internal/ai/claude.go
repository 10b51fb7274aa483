package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/dgallion/playmaker/internal/pipeline"
	"github.com/dgallion/playmaker/internal/playbook"
)

// claudeResponse represents the JSON structure returned by Claude Code CLI
// when using --output-format json.
type claudeResponse struct {
	Type    string `json:"type"`
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
}

// CommandContext is the function used to create exec.Cmd instances.
// It can be replaced in tests to mock command execution.
var CommandContext = exec.CommandContext

// DefaultStageTimeout is the maximum time allowed for a single LLM-backed
// stage call when the context carries no deadline.
const DefaultStageTimeout = 10 * time.Minute

// Claude implements the LLM-backed pipeline collaborators via the Claude
// Code CLI. Every call is treated as opaque: structured prompt in,
// structured JSON out.
type Claude struct{}

// IsAvailable checks if the claude command exists in PATH.
func IsAvailable() bool {
	_, err := exec.LookPath("claude")
	return err == nil
}

// call runs one prompt through the CLI and unmarshals the JSON reply into
// out.
func (c *Claude) call(ctx context.Context, prompt string, out any) error {
	if !IsAvailable() {
		return errors.New("Claude Code CLI not found. Install it: https://claude.ai/code")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultStageTimeout)
		defer cancel()
	}

	// --dangerously-skip-permissions is required for non-interactive use.
	// Safe here because only the -p flag is used with a controlled prompt.
	cmd := CommandContext(ctx, "claude", "-p", prompt, "--output-format", "json", "--dangerously-skip-permissions")
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.New("timeout: stage call exceeded its deadline")
		}
		if ctx.Err() == context.Canceled {
			return errors.New("stage call was cancelled")
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("claude command failed: %s", string(exitErr.Stderr))
		}
		return fmt.Errorf("failed to execute claude command: %w", err)
	}

	jsonData, err := extractJSON(output)
	if err != nil {
		return fmt.Errorf("failed to extract JSON from claude response: %w", err)
	}
	if err := json.Unmarshal(jsonData, out); err != nil {
		return fmt.Errorf("failed to parse claude response: %w", err)
	}
	return nil
}

// Extract produces structured requirements for the named task.
func (c *Claude) Extract(ctx context.Context, taskName string) (*pipeline.RequirementsPayload, error) {
	prompt := fmt.Sprintf(`Analyze this generation task and extract its discrete requirements.

TASK: %s

Return ONLY a JSON object: {"requirements": ["requirement one", "requirement two", ...]}
Each requirement must be a single verifiable statement. No markdown, no explanation.`, taskName)

	var out pipeline.RequirementsPayload
	if err := c.call(ctx, prompt, &out); err != nil {
		return nil, err
	}
	if len(out.Requirements) == 0 {
		return nil, errors.New("extraction returned no requirements")
	}
	return &out, nil
}

// Retrieve gathers reference material relevant to the requirements.
func (c *Claude) Retrieve(ctx context.Context, req *pipeline.RequirementsPayload) (*pipeline.ContextPayload, error) {
	prompt := fmt.Sprintf(`Gather reference notes relevant to these requirements:

%s

Return ONLY a JSON object: {"context": ["note one", "note two", ...]}`,
		strings.Join(req.Requirements, "\n"))

	var out pipeline.ContextPayload
	if err := c.call(ctx, prompt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Generate produces the artifact from requirements, retrieved context, and
// the playbook snapshot.
func (c *Claude) Generate(ctx context.Context, req *pipeline.RequirementsPayload, retrieved *pipeline.ContextPayload, snapshot *playbook.Playbook) (*pipeline.PlanPayload, error) {
	var sb strings.Builder
	sb.WriteString("You are producing an artifact for a generation task.\n\n")
	sb.WriteString("## Requirements\n")
	for _, r := range req.Requirements {
		sb.WriteString("- " + r + "\n")
	}
	sb.WriteString("\n## Reference material\n")
	for _, n := range retrieved.Context {
		sb.WriteString("- " + n + "\n")
	}
	sb.WriteString("\n## Playbook\n")
	sb.WriteString("Apply the bullets below where relevant and report which ones you used by id.\n")
	for _, section := range sortedSections(snapshot) {
		for _, b := range snapshot.Sections[section] {
			sb.WriteString(fmt.Sprintf("- [%s] (%s) %s\n", b.ID, section, b.Content))
		}
	}
	sb.WriteString(`
Return ONLY a JSON object:
{"artifact": {...}, "reasoning_trace": "...", "bullets_referenced": ["id", ...]}
bullets_referenced must contain only bullet ids that appear above.`)

	var out pipeline.PlanPayload
	if err := c.call(ctx, sb.String(), &out); err != nil {
		return nil, err
	}
	if out.Artifact == nil {
		return nil, errors.New("generation returned no artifact")
	}
	return &out, nil
}

// Reflect distills feedback into insights and per-bullet tags. Tag keys must
// be bullet ids; the curation engine re-validates them regardless.
func (c *Claude) Reflect(ctx context.Context, plan *pipeline.PlanPayload, feedback *pipeline.FeedbackPayload) (*pipeline.InsightsPayload, error) {
	prompt := fmt.Sprintf(`Review this generation attempt and its evaluation.

REASONING TRACE:
%s

BULLETS CONSULTED: %s

FEEDBACK (score %.2f): %s

Return ONLY a JSON object:
{"insights": ["insight", ...], "bullet_tags": {"<bullet-id>": "helpful|harmful|neutral", ...}}
bullet_tags keys MUST be bullet ids from the consulted list, never category names.`,
		plan.ReasoningTrace, strings.Join(plan.BulletsReferenced, ", "), feedback.Score, feedback.Notes)

	var out pipeline.InsightsPayload
	if err := c.call(ctx, prompt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Curate turns insights into structured playbook operations.
func (c *Claude) Curate(ctx context.Context, insights *pipeline.InsightsPayload, snapshot *playbook.Playbook) ([]pipeline.ProposedOp, error) {
	var sb strings.Builder
	sb.WriteString("Fold these insights into the playbook as structured operations.\n\n## Insights\n")
	for _, ins := range insights.Insights {
		sb.WriteString("- " + ins + "\n")
	}
	sb.WriteString("\n## Current playbook sections\n")
	for _, section := range sortedSections(snapshot) {
		sb.WriteString("- " + section + "\n")
		for _, b := range snapshot.Sections[section] {
			sb.WriteString(fmt.Sprintf("  - [%s] %s\n", b.ID, b.Content))
		}
	}
	sb.WriteString(`
Return ONLY a JSON object:
{"operations": [{"kind": "ADD|UPDATE|DELETE", "section": "...", "bullet_id": "...", "content": "..."}, ...]}
ADD requires section and content. UPDATE and DELETE require an existing bullet_id.
Use only the section names listed above.`)

	var out struct {
		Operations []pipeline.ProposedOp `json:"operations"`
	}
	if err := c.call(ctx, sb.String(), &out); err != nil {
		return nil, err
	}
	return out.Operations, nil
}

func sortedSections(pb *playbook.Playbook) []string {
	sections := make([]string, 0, len(pb.Sections))
	for name := range pb.Sections {
		sections = append(sections, name)
	}
	sort.Strings(sections)
	return sections
}

// extractJSON defensively extracts a JSON object from potentially noisy output.
func extractJSON(data []byte) ([]byte, error) {
	// First, try to parse as Claude Code CLI response wrapper
	var claudeResp claudeResponse
	if err := json.Unmarshal(data, &claudeResp); err == nil && claudeResp.Type == "result" {
		if claudeResp.IsError {
			return nil, errors.New("claude returned an error: " + claudeResp.Result)
		}
		data = []byte(claudeResp.Result)
	}

	// Strip markdown code blocks if present (```json ... ``` or ``` ... ```)
	str := stripMarkdownCodeBlocks(string(data))

	if json.Valid([]byte(str)) {
		return []byte(str), nil
	}

	// Find JSON object boundaries as fallback
	start := strings.Index(str, "{")
	end := strings.LastIndex(str, "}")

	if start == -1 || end == -1 || start >= end {
		return nil, errors.New("no JSON object found in response")
	}

	extracted := str[start : end+1]
	if !json.Valid([]byte(extracted)) {
		return nil, errors.New("extracted content is not valid JSON")
	}

	return []byte(extracted), nil
}

// stripMarkdownCodeBlocks removes markdown code block markers from a string.
func stripMarkdownCodeBlocks(s string) string {
	s = strings.TrimSpace(s)
	if cut, found := strings.CutPrefix(s, "```json"); found {
		s = cut
	} else if cut, found := strings.CutPrefix(s, "```"); found {
		s = cut
	}
	if cut, found := strings.CutSuffix(s, "```"); found {
		s = cut
	}
	return strings.TrimSpace(s)
}

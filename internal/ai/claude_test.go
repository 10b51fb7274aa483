package ai

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestExtractJSON_Plain(t *testing.T) {
	data, err := extractJSON([]byte(`{"requirements": ["a"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !json.Valid(data) {
		t.Error("extracted content is not valid JSON")
	}
}

func TestExtractJSON_CLIWrapper(t *testing.T) {
	wrapper := `{"type": "result", "result": "{\"context\": [\"note\"]}", "is_error": false}`

	data, err := extractJSON([]byte(wrapper))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out struct {
		Context []string `json:"context"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to parse extracted JSON: %v", err)
	}
	if len(out.Context) != 1 || out.Context[0] != "note" {
		t.Errorf("context = %v", out.Context)
	}
}

func TestExtractJSON_CLIWrapperError(t *testing.T) {
	wrapper := `{"type": "result", "result": "rate limited", "is_error": true}`

	_, err := extractJSON([]byte(wrapper))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestExtractJSON_MarkdownCodeBlock(t *testing.T) {
	input := "```json\n{\"score\": 0.8, \"notes\": \"fine\"}\n```"

	data, err := extractJSON([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("failed to parse extracted JSON: %v", err)
	}
	if out.Score != 0.8 {
		t.Errorf("score = %v", out.Score)
	}
}

func TestExtractJSON_SurroundingNoise(t *testing.T) {
	input := `Here is the result you asked for: {"insights": []} Hope that helps!`

	data, err := extractJSON([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"insights": []}` {
		t.Errorf("extracted = %s", data)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	_, err := extractJSON([]byte("I could not produce a result."))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestStripMarkdownCodeBlocks(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{}\n```", "{}"},
		{"```\n{}\n```", "{}"},
		{"{}", "{}"},
		{"  {} ", "{}"},
	}
	for _, tt := range tests {
		if got := stripMarkdownCodeBlocks(tt.in); got != tt.want {
			t.Errorf("stripMarkdownCodeBlocks(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

package playbook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfig_MissingFileYieldsDefault(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "playbook.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Sections) != 4 {
		t.Errorf("section count = %d, want 4", len(cfg.Sections))
	}
	if cfg.DedupThreshold != 0.9 {
		t.Errorf("dedup threshold = %v, want 0.9", cfg.DedupThreshold)
	}
}

func TestLoadConfig_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.yaml")
	content := `sections:
  - name: tactics
    prefix: tac
  - name: traps
    prefix: trp
remap:
  mistakes: traps
dedupThreshold: 0.8
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Sections) != 2 || cfg.Sections[0].Name != "tactics" {
		t.Errorf("sections = %v", cfg.Sections)
	}
	if cfg.Remap["mistakes"] != "traps" {
		t.Errorf("remap = %v", cfg.Remap)
	}
	if cfg.DedupThreshold != 0.8 {
		t.Errorf("dedup threshold = %v, want 0.8", cfg.DedupThreshold)
	}
}

func TestLoadConfig_DefaultThresholdWhenUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.yaml")
	content := `sections:
  - name: tactics
    prefix: tac
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DedupThreshold != 0.9 {
		t.Errorf("dedup threshold = %v, want default 0.9", cfg.DedupThreshold)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "no sections",
			cfg:     Config{},
			wantErr: "no sections",
		},
		{
			name: "duplicate name",
			cfg: Config{Sections: []SectionConfig{
				{Name: "a", Prefix: "a1"},
				{Name: "a", Prefix: "a2"},
			}},
			wantErr: "duplicate section name",
		},
		{
			name: "duplicate prefix",
			cfg: Config{Sections: []SectionConfig{
				{Name: "a", Prefix: "x"},
				{Name: "b", Prefix: "x"},
			}},
			wantErr: "duplicate section prefix",
		},
		{
			name: "empty prefix",
			cfg: Config{Sections: []SectionConfig{
				{Name: "a", Prefix: ""},
			}},
			wantErr: "name and prefix are required",
		},
		{
			name: "remap to unknown section",
			cfg: Config{
				Sections: []SectionConfig{{Name: "a", Prefix: "a1"}},
				Remap:    map[string]string{"old": "missing"},
			},
			wantErr: "not a configured section",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Lookups(t *testing.T) {
	cfg := DefaultConfig()

	names := cfg.SectionNames()
	if len(names) != 4 || names[0] != "strategies" {
		t.Errorf("section names = %v", names)
	}

	prefix, ok := cfg.PrefixFor("pitfalls")
	if !ok || prefix != "pit" {
		t.Errorf("prefix for pitfalls = (%s, %v)", prefix, ok)
	}
	if _, ok := cfg.PrefixFor("nonsense"); ok {
		t.Error("prefix found for unknown section")
	}

	if !cfg.ValidSection("heuristics") {
		t.Error("heuristics reported invalid")
	}
	if cfg.ValidSection("nonsense") {
		t.Error("unknown section reported valid")
	}
}

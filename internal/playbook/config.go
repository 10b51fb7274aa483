package playbook

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SectionConfig names one valid playbook section and the fixed ID prefix its
// bullets carry. Prefixes are never reused across sections.
type SectionConfig struct {
	Name   string `yaml:"name"`
	Prefix string `yaml:"prefix"`
}

// Config is the externally supplied playbook configuration: the closed set of
// valid sections, an optional remap table for sections proposed by the
// reflector that don't exist, and the dedup similarity threshold.
type Config struct {
	Sections       []SectionConfig   `yaml:"sections"`
	Remap          map[string]string `yaml:"remap,omitempty"`
	DedupThreshold float64           `yaml:"dedupThreshold"`
}

// DefaultConfig returns the built-in section layout used when no config file
// is present.
func DefaultConfig() Config {
	return Config{
		Sections: []SectionConfig{
			{Name: "strategies", Prefix: "str"},
			{Name: "pitfalls", Prefix: "pit"},
			{Name: "heuristics", Prefix: "heu"},
			{Name: "examples", Prefix: "exm"},
		},
		DedupThreshold: 0.9,
	}
}

// LoadConfig reads and validates a YAML config file. A missing file yields
// the default config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read playbook config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse playbook config: %w", err)
	}
	if cfg.DedupThreshold == 0 {
		cfg.DedupThreshold = DefaultConfig().DedupThreshold
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config for duplicate section names or prefixes and for
// remap targets that are not configured sections.
func (c Config) Validate() error {
	if len(c.Sections) == 0 {
		return fmt.Errorf("playbook config declares no sections")
	}

	names := make(map[string]bool)
	prefixes := make(map[string]bool)
	for _, s := range c.Sections {
		if s.Name == "" || s.Prefix == "" {
			return fmt.Errorf("section %q: name and prefix are required", s.Name)
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate section name: %s", s.Name)
		}
		if prefixes[s.Prefix] {
			return fmt.Errorf("duplicate section prefix: %s", s.Prefix)
		}
		names[s.Name] = true
		prefixes[s.Prefix] = true
	}

	for from, to := range c.Remap {
		if !names[to] {
			return fmt.Errorf("remap %q -> %q: target is not a configured section", from, to)
		}
	}
	return nil
}

// SectionNames returns the configured section names in declaration order.
func (c Config) SectionNames() []string {
	names := make([]string, 0, len(c.Sections))
	for _, s := range c.Sections {
		names = append(names, s.Name)
	}
	return names
}

// PrefixFor returns the ID prefix for a section name.
func (c Config) PrefixFor(section string) (string, bool) {
	for _, s := range c.Sections {
		if s.Name == section {
			return s.Prefix, true
		}
	}
	return "", false
}

// ValidSection reports whether the name is a configured section.
func (c Config) ValidSection(name string) bool {
	_, ok := c.PrefixFor(name)
	return ok
}

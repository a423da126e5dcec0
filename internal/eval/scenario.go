// Package eval provides scenario definitions and scorers for offline
// evaluation of the query pipeline's routing and answers.
package eval

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"answerd/internal/classify"
	"answerd/internal/plan"
)

// Duration decodes yaml strings like "10s" via time.ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Scenario is one evaluation case.
type Scenario struct {
	ID            string   `yaml:"id"`
	Prompt        string   `yaml:"prompt"`
	Category      string   `yaml:"category,omitempty"`
	ExpectedTools []string `yaml:"expected_tools,omitempty"`
	Keywords      []string `yaml:"keywords,omitempty"`
	MaxDuration   Duration `yaml:"max_duration,omitempty"`
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadFile reads and validates a scenario file.
func LoadFile(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates scenario yaml.
func Parse(data []byte) ([]Scenario, error) {
	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenarios: %w", err)
	}
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios defined")
	}

	seen := make(map[string]bool, len(f.Scenarios))
	for i, s := range f.Scenarios {
		if s.ID == "" {
			return nil, fmt.Errorf("scenario %d: id is required", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("scenario %q: duplicate id", s.ID)
		}
		seen[s.ID] = true
		if s.Prompt == "" {
			return nil, fmt.Errorf("scenario %q: prompt is required", s.ID)
		}
		if s.Category != "" && !classify.Category(s.Category).Valid() {
			return nil, fmt.Errorf("scenario %q: unknown category %q", s.ID, s.Category)
		}
		for _, tool := range s.ExpectedTools {
			if !plan.Capability(tool).Valid() {
				return nil, fmt.Errorf("scenario %q: unknown tool %q", s.ID, tool)
			}
		}
		if s.MaxDuration < 0 {
			return nil, fmt.Errorf("scenario %q: max_duration must not be negative", s.ID)
		}
	}
	return f.Scenarios, nil
}

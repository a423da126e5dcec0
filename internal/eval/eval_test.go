package eval

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"answerd/internal/classify"
)

const validScenarios = `
scenarios:
  - id: factual-basics
    prompt: "What is a goroutine?"
    category: factual
    keywords: [goroutine, lightweight]
    max_duration: 10s
  - id: design-review
    prompt: "Design a rate limiter for a public API"
    category: architecture
    expected_tools: [research, architecture]
`

func TestParse(t *testing.T) {
	scenarios, err := Parse([]byte(validScenarios))
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "factual-basics", scenarios[0].ID)
	assert.Equal(t, Duration(10*time.Second), scenarios[0].MaxDuration)
	assert.Equal(t, []string{"research", "architecture"}, scenarios[1].ExpectedTools)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenarios), 0o600))

	scenarios, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, scenarios, 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty", `scenarios: []`, "no scenarios"},
		{"missing id", "scenarios:\n  - prompt: p", "id is required"},
		{"duplicate id", "scenarios:\n  - id: a\n    prompt: p\n  - id: a\n    prompt: q", "duplicate id"},
		{"missing prompt", "scenarios:\n  - id: a", "prompt is required"},
		{"bad category", "scenarios:\n  - id: a\n    prompt: p\n    category: trivia", "unknown category"},
		{"bad tool", "scenarios:\n  - id: a\n    prompt: p\n    expected_tools: [search]", "unknown tool"},
		{"not yaml", `{{{{`, "parse scenarios"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRoutingScore(t *testing.T) {
	s := Scenario{Category: "factual"}
	assert.Equal(t, 1.0, RoutingScore(s, classify.CategoryFactual))
	assert.Equal(t, 0.0, RoutingScore(s, classify.CategoryComplex))
	assert.Equal(t, 1.0, RoutingScore(Scenario{}, classify.CategoryComplex))
}

func TestToolSelectionScore(t *testing.T) {
	s := Scenario{ExpectedTools: []string{"research", "architecture"}}

	assert.Equal(t, 1.0, ToolSelectionScore(s, []string{"research", "architecture"}))
	assert.Equal(t, 1.0, ToolSelectionScore(s, []string{"architecture", "research", "code"}))
	assert.InDelta(t, 0.75, ToolSelectionScore(s, []string{"research"}), 1e-9)
	assert.Equal(t, 0.0, ToolSelectionScore(s, []string{"code"}))
	assert.Equal(t, 1.0, ToolSelectionScore(Scenario{}, nil))
}

func TestKeywordCoverage(t *testing.T) {
	s := Scenario{Keywords: []string{"Goroutine", "channel", "mutex"}}
	answer := "A goroutine communicates over a channel."

	assert.InDelta(t, 2.0/3.0, KeywordCoverage(s, answer), 1e-9)
	assert.Equal(t, 1.0, KeywordCoverage(Scenario{}, answer))
	assert.Equal(t, 0.0, KeywordCoverage(s, "unrelated text"))
}

func TestPerformanceScore(t *testing.T) {
	s := Scenario{MaxDuration: Duration(10 * time.Second)}

	assert.Equal(t, 1.0, PerformanceScore(s, 5*time.Second))
	assert.Equal(t, 1.0, PerformanceScore(s, 10*time.Second))
	assert.InDelta(t, 0.5, PerformanceScore(s, 20*time.Second), 1e-9)
	assert.Equal(t, 1.0, PerformanceScore(Scenario{}, time.Hour))
}

func TestRoutingScoreAgainstClassifier(t *testing.T) {
	scenarios, err := Parse([]byte(validScenarios))
	require.NoError(t, err)

	cl := classify.New()
	for _, s := range scenarios {
		got := cl.Classify(s.Prompt)
		assert.Equal(t, 1.0, RoutingScore(s, got), "scenario %s routed to %s", s.ID, got)
	}
}

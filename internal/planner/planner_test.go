package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"answerd/internal/classify"
	"answerd/internal/llm"
	"answerd/internal/plan"
	"answerd/internal/provider"
)

const goodPlanJSON = `{
  "summary": "compare queue brokers",
  "steps": [
    {"id": 1, "capability": "research", "instruction": "survey Kafka and RabbitMQ delivery guarantees", "depends_on": []},
    {"id": 2, "capability": "architecture", "instruction": "recommend one for an order pipeline", "depends_on": [1]}
  ],
  "rationale": "research before recommending"
}`

func TestCreate(t *testing.T) {
	client := &llm.Mock{Responses: []string{goodPlanJSON}}
	p := New(client, nil)

	got, err := p.Create(context.Background(), "kafka or rabbitmq for orders?", classify.CategoryArchitecture)
	require.NoError(t, err)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, plan.CapabilityResearch, got.Steps[0].Capability)
	assert.Equal(t, []int{1}, got.Steps[1].DependsOn)
	assert.Equal(t, "compare queue brokers", got.Summary)
}

func TestCreateFallsBackOnGarbage(t *testing.T) {
	client := &llm.Mock{Responses: []string{"I cannot produce a plan for that."}}
	p := New(client, nil)

	got, err := p.Create(context.Background(), "what is a mutex?", classify.CategoryFactual)
	require.NoError(t, err)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, plan.CapabilityResearch, got.Steps[0].Capability)
	assert.Contains(t, got.Steps[0].Instruction, "what is a mutex?")
}

func TestCreateFallsBackOnTransientError(t *testing.T) {
	client := &llm.Mock{Err: &llm.APIError{Backend: "openai", StatusCode: 503}}
	p := New(client, nil)

	got, err := p.Create(context.Background(), "design a cache", classify.CategoryArchitecture)
	require.NoError(t, err)
	require.Len(t, got.Steps, 1)
}

func TestCreateSurfacesAuthError(t *testing.T) {
	client := &llm.Mock{Err: &llm.APIError{Backend: "openai", StatusCode: 401}}
	p := New(client, nil)

	_, err := p.Create(context.Background(), "design a cache", classify.CategoryArchitecture)
	require.Error(t, err)
	assert.True(t, provider.IsAuth(err))
}

func TestRefineAppendsCritiqueWhenPlanUnchanged(t *testing.T) {
	client := &llm.Mock{Responses: []string{goodPlanJSON, goodPlanJSON}}
	p := New(client, nil)

	prior, err := p.Create(context.Background(), "kafka or rabbitmq?", classify.CategoryArchitecture)
	require.NoError(t, err)

	refined, err := p.Refine(context.Background(), "kafka or rabbitmq?", classify.CategoryArchitecture, prior, "missing throughput numbers")
	require.NoError(t, err)
	assert.Contains(t, refined.Steps[0].Instruction, "missing throughput numbers")
	assert.False(t, plan.Equal(refined, prior))
}

func TestRefineKeepsChangedPlan(t *testing.T) {
	changed := `{"summary": "s", "steps": [{"id": 1, "capability": "research", "instruction": "measure broker throughput", "depends_on": []}]}`
	client := &llm.Mock{Responses: []string{goodPlanJSON, changed}}
	p := New(client, nil)

	prior, _ := p.Create(context.Background(), "q", classify.CategoryArchitecture)
	refined, err := p.Refine(context.Background(), "q", classify.CategoryArchitecture, prior, "critique")
	require.NoError(t, err)
	assert.Equal(t, "measure broker throughput", refined.Steps[0].Instruction)
	assert.NotContains(t, refined.Steps[0].Instruction, "critique")
}

func TestCreateRedactsSecretsFromQuery(t *testing.T) {
	client := &llm.Mock{Responses: []string{goodPlanJSON}}
	p := New(client, nil)

	query := "Why does my connection string AccountKey=abcdefghijklmnopqrstuvwx0123456789ABCD== fail?"
	_, err := p.Create(context.Background(), query, classify.CategoryComplex)
	require.NoError(t, err)
	require.Len(t, client.Prompts, 1)
	assert.NotContains(t, client.Prompts[0], "abcdefghijklmnopqrstuvwx0123456789ABCD")
	assert.Contains(t, client.Prompts[0], "[REDACTED]")
}

func TestRefineRedactsSecretsFromCritique(t *testing.T) {
	client := &llm.Mock{Responses: []string{goodPlanJSON, goodPlanJSON}}
	p := New(client, nil)

	prior, err := p.Create(context.Background(), "q", classify.CategoryArchitecture)
	require.NoError(t, err)

	_, err = p.Refine(context.Background(), "q", classify.CategoryArchitecture, prior,
		"the answer leaked api_key=sk-live-secret123456789012")
	require.NoError(t, err)
	require.Len(t, client.Prompts, 2)
	assert.NotContains(t, client.Prompts[1], "sk-live-secret123456789012")
	assert.Contains(t, client.Prompts[1], "[REDACTED]")
}

func TestParseRepairs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		category classify.Category
		check    func(t *testing.T, got *plan.Plan)
	}{
		{
			name:     "field aliases",
			input:    `{"summary": "s", "plan_steps": [{"step_number": 1, "tool": "code", "task": "write it", "dependencies": []}]}`,
			category: classify.CategoryCode,
			check: func(t *testing.T, got *plan.Plan) {
				require.Len(t, got.Steps, 1)
				assert.Equal(t, 1, got.Steps[0].ID)
				assert.Equal(t, plan.CapabilityCode, got.Steps[0].Capability)
				assert.Equal(t, "write it", got.Steps[0].Instruction)
			},
		},
		{
			name:     "missing ids assigned by position",
			input:    `{"steps": [{"capability": "research", "instruction": "a"}, {"capability": "research", "instruction": "b"}]}`,
			category: classify.CategoryComplex,
			check: func(t *testing.T, got *plan.Plan) {
				require.Len(t, got.Steps, 2)
				assert.Equal(t, 1, got.Steps[0].ID)
				assert.Equal(t, 2, got.Steps[1].ID)
			},
		},
		{
			name:     "unknown capability coerced to category default",
			input:    `{"steps": [{"id": 1, "capability": "web_search", "instruction": "find it"}]}`,
			category: classify.CategoryArchitecture,
			check: func(t *testing.T, got *plan.Plan) {
				assert.Equal(t, plan.CapabilityArchitecture, got.Steps[0].Capability)
			},
		},
		{
			name:     "dangling and self deps dropped",
			input:    `{"steps": [{"id": 1, "capability": "research", "instruction": "a", "depends_on": [1, 9]}]}`,
			category: classify.CategoryComplex,
			check: func(t *testing.T, got *plan.Plan) {
				assert.Empty(t, got.Steps[0].DependsOn)
			},
		},
		{
			name: "steps clamped to category budget",
			input: `{"steps": [
				{"id": 1, "capability": "research", "instruction": "a"},
				{"id": 2, "capability": "research", "instruction": "b"},
				{"id": 3, "capability": "research", "instruction": "c"}
			]}`,
			category: classify.CategoryHowTo,
			check: func(t *testing.T, got *plan.Plan) {
				assert.Len(t, got.Steps, classify.CategoryHowTo.MaxSteps())
			},
		},
		{
			name:     "prose around JSON",
			input:    "Here is your plan:\n```json\n{\"steps\": [{\"id\": 1, \"capability\": \"research\", \"instruction\": \"a\"}]}\n```\nGood luck!",
			category: classify.CategoryFactual,
			check: func(t *testing.T, got *plan.Plan) {
				require.Len(t, got.Steps, 1)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input, tt.category)
			require.NoError(t, err)
			require.NoError(t, got.Validate())
			tt.check(t, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no JSON", "sorry, no plan"},
		{"no steps", `{"summary": "s", "steps": []}`},
		{"empty instruction", `{"steps": [{"id": 1, "capability": "research", "instruction": "  "}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, classify.CategoryComplex)
			assert.Error(t, err)
		})
	}
}

// Package planner turns a classified query into an executable step plan, and
// refines a prior plan from verification feedback.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"answerd/internal/classify"
	"answerd/internal/llm"
	"answerd/internal/plan"
	"answerd/internal/provider"
	"answerd/internal/redact"
)

const createPrompt = `You are a planning assistant. Decompose the query into a short plan of
steps, each delegated to one capability.

Capabilities:
- research: look up facts, compare options, gather background
- architecture: produce designs, trade-off analyses, component breakdowns
- code: write or explain code

Rules:
- At most %d steps. Fewer is better.
- Steps that need another step's output list it in depends_on.
- Independent steps must not depend on each other.

Respond with only a JSON object:
{"summary": "...", "steps": [{"id": 1, "capability": "research", "instruction": "...", "depends_on": []}], "rationale": "..."}

Query:
%s`

const refinePrompt = `You are a planning assistant. A previous plan for the query below was
executed, and the result failed verification. Produce an improved plan that
addresses the critique. Do not repeat the previous plan unchanged.

Critique:
%s

Previous plan:
%s

Rules:
- At most %d steps. Fewer is better.
- Steps that need another step's output list it in depends_on.

Respond with only a JSON object:
{"summary": "...", "steps": [{"id": 1, "capability": "research", "instruction": "...", "depends_on": []}], "rationale": "..."}

Query:
%s`

// Planner builds plans with an LLM and repairs what comes back.
type Planner struct {
	client llm.Client
	log    *zap.Logger
}

// New creates a Planner. A nil logger disables logging.
func New(client llm.Client, log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{client: client, log: log}
}

// Create builds a plan for the query. Model output that cannot be repaired
// into a valid plan degrades to a single research step rather than failing
// the query. Authentication failures are the exception and propagate.
func (p *Planner) Create(ctx context.Context, query string, category classify.Category) (*plan.Plan, error) {
	prompt := fmt.Sprintf(createPrompt, category.MaxSteps(), query)
	return p.generate(ctx, prompt, query, category)
}

// Refine builds an improved plan from the critique of a failed iteration. If
// the model returns the prior plan unchanged, the critique is folded into the
// first step so the next execution differs.
func (p *Planner) Refine(ctx context.Context, query string, category classify.Category, prior *plan.Plan, critique string) (*plan.Plan, error) {
	priorJSON, err := json.Marshal(prior)
	if err != nil {
		return nil, fmt.Errorf("encode prior plan: %w", err)
	}
	prompt := fmt.Sprintf(refinePrompt, critique, priorJSON, category.MaxSteps(), query)

	refined, err := p.generate(ctx, prompt, query, category)
	if err != nil {
		return nil, err
	}
	if plan.Equal(refined, prior) && len(refined.Steps) > 0 {
		refined.Steps[0].Instruction = refined.Steps[0].Instruction + "\n\nAddress this critique: " + critique
	}
	return refined, nil
}

func (p *Planner) generate(ctx context.Context, prompt, query string, category classify.Category) (*plan.Plan, error) {
	text, err := p.client.Generate(ctx, redact.Query(prompt), llm.Settings{Temperature: 0.2})
	if err != nil {
		perr := provider.Classify(err, "planner")
		if perr.Kind == provider.KindAuth {
			return nil, perr
		}
		p.log.Warn("plan generation failed, using fallback plan", zap.Error(err))
		return plan.Fallback(query), nil
	}

	pl, err := Parse(text, category)
	if err != nil {
		p.log.Warn("plan output unusable, using fallback plan", zap.Error(err))
		return plan.Fallback(query), nil
	}
	return pl, nil
}

// rawPlan tolerates the field spellings models actually produce.
type rawPlan struct {
	Summary   string    `json:"summary"`
	Rationale string    `json:"rationale"`
	Steps     []rawStep `json:"steps"`
	PlanSteps []rawStep `json:"plan_steps"`
}

type rawStep struct {
	ID           int    `json:"id"`
	StepID       int    `json:"step_id"`
	StepNumber   int    `json:"step_number"`
	Capability   string `json:"capability"`
	Tool         string `json:"tool"`
	Agent        string `json:"agent"`
	Instruction  string `json:"instruction"`
	Task         string `json:"task"`
	Description  string `json:"description"`
	DependsOn    []int  `json:"depends_on"`
	Dependencies []int  `json:"dependencies"`
	Deps         []int  `json:"deps"`
}

// Parse extracts and repairs a plan from raw model output. Repairs: field
// aliases, missing ids, unknown capabilities coerced to the category default,
// self and dangling dependencies dropped, and step count clamped to the
// category budget. A plan that still fails validation is an error.
func Parse(text string, category classify.Category) (*plan.Plan, error) {
	obj, ok := llm.FirstJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object in plan output")
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	rawSteps := raw.Steps
	if len(rawSteps) == 0 {
		rawSteps = raw.PlanSteps
	}
	if len(rawSteps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	if max := category.MaxSteps(); len(rawSteps) > max {
		rawSteps = rawSteps[:max]
	}

	steps := make([]plan.Step, 0, len(rawSteps))
	for i, rs := range rawSteps {
		id := firstPositive(rs.ID, rs.StepID, rs.StepNumber)
		if id == 0 {
			id = i + 1
		}
		cap := plan.Capability(strings.ToLower(strings.TrimSpace(firstNonEmpty(rs.Capability, rs.Tool, rs.Agent))))
		if !cap.Valid() {
			cap = plan.Capability(category.DefaultCapability())
		}
		instruction := strings.TrimSpace(firstNonEmpty(rs.Instruction, rs.Task, rs.Description))
		if instruction == "" {
			return nil, fmt.Errorf("step %d has no instruction", id)
		}
		deps := rs.DependsOn
		if len(deps) == 0 {
			deps = rs.Dependencies
		}
		if len(deps) == 0 {
			deps = rs.Deps
		}
		steps = append(steps, plan.Step{ID: id, Capability: cap, Instruction: instruction, DependsOn: deps})
	}

	steps = dropBadDeps(steps)

	pl := &plan.Plan{Summary: raw.Summary, Steps: steps, Rationale: raw.Rationale}
	if err := pl.Validate(); err != nil {
		return nil, fmt.Errorf("repaired plan invalid: %w", err)
	}
	return pl, nil
}

// dropBadDeps removes self references and references to step ids that do not
// exist after clamping.
func dropBadDeps(steps []plan.Step) []plan.Step {
	known := make(map[int]bool, len(steps))
	for _, s := range steps {
		known[s.ID] = true
	}
	for i, s := range steps {
		kept := s.DependsOn[:0]
		for _, d := range s.DependsOn {
			if d != s.ID && known[d] {
				kept = append(kept, d)
			}
		}
		steps[i].DependsOn = kept
	}
	return steps
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

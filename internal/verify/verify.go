// Package verify synthesizes a final answer from step results and scores it
// against the original query.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"answerd/internal/executor"
	"answerd/internal/llm"
	"answerd/internal/plan"
	"answerd/internal/provider"
	"answerd/internal/redact"
)

// Dimension weights and the acceptance threshold. Overall is always computed
// from these, never taken from model output.
const (
	weightCorrectness  = 0.40
	weightCompleteness = 0.35
	weightConsistency  = 0.25

	// PassThreshold is the minimum Overall score for an answer to be accepted.
	PassThreshold = 0.8
)

// Score holds the three dimension scores and their weighted combination.
type Score struct {
	Correctness  float64 `json:"correctness"`
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
	Overall      float64 `json:"overall"`
	Passed       bool    `json:"passed"`
}

// Report is one iteration's verification outcome.
type Report struct {
	Answer   string `json:"answer"`
	Score    Score  `json:"score"`
	Critique string `json:"critique"`
}

// Synthesize merges step payloads in step order into one answer. Failed steps
// contribute a note instead of a payload; degraded reports whether any did.
func Synthesize(p *plan.Plan, results []executor.StepResult) (answer string, degraded bool) {
	var b strings.Builder
	for _, r := range results {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		step, _ := p.Step(r.StepID)
		if !r.OK() {
			degraded = true
			fmt.Fprintf(&b, "[Step %d (%s) did not complete: %s]", r.StepID, r.Capability, r.Err)
			continue
		}
		if len(results) > 1 {
			fmt.Fprintf(&b, "## %s\n\n", step.Instruction)
		}
		b.WriteString(strings.TrimSpace(r.Payload))
	}
	return b.String(), degraded
}

const verifyPrompt = `You are a verification assistant. Score the answer below against the
query on three dimensions, each from 0.0 to 1.0:

- correctness: is the answer factually and technically right?
- completeness: does it address every part of the query?
- consistency: is it free of internal contradictions?

Also write a short critique naming the single weakest dimension and the
specific gap that most needs fixing.

Respond with only a JSON object:
{"correctness": 0.0, "completeness": 0.0, "consistency": 0.0, "critique": "..."}

Query:
%s

Answer:
%s`

// Verifier scores synthesized answers with an LLM.
type Verifier struct {
	client llm.Client
	log    *zap.Logger
}

// New creates a Verifier. A nil logger disables logging.
func New(client llm.Client, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{client: client, log: log}
}

// Verify synthesizes the answer and scores it. A low score is a normal
// outcome, not an error; model output that cannot be parsed degrades to
// neutral 0.5 dimension scores. Only transport-level failures return an
// error, classified by kind so callers can tell auth failures apart.
func (v *Verifier) Verify(ctx context.Context, query string, p *plan.Plan, results []executor.StepResult) (Report, error) {
	answer, _ := Synthesize(p, results)

	prompt := redact.Query(fmt.Sprintf(verifyPrompt, query, answer))
	text, err := v.client.Generate(ctx, prompt, llm.Settings{Temperature: 0.0})
	if err != nil {
		return Report{}, provider.Classify(err, "verifier")
	}

	dims, critique, ok := parseScores(text)
	if !ok {
		v.log.Warn("verification output unparseable, using neutral scores")
		dims = [3]float64{0.5, 0.5, 0.5}
		critique = "verification output could not be parsed; scores are neutral"
	}

	score := Combine(dims[0], dims[1], dims[2])
	if !score.Passed && critique == "" {
		critique = defaultCritique(score)
	}
	return Report{Answer: answer, Score: score, Critique: critique}, nil
}

// Combine computes the weighted Overall and the pass decision from clamped
// dimension scores.
func Combine(correctness, completeness, consistency float64) Score {
	s := Score{
		Correctness:  clamp01(correctness),
		Completeness: clamp01(completeness),
		Consistency:  clamp01(consistency),
	}
	s.Overall = weightCorrectness*s.Correctness +
		weightCompleteness*s.Completeness +
		weightConsistency*s.Consistency
	s.Passed = s.Overall >= PassThreshold
	return s
}

type rawScores struct {
	Correctness  *float64 `json:"correctness"`
	Completeness *float64 `json:"completeness"`
	Consistency  *float64 `json:"consistency"`
	Critique     string   `json:"critique"`
	Feedback     string   `json:"feedback"`
}

func parseScores(text string) (dims [3]float64, critique string, ok bool) {
	obj, found := llm.FirstJSONObject(text)
	if !found {
		return dims, "", false
	}
	var raw rawScores
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return dims, "", false
	}
	if raw.Correctness == nil || raw.Completeness == nil || raw.Consistency == nil {
		return dims, "", false
	}
	critique = raw.Critique
	if critique == "" {
		critique = raw.Feedback
	}
	return [3]float64{*raw.Correctness, *raw.Completeness, *raw.Consistency}, critique, true
}

// defaultCritique names the weakest dimension when the model gave none.
func defaultCritique(s Score) string {
	weakest, val := "correctness", s.Correctness
	if s.Completeness < val {
		weakest, val = "completeness", s.Completeness
	}
	if s.Consistency < val {
		weakest, val = "consistency", s.Consistency
	}
	return fmt.Sprintf("weakest dimension is %s (%.2f); improve it in the next attempt", weakest, val)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

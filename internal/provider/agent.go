package provider

import (
	"context"
	"errors"
	"net/http"

	"answerd/internal/llm"
	"answerd/internal/plan"
	"answerd/internal/redact"
)

const (
	researchSystem = `You are a research specialist. Answer the instruction below with
accurate, well-sourced technical information. Be direct and factual. If the
instruction depends on results marked unavailable, answer from what remains
and say what is missing.`

	architectSystem = `You are a software architecture specialist. Answer the instruction
below with concrete design guidance: components, trade-offs, and the reasoning
behind them. Prefer specific technology recommendations over generalities.`

	coderSystem = `You are a coding specialist. Answer the instruction below with working
code and a short explanation. Include error handling the way production code
would. Keep prose to a minimum.`
)

// agent is an LLM-backed capability provider. Each capability differs only in
// its system preamble and sampling temperature.
type agent struct {
	capability plan.Capability
	system     string
	client     llm.Client
	settings   llm.Settings
}

// NewResearch returns the provider for research steps.
func NewResearch(client llm.Client) Provider {
	return &agent{
		capability: plan.CapabilityResearch,
		system:     researchSystem,
		client:     client,
		settings:   llm.Settings{Temperature: 0.3},
	}
}

// NewArchitect returns the provider for architecture steps.
func NewArchitect(client llm.Client) Provider {
	return &agent{
		capability: plan.CapabilityArchitecture,
		system:     architectSystem,
		client:     client,
		settings:   llm.Settings{Temperature: 0.4},
	}
}

// NewCoder returns the provider for code steps.
func NewCoder(client llm.Client) Provider {
	return &agent{
		capability: plan.CapabilityCode,
		system:     coderSystem,
		client:     client,
		settings:   llm.Settings{Temperature: 0.2},
	}
}

func (a *agent) Capability() plan.Capability { return a.capability }

func (a *agent) Invoke(ctx context.Context, instruction string, sessionID string) (Result, error) {
	prompt := a.system + "\n\nInstruction:\n" + redact.Query(instruction)
	text, err := a.client.Generate(ctx, prompt, a.settings)
	if err != nil {
		return Result{}, Classify(err, string(a.capability))
	}
	return Result{Text: text}, nil
}

// Classify wraps a backend error as a provider error. HTTP auth statuses map
// to KindAuth, rate limits and server errors to KindUnavailable, and context
// expiry to KindTimeout.
func Classify(err error, capability string) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(KindTimeout, capability+" provider timed out", err)
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return NewError(KindAuth, capability+" provider rejected credentials", err)
		default:
			return NewError(KindUnavailable, capability+" provider unavailable", err)
		}
	}
	return NewError(KindUnavailable, capability+" provider failed", err)
}

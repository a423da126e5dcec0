// Package provider defines the capability provider contract and the three
// delegation targets: research, architecture, and code.
package provider

import (
	"context"

	"answerd/internal/plan"
)

// Result is a capability provider's answer to one instruction.
type Result struct {
	Text string
}

// Provider is the uniform contract every capability implements. Invoke blocks
// until the provider answers, fails, or ctx is done. Failures are reported as
// *Error values so callers can branch on the kind.
type Provider interface {
	Invoke(ctx context.Context, instruction string, sessionID string) (Result, error)
	Capability() plan.Capability
}

// Registry maps each known capability to its provider.
type Registry map[plan.Capability]Provider

// NewRegistry builds a registry from a list of providers.
func NewRegistry(providers ...Provider) Registry {
	r := make(Registry, len(providers))
	for _, p := range providers {
		r[p.Capability()] = p
	}
	return r
}

// Lookup returns the provider for a capability.
func (r Registry) Lookup(c plan.Capability) (Provider, bool) {
	p, ok := r[c]
	return p, ok
}

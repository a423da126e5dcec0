package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"answerd/internal/llm"
	"answerd/internal/plan"
)

func TestRegistryLookup(t *testing.T) {
	client := &llm.Mock{Responses: []string{"ok"}}
	r := NewRegistry(NewResearch(client), NewArchitect(client), NewCoder(client))

	for _, c := range plan.Capabilities() {
		p, ok := r.Lookup(c)
		require.True(t, ok, "capability %s", c)
		assert.Equal(t, c, p.Capability())
	}

	_, ok := r.Lookup(plan.Capability("search"))
	assert.False(t, ok)
}

func TestAgentInvoke(t *testing.T) {
	client := &llm.Mock{Responses: []string{"the answer"}}
	p := NewResearch(client)

	got, err := p.Invoke(context.Background(), "explain consistent hashing", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "the answer", got.Text)
	require.Len(t, client.Prompts, 1)
	assert.Contains(t, client.Prompts[0], "explain consistent hashing")
}

func TestAgentRedactsSecretsFromInstruction(t *testing.T) {
	client := &llm.Mock{Responses: []string{"ok"}}
	p := NewCoder(client)

	_, err := p.Invoke(context.Background(), "fix auth with api_key=sk-live-secret123456789012", "")
	require.NoError(t, err)
	require.Len(t, client.Prompts, 1)
	assert.NotContains(t, client.Prompts[0], "sk-live-secret123456789012")
	assert.Contains(t, client.Prompts[0], "[REDACTED]")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"canceled", context.Canceled, KindTimeout},
		{"unauthorized", &llm.APIError{Backend: "openai", StatusCode: http.StatusUnauthorized}, KindAuth},
		{"forbidden", &llm.APIError{Backend: "openai", StatusCode: http.StatusForbidden}, KindAuth},
		{"rate limited", &llm.APIError{Backend: "openai", StatusCode: http.StatusTooManyRequests}, KindUnavailable},
		{"server error", &llm.APIError{Backend: "azure", StatusCode: http.StatusBadGateway}, KindUnavailable},
		{"plain error", errors.New("connection refused"), KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, "research")
			assert.Equal(t, tt.want, got.Kind)
			assert.True(t, strings.HasPrefix(got.Msg, "research "))
		})
	}
}

func TestAgentInvokeClassifiesFailure(t *testing.T) {
	client := &llm.Mock{Err: &llm.APIError{Backend: "anthropic", StatusCode: http.StatusUnauthorized}}
	p := NewArchitect(client)

	_, err := p.Invoke(context.Background(), "design a queue", "")
	require.Error(t, err)
	assert.True(t, IsAuth(err))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindUnavailable, KindOf(errors.New("boom")))
	assert.Equal(t, KindAuth, KindOf(NewError(KindAuth, "denied", nil)))
}

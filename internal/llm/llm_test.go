package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"key": "value"}`, `{"key": "value"}`},
		{"json fence", "```json\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"bare fence", "```\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"surrounding whitespace", "  \n```json\n{\"key\": \"value\"}\n```\n  ", `{"key": "value"}`},
		{"no closing fence", "```json\n{\"key\": \"value\"}", `{"key": "value"}`},
		{"trimmed", "  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.input))
		})
	}
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`, true},
		{"prose around", `Here is the plan: {"a": 1} hope it helps`, `{"a": 1}`, true},
		{"nested", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`, true},
		{"braces in strings", `{"a": "open { mid } close"}`, `{"a": "open { mid } close"}`, true},
		{"escaped quote", `{"a": "say \"hi\" {x}"}`, `{"a": "say \"hi\" {x}"}`, true},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"no object", "plain prose only", "", false},
		{"unbalanced", `{"a": 1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstJSONObject(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnthropicGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.NotEmpty(t, r.Header.Get("Anthropic-Version"))

		resp := anthropicResponse{Content: []anthropicContentBlock{{Type: "text", Text: `{"result": "ok"}`}}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := &Anthropic{apiKey: "test-key", apiURL: srv.URL, model: "claude-sonnet-4-6", client: srv.Client()}
	got, err := c.Generate(context.Background(), "prompt", Settings{Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, `{"result": "ok"}`, got)
}

func TestAnthropicStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "bad key"}`))
	}))
	defer srv.Close()

	c := &Anthropic{apiKey: "bad", apiURL: srv.URL, client: srv.Client()}
	_, err := c.Generate(context.Background(), "prompt", Settings{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "anthropic", apiErr.Backend)
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		resp := chatResponse{Choices: []chatChoice{{Message: chatMessage{Content: "hello"}}}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := &OpenAI{apiKey: "test-key", apiURL: srv.URL, model: "gpt-4o", client: srv.Client()}
	got, err := c.Generate(context.Background(), "prompt", Settings{})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestOpenAIRateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	c := &OpenAI{apiKey: "k", apiURL: srv.URL, client: srv.Client()}
	_, err := c.Generate(context.Background(), "prompt", Settings{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestOpenAISeedOmittedWhenNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		json.NewDecoder(r.Body).Decode(&raw)
		_, hasSeed := raw["seed"]
		assert.False(t, hasSeed, "seed should be omitted when nil")

		resp := chatResponse{Choices: []chatChoice{{Message: chatMessage{Content: "ok"}}}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := &OpenAI{apiKey: "k", apiURL: srv.URL, client: srv.Client()}
	_, err := c.Generate(context.Background(), "prompt", Settings{})
	require.NoError(t, err)
}

func TestResolveExplicitBackends(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")

	c, err := Resolve(ResolveOptions{Backend: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	c, err = Resolve(ResolveOptions{Backend: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())

	c, err = Resolve(ResolveOptions{Backend: "azure", APIKey: "k", AzureEndpoint: "https://example.openai.azure.com", AzureDeployment: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "azure", c.Name())

	_, err = Resolve(ResolveOptions{Backend: "cohere"})
	assert.Error(t, err)
}

func TestResolveAutoDetect(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_KEY", "k")
	t.Setenv("ANTHROPIC_API_KEY", "k")

	c, err := Resolve(ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "azure", c.Name(), "azure takes precedence when configured")

	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	c, err = Resolve(ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	_, err = Resolve(ResolveOptions{})
	assert.Error(t, err)
}

func TestMock(t *testing.T) {
	m := &Mock{Responses: []string{"one", "two"}}
	got, err := m.Generate(context.Background(), "p1", Settings{})
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	got, _ = m.Generate(context.Background(), "p2", Settings{})
	assert.Equal(t, "two", got)

	// Last response repeats once exhausted.
	got, _ = m.Generate(context.Background(), "p3", Settings{})
	assert.Equal(t, "two", got)
	assert.Equal(t, 3, m.Calls)
	assert.Equal(t, []string{"p1", "p2", "p3"}, m.Prompts)
}

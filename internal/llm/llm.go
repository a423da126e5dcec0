// Package llm defines the language-model client interface and its backends.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Settings configures a single generation request.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Seed        *int
}

// Client generates text from a prompt.
type Client interface {
	Generate(ctx context.Context, prompt string, settings Settings) (string, error)
	Name() string
}

// APIError is a non-2xx response from a model API. Callers classify it by
// status code.
type APIError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: API returned %d: %s", e.Backend, e.StatusCode, e.Body)
}

// ExtractJSON strips markdown code fences around a JSON payload and trims
// surrounding whitespace. Models occasionally fence their output despite
// instructions not to.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// FirstJSONObject returns the first balanced JSON object in text, tolerating
// prose before or after it. Returns false if no object is found.
func FirstJSONObject(text string) (string, bool) {
	text = ExtractJSON(text)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

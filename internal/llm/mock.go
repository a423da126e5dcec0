package llm

import "context"

// Mock is a test double. Responses are returned in order; when exhausted the
// last one repeats. Err, when set, is returned for every call.
type Mock struct {
	Responses []string
	Err       error

	Calls   int
	Prompts []string
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Generate(_ context.Context, prompt string, _ Settings) (string, error) {
	m.Calls++
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	i := m.Calls - 1
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}

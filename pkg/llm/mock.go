package llm

import (
	"context"
	"sync"
)

// MockCompleter is a configurable mock for testing LLM consumers.
// Set CompleteFunc to control behavior, or queue canned replies with Responses.
type MockCompleter struct {
	// CompleteFunc is called when Complete is invoked. Takes precedence over Responses.
	CompleteFunc func(ctx context.Context, prompt string, model ModelID) (string, error)

	// Responses are returned in order; the last one repeats once exhausted.
	Responses []MockResponse

	mu      sync.Mutex
	calls   int
	prompts []string
	models  []ModelID
}

// MockResponse is one canned reply.
type MockResponse struct {
	Text string
	Err  error
}

// NewMockCompleter creates a mock that replies with the given texts in order.
func NewMockCompleter(texts ...string) *MockCompleter {
	m := &MockCompleter{}
	for _, t := range texts {
		m.Responses = append(m.Responses, MockResponse{Text: t})
	}
	return m
}

// Complete implements Completer.
func (m *MockCompleter) Complete(ctx context.Context, prompt string, model ModelID) (string, error) {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.models = append(m.models, model)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, model)
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	r := m.Responses[idx]
	return r.Text, r.Err
}

// Calls returns how many times Complete was invoked.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns the prompts received so far.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Models returns the models requested so far.
func (m *MockCompleter) Models() []ModelID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ModelID(nil), m.models...)
}

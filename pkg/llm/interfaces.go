// Package llm provides access to the chat models used for query generation and
// answer synthesis.
package llm

import (
	"context"
)

// Completer turns a prompt into model text.
// Use this interface for dependency injection to enable mocking in tests.
type Completer interface {
	// Complete sends a single-turn prompt to the given model and returns its text.
	Complete(ctx context.Context, prompt string, model ModelID) (string, error)
}

// Backend is one provider's API. Router selects a backend by ModelID.
type Backend interface {
	Provider() Provider

	// Complete sends the prompt using the provider-side model name.
	Complete(ctx context.Context, prompt string, model ModelInfo) (string, error)
}

var (
	_ Completer = (*Router)(nil)
	_ Completer = (*MockCompleter)(nil)
	_ Backend   = (*OpenAIBackend)(nil)
	_ Backend   = (*AnthropicBackend)(nil)
)

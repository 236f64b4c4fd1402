// Package model defines the language-model collaborator used by model-call
// steps, plus a mock for hermetic tests. Provider adapters live in the
// openai, anthropic, and google subpackages.
package model

import "context"

// Request is a single completion request.
type Request struct {
	// Prompt is the fully rendered prompt text.
	Prompt string

	// Model names the provider model, e.g. "gpt-4o" or
	// "claude-sonnet-4-20250514".
	Model string

	// Temperature is the sampling temperature. Zero means provider
	// default.
	Temperature float64

	// MaxTokens caps the response length. Zero means the adapter's
	// default.
	MaxTokens int
}

// Completer produces a text completion for a prompt.
//
// Implementations wrap provider SDKs and are safe for concurrent use.
// Errors are returned as-is so resilience wrappers and steps decide how to
// retry or recover.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

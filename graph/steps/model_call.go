package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/dashworks/graphflow/graph"
	"github.com/dashworks/graphflow/graph/model"
	"github.com/dashworks/graphflow/graph/resilience"
)

// ModelCall is a step that renders a prompt from the state, sends it to a
// language model, and writes the completion under OutputKey.
//
// The call runs behind the configured resilience stack: an optional
// per-call timeout, then retries, then an optional circuit breaker keyed
// by CircuitID. Breaker trips surface as errors unless a Fallback is set.
type ModelCall struct {
	// Completer is the model collaborator. Required.
	Completer model.Completer

	// Prompt is a template with {{key}} placeholders resolved from the
	// state.
	Prompt string

	// Model and Temperature pass through to the completer.
	Model       string
	Temperature float64
	MaxTokens   int

	// OutputKey receives the completion text. Defaults to "output".
	OutputKey string

	// Retry configures backoff for failed calls. Nil uses the default
	// policy (3 retries, 1s base delay, factor 2).
	Retry *resilience.RetryPolicy

	// Timeout bounds each whole call (all attempts). Zero disables.
	Timeout time.Duration

	// Breakers and CircuitID guard the call with a shared circuit
	// breaker. Both nil/empty disables the breaker.
	Breakers  *resilience.Registry
	CircuitID string

	// Fallback supplies a completion when the circuit is open.
	Fallback func(ctx context.Context, state graph.State) (string, error)
}

// Execute implements graph.Step.
func (s *ModelCall) Execute(ctx context.Context, state graph.State) (graph.State, error) {
	if s.Completer == nil {
		return nil, fmt.Errorf("model call: completer not configured")
	}

	req := model.Request{
		Prompt:      render(s.Prompt, state),
		Model:       s.Model,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}

	policy := resilience.RetryPolicy{}
	if s.Retry != nil {
		policy = *s.Retry
	}

	call := func(ctx context.Context) (string, error) {
		return resilience.Retry(ctx, policy, "model call "+s.Model, func(ctx context.Context) (string, error) {
			return s.Completer.Complete(ctx, req)
		})
	}

	if s.Breakers != nil && s.CircuitID != "" {
		inner := call
		call = func(ctx context.Context) (string, error) {
			var fallback func(context.Context) (string, error)
			if s.Fallback != nil {
				fallback = func(ctx context.Context) (string, error) {
					return s.Fallback(ctx, state)
				}
			}
			return resilience.WithBreaker(ctx, s.Breakers, s.CircuitID, inner, fallback)
		}
	}

	var completion string
	var err error
	if s.Timeout > 0 {
		completion, err = resilience.WithTimeout(ctx, s.Timeout, "model call "+s.Model, call, nil)
	} else {
		completion, err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	key := s.OutputKey
	if key == "" {
		key = "output"
	}
	return graph.State{key: completion}, nil
}

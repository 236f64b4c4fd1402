package steps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dashworks/graphflow/graph"
	"github.com/dashworks/graphflow/graph/model"
	"github.com/dashworks/graphflow/graph/resilience"
)

func noRetry() *resilience.RetryPolicy {
	return &resilience.RetryPolicy{MaxRetries: -1, Logf: func(string, ...any) {}}
}

func TestModelCall_Execute(t *testing.T) {
	t.Run("renders prompt and writes output", func(t *testing.T) {
		mock := &model.MockCompleter{Responses: []string{"the notes"}}
		step := &ModelCall{
			Completer: mock,
			Prompt:    "Research {{topic}}",
			Model:     "test-model",
			OutputKey: "notes",
		}

		delta, err := step.Execute(context.Background(), graph.State{"topic": "solar"})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if delta.GetString("notes") != "the notes" {
			t.Errorf("delta = %v", delta)
		}

		calls := mock.Calls()
		if len(calls) != 1 {
			t.Fatalf("expected 1 call, got %d", len(calls))
		}
		if calls[0].Prompt != "Research solar" || calls[0].Model != "test-model" {
			t.Errorf("request = %+v", calls[0])
		}
	})

	t.Run("output key defaults", func(t *testing.T) {
		mock := &model.MockCompleter{Responses: []string{"x"}}
		step := &ModelCall{Completer: mock, Prompt: "p"}

		delta, err := step.Execute(context.Background(), graph.State{})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if delta.GetString("output") != "x" {
			t.Errorf("delta = %v", delta)
		}
	})

	t.Run("missing completer", func(t *testing.T) {
		step := &ModelCall{Prompt: "p"}
		if _, err := step.Execute(context.Background(), graph.State{}); err == nil {
			t.Error("expected error without completer")
		}
	})

	t.Run("retries a failing completer", func(t *testing.T) {
		mock := &model.MockCompleter{Err: errors.New("rate limited")}
		step := &ModelCall{
			Completer: mock,
			Prompt:    "p",
			Retry: &resilience.RetryPolicy{
				MaxRetries: 2,
				Delay:      time.Millisecond,
				Logf:       func(string, ...any) {},
			},
		}

		_, err := step.Execute(context.Background(), graph.State{})
		if err == nil {
			t.Fatal("expected error after exhausted retries")
		}
		if mock.CallCount() != 3 {
			t.Errorf("expected 3 attempts, got %d", mock.CallCount())
		}
	})

	t.Run("timeout bounds the call", func(t *testing.T) {
		slow := slowCompleter{delay: 100 * time.Millisecond}
		step := &ModelCall{
			Completer: slow,
			Prompt:    "p",
			Timeout:   10 * time.Millisecond,
			Retry:     noRetry(),
		}

		_, err := step.Execute(context.Background(), graph.State{})
		if !errors.Is(err, resilience.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("open circuit uses the fallback", func(t *testing.T) {
		reg := resilience.NewRegistry(1, time.Minute)
		reg.RecordFailure("llm")

		step := &ModelCall{
			Completer: &model.MockCompleter{Responses: []string{"live answer"}},
			Prompt:    "p",
			Retry:     noRetry(),
			Breakers:  reg,
			CircuitID: "llm",
			Fallback: func(ctx context.Context, state graph.State) (string, error) {
				return "canned answer", nil
			},
		}

		delta, err := step.Execute(context.Background(), graph.State{})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if delta.GetString("output") != "canned answer" {
			t.Errorf("delta = %v", delta)
		}
	})

	t.Run("open circuit without fallback fails", func(t *testing.T) {
		reg := resilience.NewRegistry(1, time.Minute)
		reg.RecordFailure("llm")

		step := &ModelCall{
			Completer: &model.MockCompleter{Responses: []string{"x"}},
			Prompt:    "p",
			Retry:     noRetry(),
			Breakers:  reg,
			CircuitID: "llm",
		}

		_, err := step.Execute(context.Background(), graph.State{})
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			t.Errorf("expected ErrCircuitOpen, got %v", err)
		}
	})
}

type slowCompleter struct {
	delay time.Duration
}

func (s slowCompleter) Complete(ctx context.Context, _ model.Request) (string, error) {
	select {
	case <-time.After(s.delay):
		return "late", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

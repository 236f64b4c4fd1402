package graph

import "context"

// StepKind identifies one of the built-in step variants.
//
// The engine itself is agnostic to kinds - any Step implementation runs the
// same way - but kinds are recorded on execution records and exported in DOT
// output so traces stay readable.
type StepKind string

// Built-in step kinds. Constructors for each live in the steps package.
const (
	KindModelCall       StepKind = "model_call"
	KindToolCall        StepKind = "tool_call"
	KindMemoryOp        StepKind = "memory_op"
	KindHumanInput      StepKind = "human_input"
	KindConditionRouter StepKind = "condition_router"
	// KindCustom marks steps built outside the steps package.
	KindCustom StepKind = "custom"
)

// Step is the uniform execution contract every step type implements.
//
// Execute receives the current run state and returns a delta to merge on top
// of it. It must be deterministic with respect to its configuration (same
// state and config attempt the same side effects), but it may perform
// external I/O - model calls, tool calls, storage - and therefore may fail
// or take variable time.
//
// Any returned error propagates to the engine, which records it on the
// step's execution record and halts the run as Failed. Steps that want to
// recover from their own failures (the Tool-Call onError handler) must do so
// before returning.
type Step interface {
	// Execute runs the step against the current state and returns the
	// delta to merge. Implementations should respect ctx cancellation on
	// their external calls; the engine itself only cancels between steps.
	Execute(ctx context.Context, state State) (State, error)
}

// StepFunc adapts a plain function to the Step interface.
//
// Example:
//
//	double := graph.StepFunc(func(ctx context.Context, s graph.State) (graph.State, error) {
//	    n, _ := s["n"].(float64)
//	    return graph.State{"n": n * 2}, nil
//	})
type StepFunc func(ctx context.Context, state State) (State, error)

// Execute implements Step.
func (f StepFunc) Execute(ctx context.Context, state State) (State, error) {
	return f(ctx, state)
}

// StepDefinition binds a step id and kind to its implementation within a
// GraphDefinition.
type StepDefinition struct {
	// ID uniquely identifies the step within its graph.
	ID string

	// Kind is the step variant, used for traces and DOT export.
	Kind StepKind

	// Step is the executable implementation.
	Step Step
}

package graph

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// EdgeDefinition represents a connection between two steps in the workflow
// graph.
//
// Edges define the control flow between steps. They can be:
// - Unconditional: Always traverse (When = nil).
// - Conditional: Only traverse if predicate returns true (When != nil).
//
// During execution the Engine evaluates every outgoing edge of a completed
// step against the state produced by that step. All edges whose predicates
// pass contribute their targets to the frontier, so a step with several
// passing edges fans out to several successors.
type EdgeDefinition struct {
	// Source is the id of the step the edge leaves.
	Source string

	// Target is the id of the step the edge enters.
	Target string

	// When is an optional predicate that determines if this edge should be
	// traversed. If nil, the edge is unconditional (always traverse).
	When Predicate

	// Condition is the expression source text When was compiled from, if
	// the edge was added with AddEdgeWhen. Kept for DOT export and YAML
	// round-trips.
	Condition string
}

// Predicate evaluates state to determine if an edge should be traversed.
//
// Predicates enable conditional routing based on workflow state.
// They should be pure functions (deterministic, no side effects).
// A predicate that reads an absent key must treat it as falsy rather
// than panic.
//
// Common patterns:
// - Threshold: state["score"].(float64) > 0.8.
// - Presence: state.GetString("result") != "".
// - Boolean flag: state.GetBool("approved").
type Predicate func(state State) bool

// compileCondition compiles an expr source string into a Predicate.
//
// The expression is evaluated with the run state as its environment, so
// `score > 0.8` reads state["score"]. Compilation errors and non-boolean
// results are configuration errors: the expression is wrong, not the run.
func compileCondition(source string) (Predicate, error) {
	program, err := expr.Compile(source, expr.Env(map[string]any{}), expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("invalid edge condition %q: %v", source, err),
			Code:    "BAD_CONDITION",
			Cause:   err,
		}
	}

	return func(state State) bool {
		out, err := vm.Run(program, map[string]any(state))
		if err != nil {
			// Runtime evaluation errors (nil arithmetic and the like)
			// mean the condition does not hold for this state.
			return false
		}
		b, ok := out.(bool)
		return ok && b
	}, nil
}

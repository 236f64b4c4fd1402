package steps

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/dashworks/graphflow/graph"
)

// ConditionRouter is a step that evaluates an expression over the state
// and writes the boolean result under OutputKey.
//
// Routing happens through ordinary edges: downstream edges test the
// written key ("route" and "not route"), keeping the decision visible in
// the state and the execution trace rather than hidden in edge logic.
type ConditionRouter struct {
	program   *vm.Program
	source    string
	outputKey string
}

// NewConditionRouter compiles the expression once. The expression uses
// the same expr syntax as edge conditions, e.g. "score > 0.8 and approved".
// OutputKey defaults to "route".
func NewConditionRouter(condition, outputKey string) (*ConditionRouter, error) {
	program, err := expr.Compile(condition, expr.Env(map[string]any{}), expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", condition, err)
	}
	if outputKey == "" {
		outputKey = "route"
	}
	return &ConditionRouter{program: program, source: condition, outputKey: outputKey}, nil
}

// Execute implements graph.Step.
func (s *ConditionRouter) Execute(_ context.Context, state graph.State) (graph.State, error) {
	out, err := vm.Run(s.program, map[string]any(state))
	if err != nil {
		return nil, fmt.Errorf("condition %q failed: %w", s.source, err)
	}

	// Absent variables evaluate to nil; treat anything but true as false,
	// matching edge predicate semantics.
	result, _ := out.(bool)

	return graph.State{s.outputKey: result}, nil
}

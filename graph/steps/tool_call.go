package steps

import (
	"context"
	"fmt"

	"github.com/dashworks/graphflow/graph"
	"github.com/dashworks/graphflow/graph/tool"
)

// ToolCall is a step that invokes a registered tool and writes its output
// under OutputKey.
//
// String values in Input are templates rendered against the state, so
// config like {"url": "https://api/{{city}}"} picks up state at run time.
type ToolCall struct {
	// Tools is the registry to resolve the tool from. Required.
	Tools *tool.Registry

	// Tool is the registered tool name. Unknown names fail the step.
	Tool string

	// Input is the tool's input map; string values are rendered
	// templates.
	Input map[string]any

	// OutputKey receives the tool result map. Defaults to the tool name.
	OutputKey string

	// OnError, when set, turns a tool failure into a recovery delta
	// instead of failing the run. Returning an error from OnError fails
	// the run with that error.
	OnError func(ctx context.Context, state graph.State, err error) (graph.State, error)
}

// Execute implements graph.Step.
func (s *ToolCall) Execute(ctx context.Context, state graph.State) (graph.State, error) {
	if s.Tools == nil {
		return nil, fmt.Errorf("tool call: registry not configured")
	}

	output, err := s.Tools.Invoke(ctx, s.Tool, renderInput(s.Input, state))
	if err != nil {
		if s.OnError != nil {
			return s.OnError(ctx, state, err)
		}
		return nil, err
	}

	key := s.OutputKey
	if key == "" {
		key = s.Tool
	}
	return graph.State{key: output}, nil
}

package steps

import (
	"fmt"
	"time"

	"github.com/dashworks/graphflow/graph"
	"github.com/dashworks/graphflow/graph/approval"
	"github.com/dashworks/graphflow/graph/memory"
	"github.com/dashworks/graphflow/graph/model"
	"github.com/dashworks/graphflow/graph/resilience"
	"github.com/dashworks/graphflow/graph/tool"
)

// Env bundles the collaborators the built-in steps depend on and acts as
// the standard graph.StepFactory for YAML-loaded workflows.
//
// Example:
//
//	env := steps.Env{
//	    Completer: openai.New(os.Getenv("OPENAI_API_KEY")),
//	    Tools:     registry,
//	    Memory:    memory.NewInMem(),
//	    Approvals: approval.NewInMem(),
//	}
//	g, err := graph.LoadYAML(data, env.Build)
type Env struct {
	Completer model.Completer
	Tools     *tool.Registry
	Memory    memory.Store
	Approvals approval.Store

	// Breakers guards model calls when a config sets a circuit id.
	Breakers *resilience.Registry
}

// Build constructs a step of the given kind from declarative config.
// Unknown kinds and missing collaborators are errors.
func (e Env) Build(kind graph.StepKind, config map[string]any) (graph.Step, error) {
	switch kind {
	case graph.KindModelCall:
		if e.Completer == nil {
			return nil, fmt.Errorf("model_call requires a completer")
		}
		return &ModelCall{
			Completer:   e.Completer,
			Prompt:      cfgString(config, "prompt"),
			Model:       cfgString(config, "model"),
			Temperature: cfgFloat(config, "temperature"),
			MaxTokens:   cfgInt(config, "maxTokens"),
			OutputKey:   cfgString(config, "outputKey"),
			Timeout:     cfgDuration(config, "timeoutMs"),
			Breakers:    e.Breakers,
			CircuitID:   cfgString(config, "circuitId"),
		}, nil

	case graph.KindToolCall:
		if e.Tools == nil {
			return nil, fmt.Errorf("tool_call requires a tool registry")
		}
		name := cfgString(config, "tool")
		if name == "" {
			return nil, fmt.Errorf("tool_call requires a tool name")
		}
		return &ToolCall{
			Tools:     e.Tools,
			Tool:      name,
			Input:     cfgMap(config, "input"),
			OutputKey: cfgString(config, "outputKey"),
		}, nil

	case graph.KindMemoryOp:
		if e.Memory == nil {
			return nil, fmt.Errorf("memory_op requires a memory store")
		}
		return &MemoryOp{
			Memory:     e.Memory,
			Op:         cfgString(config, "op"),
			Key:        cfgString(config, "key"),
			ValueKey:   cfgString(config, "valueKey"),
			Query:      cfgString(config, "query"),
			Limit:      cfgInt(config, "limit"),
			Importance: cfgFloat(config, "importance"),
			TTL:        cfgDuration(config, "ttlMs"),
			OutputKey:  cfgString(config, "outputKey"),
		}, nil

	case graph.KindHumanInput:
		if e.Approvals == nil {
			return nil, fmt.Errorf("human_input requires an approval store")
		}
		_, hasDefault := config["defaultValue"]
		return &HumanInput{
			Approvals:    e.Approvals,
			Prompt:       cfgString(config, "prompt"),
			Wait:         cfgDuration(config, "waitMs"),
			DefaultValue: cfgString(config, "defaultValue"),
			UseDefault:   hasDefault,
			OutputKey:    cfgString(config, "outputKey"),
		}, nil

	case graph.KindConditionRouter:
		condition := cfgString(config, "condition")
		if condition == "" {
			return nil, fmt.Errorf("condition_router requires a condition")
		}
		return NewConditionRouter(condition, cfgString(config, "outputKey"))

	default:
		return nil, fmt.Errorf("unknown step kind: %s", kind)
	}
}

func cfgString(config map[string]any, key string) string {
	v, _ := config[key].(string)
	return v
}

// cfgFloat accepts both YAML int and float scalars.
func cfgFloat(config map[string]any, key string) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func cfgInt(config map[string]any, key string) int {
	switch v := config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func cfgDuration(config map[string]any, key string) time.Duration {
	return time.Duration(cfgInt(config, key)) * time.Millisecond
}

func cfgMap(config map[string]any, key string) map[string]any {
	v, _ := config[key].(map[string]any)
	return v
}

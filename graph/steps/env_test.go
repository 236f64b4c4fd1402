package steps

import (
	"testing"
	"time"

	"github.com/dashworks/graphflow/graph"
	"github.com/dashworks/graphflow/graph/approval"
	"github.com/dashworks/graphflow/graph/memory"
	"github.com/dashworks/graphflow/graph/model"
	"github.com/dashworks/graphflow/graph/tool"
)

func fullEnv() Env {
	return Env{
		Completer: &model.MockCompleter{},
		Tools:     tool.NewRegistry(),
		Memory:    memory.NewInMem(),
		Approvals: approval.NewInMem(),
	}
}

func TestEnv_Build(t *testing.T) {
	t.Run("model_call", func(t *testing.T) {
		step, err := fullEnv().Build(graph.KindModelCall, map[string]any{
			"prompt":      "Research {{topic}}",
			"model":       "gpt-4o",
			"temperature": 0.3,
			"maxTokens":   512,
			"outputKey":   "notes",
			"timeoutMs":   30000,
		})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		mc, ok := step.(*ModelCall)
		if !ok {
			t.Fatalf("step = %T", step)
		}
		if mc.Prompt != "Research {{topic}}" || mc.Model != "gpt-4o" || mc.OutputKey != "notes" {
			t.Errorf("step = %+v", mc)
		}
		if mc.Temperature != 0.3 || mc.MaxTokens != 512 {
			t.Errorf("step = %+v", mc)
		}
		if mc.Timeout != 30*time.Second {
			t.Errorf("timeout = %s", mc.Timeout)
		}
	})

	t.Run("model_call without completer", func(t *testing.T) {
		env := fullEnv()
		env.Completer = nil
		if _, err := env.Build(graph.KindModelCall, nil); err == nil {
			t.Error("expected error without completer")
		}
	})

	t.Run("tool_call", func(t *testing.T) {
		step, err := fullEnv().Build(graph.KindToolCall, map[string]any{
			"tool":  "get_weather",
			"input": map[string]any{"city": "{{city}}"},
		})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		tc, ok := step.(*ToolCall)
		if !ok {
			t.Fatalf("step = %T", step)
		}
		if tc.Tool != "get_weather" || tc.Input["city"] != "{{city}}" {
			t.Errorf("step = %+v", tc)
		}
	})

	t.Run("tool_call without a name", func(t *testing.T) {
		if _, err := fullEnv().Build(graph.KindToolCall, map[string]any{}); err == nil {
			t.Error("expected error without a tool name")
		}
	})

	t.Run("memory_op", func(t *testing.T) {
		step, err := fullEnv().Build(graph.KindMemoryOp, map[string]any{
			"op":         "store",
			"key":        "notes:{{topic}}",
			"valueKey":   "notes",
			"importance": 0.7,
			"ttlMs":      60000,
		})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		mo, ok := step.(*MemoryOp)
		if !ok {
			t.Fatalf("step = %T", step)
		}
		if mo.Op != MemoryStore || mo.Key != "notes:{{topic}}" || mo.ValueKey != "notes" {
			t.Errorf("step = %+v", mo)
		}
		if mo.TTL != time.Minute {
			t.Errorf("ttl = %s", mo.TTL)
		}
	})

	t.Run("human_input", func(t *testing.T) {
		step, err := fullEnv().Build(graph.KindHumanInput, map[string]any{
			"prompt":       "Publish?",
			"waitMs":       5000,
			"defaultValue": "",
		})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		hi, ok := step.(*HumanInput)
		if !ok {
			t.Fatalf("step = %T", step)
		}
		if hi.Wait != 5*time.Second {
			t.Errorf("wait = %s", hi.Wait)
		}
		// Presence of defaultValue enables the default, even empty.
		if !hi.UseDefault {
			t.Error("expected UseDefault")
		}
	})

	t.Run("human_input without default", func(t *testing.T) {
		step, err := fullEnv().Build(graph.KindHumanInput, map[string]any{"prompt": "?"})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if step.(*HumanInput).UseDefault {
			t.Error("UseDefault set without a defaultValue key")
		}
	})

	t.Run("condition_router", func(t *testing.T) {
		step, err := fullEnv().Build(graph.KindConditionRouter, map[string]any{
			"condition": "score > 0.8",
			"outputKey": "ready",
		})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if _, ok := step.(*ConditionRouter); !ok {
			t.Fatalf("step = %T", step)
		}
	})

	t.Run("condition_router requires a condition", func(t *testing.T) {
		if _, err := fullEnv().Build(graph.KindConditionRouter, map[string]any{}); err == nil {
			t.Error("expected error without a condition")
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		if _, err := fullEnv().Build(graph.StepKind("teleport"), nil); err == nil {
			t.Error("expected error for unknown kind")
		}
	})
}

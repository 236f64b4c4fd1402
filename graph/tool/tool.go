// Package tool provides the explicit tool registry consumed by tool-call
// steps.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tool defines the interface for executable tools a workflow can invoke.
//
// Implementations should:
//   - Validate input parameters
//   - Respect context cancellation and timeouts
//   - Return structured output as map[string]interface{}
//
// Example implementation:
//
//	type WeatherTool struct{}
//
//	func (w *WeatherTool) Name() string { return "get_weather" }
//
//	func (w *WeatherTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
//	    location, ok := input["location"].(string)
//	    if !ok {
//	        return nil, errors.New("location parameter required")
//	    }
//	    return map[string]interface{}{"temperature": 72.5, "location": location}, nil
//	}
type Tool interface {
	// Name returns the unique identifier for this tool, lowercase with
	// underscores: "search_web", "get_weather", "send_email".
	Name() string

	// Call executes the tool with the provided input. Input may be nil
	// for parameterless tools.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// Func adapts a function to the Tool interface.
type Func struct {
	// ToolName is the registry key.
	ToolName string

	// Fn is the implementation.
	Fn func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// Name implements Tool.
func (f Func) Name() string { return f.ToolName }

// Call implements Tool.
func (f Func) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return f.Fn(ctx, input)
}

// Registry is an explicit allowlist of tools available to workflow steps.
//
// Tool names must be registered before a run references them; invoking an
// unregistered name fails fast rather than guessing. Safe for concurrent
// use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate name is an error so one
// tool cannot silently shadow another.
func (r *Registry) Register(t Tool) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("tool must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Invoke runs the named tool. An unknown name fails immediately so steps
// surface configuration mistakes instead of guessing.
func (r *Registry) Invoke(ctx context.Context, name string, input map[string]interface{}) (map[string]interface{}, error) {
	r.mu.RLock()
	t, exists := r.tools[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return t.Call(ctx, input)
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

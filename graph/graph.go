package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/awalterschulze/gographviz"
	"github.com/google/uuid"
)

// GraphDefinition is an immutable description of a workflow: steps plus the
// edges connecting them.
//
// Definitions are built once with AddStep/AddEdge and then executed any
// number of times concurrently. The first execution seals the definition:
// further AddStep/AddEdge calls fail with ErrGraphSealed, so a running
// engine never observes a mutating topology.
//
// Example:
//
//	g := graph.NewGraph("research-pipeline")
//	g.AddStep("research", graph.KindModelCall, researchStep)
//	g.AddStep("draft", graph.KindModelCall, draftStep)
//	g.AddEdge("research", "draft", nil)
type GraphDefinition struct {
	mu sync.RWMutex

	// ID uniquely identifies this definition. Generated if not provided.
	ID string

	// Name is a human-readable label used in events and DOT output.
	Name string

	// Metadata carries optional caller-defined annotations (team, env,
	// ticket). It is surfaced on the run_start event and never interpreted
	// by the engine. Set it before the first execution.
	Metadata map[string]any

	steps map[string]StepDefinition
	// order preserves insertion order for deterministic start-step
	// seeding and DOT export.
	order  []string
	edges  []EdgeDefinition
	sealed bool
}

// NewGraph creates an empty GraphDefinition with a generated id.
func NewGraph(name string) *GraphDefinition {
	return &GraphDefinition{
		ID:    uuid.NewString(),
		Name:  name,
		steps: make(map[string]StepDefinition),
	}
}

// AddStep registers a step in the graph.
//
// Step ids must be unique within the graph. Returns a ConfigError if the id
// is empty, the step is nil, or the id is already taken, and ErrGraphSealed
// if execution has already started.
func (g *GraphDefinition) AddStep(id string, kind StepKind, step Step) error {
	if id == "" {
		return &ConfigError{Message: "step id cannot be empty", Code: "EMPTY_STEP_ID"}
	}
	if step == nil {
		return &ConfigError{Message: "step cannot be nil: " + id, Code: "NIL_STEP"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sealed {
		return ErrGraphSealed
	}
	if _, exists := g.steps[id]; exists {
		return &ConfigError{Message: "duplicate step id: " + id, Code: "DUPLICATE_STEP"}
	}

	g.steps[id] = StepDefinition{ID: id, Kind: kind, Step: step}
	g.order = append(g.order, id)
	return nil
}

// AddEdge creates an edge between two steps.
//
// A nil predicate makes the edge unconditional. Step existence is not
// validated here so graphs can be wired in any order; dangling targets
// surface as ErrStepNotFound when the engine resolves them.
func (g *GraphDefinition) AddEdge(source, target string, when Predicate) error {
	return g.addEdge(EdgeDefinition{Source: source, Target: target, When: when})
}

// AddEdgeWhen creates a conditional edge whose predicate is an expr
// expression over the state map, e.g. "score > 0.8" or
// "approved and retries < 3". The expression is compiled once, here;
// invalid expressions fail immediately with a ConfigError.
func (g *GraphDefinition) AddEdgeWhen(source, target, condition string) error {
	when, err := compileCondition(condition)
	if err != nil {
		return err
	}
	return g.addEdge(EdgeDefinition{Source: source, Target: target, When: when, Condition: condition})
}

func (g *GraphDefinition) addEdge(edge EdgeDefinition) error {
	if edge.Source == "" {
		return &ConfigError{Message: "edge source cannot be empty", Code: "EMPTY_EDGE_SOURCE"}
	}
	if edge.Target == "" {
		return &ConfigError{Message: "edge target cannot be empty", Code: "EMPTY_EDGE_TARGET"}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sealed {
		return ErrGraphSealed
	}

	g.edges = append(g.edges, edge)
	return nil
}

// seal marks the definition immutable. Called by the engine on first use.
func (g *GraphDefinition) seal() {
	g.mu.Lock()
	g.sealed = true
	g.mu.Unlock()
}

// step returns the definition for id.
func (g *GraphDefinition) step(id string) (StepDefinition, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sd, ok := g.steps[id]
	return sd, ok
}

// StepCount returns the number of registered steps.
func (g *GraphDefinition) StepCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.steps)
}

// startSteps returns the ids of all steps with no incoming edge, in
// insertion order. These seed the execution frontier.
func (g *GraphDefinition) startSteps() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	hasIncoming := make(map[string]bool, len(g.edges))
	for _, e := range g.edges {
		hasIncoming[e.Target] = true
	}

	var starts []string
	for _, id := range g.order {
		if !hasIncoming[id] {
			starts = append(starts, id)
		}
	}
	return starts
}

// outgoing returns the edges leaving the given step, in insertion order.
func (g *GraphDefinition) outgoing(stepID string) []EdgeDefinition {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []EdgeDefinition
	for _, e := range g.edges {
		if e.Source == stepID {
			out = append(out, e)
		}
	}
	return out
}

// successors returns the distinct target ids reachable from stepID by any
// edge, conditional or not. Used when rebuilding a frontier on resume.
func (g *GraphDefinition) successors(stepID string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range g.outgoing(stepID) {
		if !seen[e.Target] {
			seen[e.Target] = true
			ids = append(ids, e.Target)
		}
	}
	return ids
}

// Validate checks the definition for structural problems without executing
// it: at least one step, at least one start step, and no edge endpoint that
// names a missing step.
func (g *GraphDefinition) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.steps) == 0 {
		return &ConfigError{Message: "graph has no steps", Code: "EMPTY_GRAPH"}
	}

	hasIncoming := make(map[string]bool, len(g.edges))
	for _, e := range g.edges {
		if _, ok := g.steps[e.Source]; !ok {
			return &ConfigError{
				Message: "edge source not found: " + e.Source,
				Code:    "STEP_NOT_FOUND",
				Cause:   ErrStepNotFound,
			}
		}
		if _, ok := g.steps[e.Target]; !ok {
			return &ConfigError{
				Message: "edge target not found: " + e.Target,
				Code:    "STEP_NOT_FOUND",
				Cause:   ErrStepNotFound,
			}
		}
		hasIncoming[e.Target] = true
	}

	start := false
	for id := range g.steps {
		if !hasIncoming[id] {
			start = true
			break
		}
	}
	if !start {
		return &ConfigError{
			Message: "every step has an incoming edge, nothing can start",
			Code:    "NO_START_STEP",
			Cause:   ErrNoStartStep,
		}
	}

	return nil
}

// DOT renders the graph in Graphviz DOT format for inspection or dashboard
// rendering. Nodes are labeled "id\n(kind)" and conditional edges carry
// their condition text (or "cond" for Go-function predicates).
func (g *GraphDefinition) DOT() (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	gv := gographviz.NewGraph()
	name := g.Name
	if name == "" {
		name = "workflow"
	}
	if err := gv.SetName(fmt.Sprintf("%q", name)); err != nil {
		return "", fmt.Errorf("failed to name dot graph: %w", err)
	}
	if err := gv.SetDir(true); err != nil {
		return "", fmt.Errorf("failed to set dot direction: %w", err)
	}

	ids := make([]string, len(g.order))
	copy(ids, g.order)
	sort.Strings(ids)

	for _, id := range ids {
		sd := g.steps[id]
		attrs := map[string]string{
			"label": fmt.Sprintf("%q", id+"\\n("+string(sd.Kind)+")"),
			"shape": "box",
		}
		if err := gv.AddNode(fmt.Sprintf("%q", name), fmt.Sprintf("%q", id), attrs); err != nil {
			return "", fmt.Errorf("failed to add dot node %s: %w", id, err)
		}
	}

	for _, e := range g.edges {
		var attrs map[string]string
		switch {
		case e.Condition != "":
			attrs = map[string]string{"label": fmt.Sprintf("%q", e.Condition), "style": "dashed"}
		case e.When != nil:
			attrs = map[string]string{"label": `"cond"`, "style": "dashed"}
		}
		if err := gv.AddEdge(fmt.Sprintf("%q", e.Source), fmt.Sprintf("%q", e.Target), true, attrs); err != nil {
			return "", fmt.Errorf("failed to add dot edge %s->%s: %w", e.Source, e.Target, err)
		}
	}

	return gv.String(), nil
}

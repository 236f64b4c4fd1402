package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dashworks/graphflow/graph/checkpoint"
	"github.com/dashworks/graphflow/graph/emit"
)

// Engine orchestrates stateful workflow execution with checkpointing support.
//
// The Engine is the core runtime that:
//   - Seeds a FIFO frontier with the graph's start steps
//   - Executes steps serially within a run, at most once each
//   - Merges step deltas into the run state
//   - Persists checkpoints and an append-only execution trace via the store
//   - Emits observability events via the emitter
//   - Enforces the MaxSteps limit
//   - Supports pause and resume through checkpoints
//
// One Engine serves many concurrent runs; all per-run state lives on the
// stack of Execute.
//
// Example:
//
//	store := checkpoint.NewMemStore()
//	emitter := emit.NewLogEmitter(os.Stdout, false)
//	engine := graph.NewEngine(store, emitter, graph.Options{})
//
//	result, err := engine.Execute(ctx, g, graph.State{"topic": "go"})
type Engine struct {
	store   checkpoint.Store
	emitter emit.Emitter
	opts    Options
}

// NewEngine creates an Engine with the given configuration.
//
// The store is required; Execute fails with a ConfigError without one.
// The emitter is optional (nil means no events).
func NewEngine(store checkpoint.Store, emitter emit.Emitter, opts Options) *Engine {
	return &Engine{
		store:   store,
		emitter: emitter,
		opts:    opts,
	}
}

// Execute runs the workflow from its start steps to completion, failure, or
// pause, persisting a checkpoint under default creation options.
//
// Error contract:
//   - ConfigError escapes as the returned error before anything persists.
//   - A step failure is NOT an error return: the result has Status
//     RunFailed with the failure in result.Err and the full partial trace.
//   - An InfraError (checkpoint store failure mid-run) is returned together
//     with the partial result so callers can retry the run.
func (e *Engine) Execute(ctx context.Context, g *GraphDefinition, initial State) (*ExecutionResult, error) {
	return e.ExecuteRun(ctx, g, initial, checkpoint.CreateOptions{})
}

// ExecuteRun is Execute with explicit checkpoint creation options (owner,
// retention).
func (e *Engine) ExecuteRun(ctx context.Context, g *GraphDefinition, initial State, opts checkpoint.CreateOptions) (*ExecutionResult, error) {
	if err := e.validate(g); err != nil {
		return nil, err
	}
	g.seal()

	state, err := initial.Snapshot()
	if err != nil {
		return nil, &ConfigError{Message: "initial state is not serializable", Code: "BAD_STATE", Cause: err}
	}

	rec, err := e.store.Create(ctx, g.ID, g.Name, state, opts)
	if err != nil {
		return nil, &InfraError{Op: "create", Cause: err}
	}

	meta := map[string]interface{}{
		"graph_id": g.ID,
		"graph":    g.Name,
	}
	if len(g.Metadata) > 0 {
		meta["metadata"] = g.Metadata
	}
	e.emit(emit.Event{RunID: rec.ID, Msg: "run_start", Meta: meta})
	e.opts.Metrics.RunStarted()

	return e.runLoop(ctx, g, rec.ID, state, make(map[string]bool), g.startSteps(), 0)
}

// Resume continues a Paused or interrupted run from its checkpoint.
//
// The checkpoint state is reloaded, the visited set is rebuilt from the
// completed entries of the execution trace, and the frontier is recomputed:
// start steps not yet executed plus successors of completed steps. The run
// then proceeds through the normal loop, so resumed steps still execute at
// most once overall.
func (e *Engine) Resume(ctx context.Context, g *GraphDefinition, checkpointID string) (*ExecutionResult, error) {
	if err := e.validate(g); err != nil {
		return nil, err
	}
	g.seal()

	rec, err := e.store.Load(ctx, checkpointID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, &ConfigError{
				Message: "checkpoint not found: " + checkpointID,
				Code:    "CHECKPOINT_NOT_FOUND",
				Cause:   err,
			}
		}
		return nil, &InfraError{Op: "load", Cause: err}
	}
	if rec.GraphID != g.ID {
		return nil, &ConfigError{
			Message: fmt.Sprintf("checkpoint %s belongs to graph %s, not %s", checkpointID, rec.GraphID, g.ID),
			Code:    "GRAPH_MISMATCH",
		}
	}

	trace, err := e.store.ListNodeExecutions(ctx, checkpointID)
	if err != nil {
		return nil, &InfraError{Op: "listNodeExecutions", Cause: err}
	}

	visited := make(map[string]bool)
	for _, ex := range trace {
		if ex.Status == checkpoint.StepCompleted {
			visited[ex.StepID] = true
		}
	}

	// Rebuild the frontier: anything a completed step leads to, plus
	// start steps, minus what already ran. Edge conditions are not
	// re-evaluated against the saved state here; the visited-at-dequeue
	// guard drops entries the original run never reached only if their
	// predecessors re-route, which cannot happen for completed steps.
	var frontier []string
	seen := make(map[string]bool)
	enqueue := func(id string) {
		if !visited[id] && !seen[id] {
			seen[id] = true
			frontier = append(frontier, id)
		}
	}
	for _, id := range g.startSteps() {
		enqueue(id)
	}
	for _, ex := range trace {
		if ex.Status != checkpoint.StepCompleted {
			continue
		}
		for _, succ := range g.successors(ex.StepID) {
			enqueue(succ)
		}
	}

	if err := e.store.Update(ctx, checkpointID, rec.State, checkpoint.StatusActive, rec.CurrentStepID, rec.StepCount); err != nil {
		return nil, &InfraError{Op: "update", Cause: err}
	}

	e.emit(emit.Event{RunID: checkpointID, Msg: "run_start", Meta: map[string]interface{}{
		"graph_id": g.ID,
		"graph":    g.Name,
		"resumed":  true,
	}})
	e.opts.Metrics.RunStarted()

	state := State(rec.State)
	if state == nil {
		state = State{}
	}

	return e.runLoop(ctx, g, checkpointID, state, visited, frontier, rec.StepCount)
}

// validate checks engine and graph configuration before any persistence.
func (e *Engine) validate(g *GraphDefinition) error {
	if e.store == nil {
		return &ConfigError{Message: "checkpoint store is required", Code: "MISSING_STORE"}
	}
	if g == nil {
		return &ConfigError{Message: "graph is required", Code: "MISSING_GRAPH"}
	}
	return g.Validate()
}

// runLoop is the shared execution loop behind Execute and Resume.
//
// Invariants it maintains:
//   - A step is marked visited when dequeued, before executing, so fan-in
//     duplicates in the frontier are dropped and every step runs at most
//     once per run.
//   - The step's execution record is completed before its successors are
//     enqueued, so the trace is never behind the frontier.
//   - The checkpoint row is updated only after the records it summarizes
//     exist, so the checkpoint is never ahead of the trace.
//   - Cancellation is honored only at the dequeue boundary; a step that
//     has started always finishes and is recorded.
func (e *Engine) runLoop(ctx context.Context, g *GraphDefinition, runID string, state State, visited map[string]bool, frontier []string, priorSteps int) (*ExecutionResult, error) {
	started := time.Now()
	maxSteps := e.opts.maxSteps()
	interval := e.opts.checkpointInterval()

	result := &ExecutionResult{
		CheckpointID: runID,
		Status:       RunCompleted,
	}

	finish := func(status RunStatus, currentStep string, infraErr error) (*ExecutionResult, error) {
		result.Status = status
		result.FinalState = state
		result.DurationMs = time.Since(started).Milliseconds()

		cpStatus := checkpoint.StatusCompleted
		switch status {
		case RunFailed:
			cpStatus = checkpoint.StatusFailed
		case RunPaused:
			cpStatus = checkpoint.StatusPaused
		}

		if infraErr == nil {
			// The terminal update must still happen when ctx was
			// canceled, or a paused run would never persist.
			if err := e.store.Update(context.WithoutCancel(ctx), runID, state, cpStatus, currentStep, priorSteps+result.StepsExecuted); err != nil {
				infraErr = &InfraError{Op: "update", Cause: err}
			}
		}

		e.emit(emit.Event{RunID: runID, Step: result.StepsExecuted, Msg: "run_end", Meta: map[string]interface{}{
			"status":      string(status),
			"duration_ms": result.DurationMs,
		}})
		e.opts.Metrics.RunFinished(string(status))

		return result, infraErr
	}

	currentStep := ""
	for len(frontier) > 0 {
		if maxSteps > 0 && result.StepsExecuted >= maxSteps {
			result.MaxStepsReached = true
			e.emit(emit.Event{RunID: runID, Step: result.StepsExecuted, Msg: "run_truncated", Meta: map[string]interface{}{
				"max_steps": maxSteps,
				"pending":   len(frontier),
			}})
			break
		}

		select {
		case <-ctx.Done():
			return finish(RunPaused, currentStep, nil)
		default:
		}

		stepID := frontier[0]
		frontier = frontier[1:]

		// Visited-at-dequeue: duplicates from fan-in are dropped here,
		// never executed twice.
		if visited[stepID] {
			continue
		}
		visited[stepID] = true

		sd, ok := g.step(stepID)
		if !ok {
			// Validate catches dangling edges up front; reaching this
			// means the definition changed underneath us.
			return finish(RunFailed, currentStep, nil)
		}

		currentStep = stepID
		result.StepsExecuted++
		stepNum := result.StepsExecuted

		input, err := state.Snapshot()
		if err != nil {
			return finish(RunFailed, currentStep, &InfraError{Op: "snapshot", Cause: err})
		}

		e.emit(emit.Event{RunID: runID, Step: stepNum, StepID: stepID, Msg: "step_start", Meta: map[string]interface{}{
			"kind": string(sd.Kind),
		}})

		execRec, err := e.store.RecordStepStart(ctx, runID, stepID, string(sd.Kind), input)
		if err != nil {
			return finish(RunFailed, currentStep, &InfraError{Op: "recordStepStart", Cause: err})
		}

		stepCtx := withStepID(withRunID(ctx, runID), stepID)
		execStart := time.Now()
		delta, stepErr := sd.Step.Execute(stepCtx, state)
		latency := time.Since(execStart)

		if stepErr != nil {
			failed, endErr := e.store.RecordStepEnd(ctx, execRec.ID, checkpoint.StepFailed, nil, stepErr.Error())
			if endErr != nil {
				return finish(RunFailed, currentStep, &InfraError{Op: "recordStepEnd", Cause: endErr})
			}
			result.NodeExecutions = append(result.NodeExecutions, *failed)

			e.emit(emit.Event{RunID: runID, Step: stepNum, StepID: stepID, Msg: "step_error", Meta: map[string]interface{}{
				"kind":        string(sd.Kind),
				"error":       stepErr.Error(),
				"duration_ms": failed.DurationMs,
			}})
			e.opts.Metrics.StepExecuted(string(sd.Kind), "failed", latency)

			result.Err = &StepError{StepID: stepID, Message: stepErr.Error(), Cause: stepErr}
			return finish(RunFailed, currentStep, nil)
		}

		output, err := delta.Snapshot()
		if err != nil {
			return finish(RunFailed, currentStep, &InfraError{Op: "snapshot", Cause: err})
		}

		state = state.Merge(delta)

		completed, err := e.store.RecordStepEnd(ctx, execRec.ID, checkpoint.StepCompleted, output, "")
		if err != nil {
			return finish(RunFailed, currentStep, &InfraError{Op: "recordStepEnd", Cause: err})
		}
		result.NodeExecutions = append(result.NodeExecutions, *completed)

		e.emit(emit.Event{RunID: runID, Step: stepNum, StepID: stepID, Msg: "step_end", Meta: map[string]interface{}{
			"kind":        string(sd.Kind),
			"duration_ms": completed.DurationMs,
		}})
		e.opts.Metrics.StepExecuted(string(sd.Kind), "completed", latency)

		// Edges are evaluated against the merged state the step produced.
		// Enqueue happens only after the record above is persisted.
		for _, edge := range g.outgoing(stepID) {
			if edge.When == nil || edge.When(state) {
				frontier = append(frontier, edge.Target)
			}
		}

		if stepNum%interval == 0 {
			if err := e.store.Update(ctx, runID, state, checkpoint.StatusActive, stepID, priorSteps+stepNum); err != nil {
				return finish(RunFailed, currentStep, &InfraError{Op: "update", Cause: err})
			}
			e.emit(emit.Event{RunID: runID, Step: stepNum, StepID: stepID, Msg: "checkpoint_saved", Meta: map[string]interface{}{
				"checkpoint_id": runID,
			}})
		}
	}

	return finish(RunCompleted, currentStep, nil)
}

// ListNodeExecutions returns the persisted trace for a run, ordered by
// start time. Thin passthrough so callers don't need store access.
func (e *Engine) ListNodeExecutions(ctx context.Context, checkpointID string) ([]checkpoint.NodeExecution, error) {
	return e.store.ListNodeExecutions(ctx, checkpointID)
}

func (e *Engine) emit(ev emit.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

// Package emit provides pluggable observability events for workflow runs.
package emit

// Event represents an observability event emitted during workflow execution.
//
// The engine emits events at every lifecycle boundary:
//   - run_start / run_end: a workflow run began or reached a terminal state
//   - step_start / step_end / step_error: per-step execution
//   - checkpoint_saved: a checkpoint row was written
//   - run_truncated: the MaxSteps limit stopped the run
//
// Events are delivered to an Emitter which can log them, turn them into
// OpenTelemetry spans, or discard them.
type Event struct {
	// RunID identifies the workflow execution that emitted this event.
	RunID string

	// Step is the sequential step number in the run (1-indexed).
	// Zero for run-level events (run_start, run_end).
	Step int

	// StepID identifies which graph step emitted this event.
	// Empty string for run-level events.
	StepID string

	// Msg is the event name, e.g. "step_start".
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": Execution duration in milliseconds
	//   - "error": Error details
	//   - "status": Terminal run status on run_end
	//   - "checkpoint_id": Checkpoint identifier
	Meta map[string]interface{}
}

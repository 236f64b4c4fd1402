package graph

import "github.com/dashworks/graphflow/graph/checkpoint"

// RunStatus is the terminal status of a workflow execution.
type RunStatus string

const (
	// RunCompleted means every reachable step executed (or the MaxSteps
	// limit stopped the run cleanly; see ExecutionResult.MaxStepsReached).
	RunCompleted RunStatus = "completed"
	// RunFailed means a step returned an error and the run halted.
	RunFailed RunStatus = "failed"
	// RunPaused means the run stopped at a resumable boundary, either by
	// context cancellation or by a human-input suspension.
	RunPaused RunStatus = "paused"
)

// ExecutionResult is the outcome of a workflow run.
//
// The result always carries the full trace up to the point the run stopped,
// including the failed step's record when Status is RunFailed.
type ExecutionResult struct {
	// CheckpointID identifies the persisted run for later inspection or
	// resumption.
	CheckpointID string

	// Status is the terminal run status.
	Status RunStatus

	// FinalState is the merged state when the run stopped.
	FinalState State

	// NodeExecutions is the per-step trace in execution order.
	NodeExecutions []checkpoint.NodeExecution

	// StepsExecuted counts the steps this call executed. On resumed runs
	// it excludes steps from earlier sessions.
	StepsExecuted int

	// DurationMs is the wall-clock duration of this call.
	DurationMs int64

	// MaxStepsReached is true when the run stopped because the MaxSteps
	// limit was hit with work still queued. The run still counts as
	// Completed; callers that care must check this flag.
	MaxStepsReached bool

	// Err holds the step failure when Status is RunFailed, nil otherwise.
	Err error
}

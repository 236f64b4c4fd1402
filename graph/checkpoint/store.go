// Package checkpoint provides durable persistence for workflow runs.
//
// A checkpoint is the saved snapshot of a run: its merged state, status,
// progress counters, and an append-only trace of node executions. The
// engine writes a checkpoint row when a run starts, updates it as steps
// complete, and appends one node execution record per step attempt.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested checkpoint or node execution
// record does not exist.
var ErrNotFound = errors.New("not found")

// Status is the lifecycle status of a checkpointed run.
type Status string

const (
	// StatusActive marks a run that is currently executing.
	StatusActive Status = "active"
	// StatusCompleted marks a run that finished normally.
	StatusCompleted Status = "completed"
	// StatusFailed marks a run halted by a step failure.
	StatusFailed Status = "failed"
	// StatusPaused marks a run stopped at a resumable boundary.
	StatusPaused Status = "paused"
)

// StepStatus is the status of a single node execution record.
type StepStatus string

const (
	// StepRunning is written before the step executes. A record stuck in
	// this status after a crash shows exactly which step was in flight.
	StepRunning StepStatus = "running"
	// StepCompleted marks a step whose Execute returned without error.
	StepCompleted StepStatus = "completed"
	// StepFailed marks a step whose Execute returned an error.
	StepFailed StepStatus = "failed"
)

// Record is a persisted run snapshot.
type Record struct {
	// ID uniquely identifies the checkpoint. Generated on Create.
	ID string

	// GraphID is the definition this run executes.
	GraphID string

	// Name is the human-readable graph name at creation time, kept on the
	// record so traces stay legible without the definition at hand.
	Name string

	// Owner optionally identifies who started the run.
	Owner string

	// Status is the current lifecycle status.
	Status Status

	// State is the merged run state as of the last update.
	State map[string]any

	// CurrentStepID is the id of the most recently executed step.
	CurrentStepID string

	// StepCount is the number of steps executed so far.
	StepCount int

	CreatedAt time.Time
	UpdatedAt time.Time

	// ExpiresAt is the retention deadline, nil for no expiry. Stores do
	// not garbage-collect expired rows; cleanup is an external batch job.
	ExpiresAt *time.Time
}

// NodeExecution is one append-only trace entry: a single attempt to run a
// single step within a checkpointed run.
type NodeExecution struct {
	// ID uniquely identifies the record. Generated on RecordStepStart.
	ID string

	// CheckpointID is the run this execution belongs to.
	CheckpointID string

	// StepID is the graph step that was executed.
	StepID string

	// Kind is the step kind, recorded for trace readability.
	Kind string

	// Status is running until RecordStepEnd flips it.
	Status StepStatus

	// Input is the state snapshot the step received.
	Input map[string]any

	// Output is the delta the step returned, nil while running or on
	// failure.
	Output map[string]any

	// Error is the failure message for failed steps, empty otherwise.
	Error string

	StartedAt   time.Time
	CompletedAt *time.Time

	// DurationMs is computed by the store from the persisted StartedAt
	// when the step ends, so the figure survives process restarts.
	DurationMs int64
}

// CreateOptions configures checkpoint creation.
type CreateOptions struct {
	// Owner optionally identifies who started the run.
	Owner string

	// ExpiresInDays sets the retention deadline relative to creation.
	// Zero means no expiry.
	ExpiresInDays int
}

// Store provides persistence for run checkpoints and their execution traces.
//
// Implementations must be safe for concurrent use: many runs write through
// one store. Within a single run the engine calls serially, so stores need
// no per-run ordering logic beyond that.
type Store interface {
	// Create persists a new checkpoint for a starting run and returns the
	// stored record with its generated id and timestamps. name is the
	// graph's display name, recorded alongside the id.
	Create(ctx context.Context, graphID, name string, state map[string]any, opts CreateOptions) (*Record, error)

	// Update overwrites the checkpoint's mutable fields and bumps
	// UpdatedAt. Returns ErrNotFound if the id is unknown.
	Update(ctx context.Context, id string, state map[string]any, status Status, currentStepID string, stepCount int) error

	// Load retrieves a checkpoint by id. Returns ErrNotFound if the id
	// is unknown.
	Load(ctx context.Context, id string) (*Record, error)

	// RecordStepStart appends a node execution record in Running status
	// with the step's input snapshot, and returns it with its generated
	// id and start time.
	RecordStepStart(ctx context.Context, checkpointID, stepID, kind string, input map[string]any) (*NodeExecution, error)

	// RecordStepEnd completes a node execution record: sets its terminal
	// status, output or error, completion time, and a DurationMs derived
	// from the stored StartedAt. Returns ErrNotFound for unknown ids.
	RecordStepEnd(ctx context.Context, executionID string, status StepStatus, output map[string]any, errMsg string) (*NodeExecution, error)

	// ListNodeExecutions returns the run's trace ordered by start time.
	ListNodeExecutions(ctx context.Context, checkpointID string) ([]NodeExecution, error)

	// Close releases store resources. Subsequent calls fail.
	Close() error
}

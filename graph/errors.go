package graph

import "errors"

// ErrNoStartStep indicates a graph with no step that lacks incoming edges.
// Such a graph has no entry point and can never begin execution.
var ErrNoStartStep = errors.New("graph has no start step (every step has an incoming edge)")

// ErrStepNotFound indicates an edge references a step id that was never
// added to the graph. Detected when the engine resolves the target.
var ErrStepNotFound = errors.New("step not found")

// ErrGraphSealed indicates an attempt to modify a GraphDefinition after
// execution started. Definitions are immutable once a run begins.
var ErrGraphSealed = errors.New("graph definition is sealed: execution already started")

// ConfigError reports an invalid graph or engine configuration.
//
// Configuration errors are always fatal and are surfaced before any step
// runs and before any checkpoint row is created. They are the only error
// class that escapes Execute as a plain error with no partial result.
type ConfigError struct {
	Message string
	Code    string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error { return e.Cause }

// StepError reports a failure inside a step's Execute.
//
// The engine converts step errors into a terminal Failed run rather than
// returning them from Execute: callers always get the full result object
// with the trace up to the failure point.
type StepError struct {
	StepID  string
	Message string
	Cause   error
}

func (e *StepError) Error() string {
	if e.StepID != "" {
		return "step " + e.StepID + ": " + e.Message
	}
	return e.Message
}

func (e *StepError) Unwrap() error { return e.Cause }

// InfraError reports a checkpoint-store failure.
//
// Infrastructure errors are kept distinct from StepError so callers can
// retry the whole run instead of treating the failure as workflow logic.
// Execute returns an InfraError alongside the partial result.
type InfraError struct {
	Op    string // store operation that failed, e.g. "update", "recordStepStart"
	Cause error
}

func (e *InfraError) Error() string {
	return "checkpoint store " + e.Op + " failed: " + e.Cause.Error()
}

func (e *InfraError) Unwrap() error { return e.Cause }

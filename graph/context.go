package graph

import "context"

type contextKey int

const (
	runIDContextKey contextKey = iota
	stepIDContextKey
)

func withRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDContextKey, runID)
}

func withStepID(ctx context.Context, stepID string) context.Context {
	return context.WithValue(ctx, stepIDContextKey, stepID)
}

// RunIDFromContext returns the checkpoint id of the executing run, or ""
// outside a run. Steps use it to tag external artifacts, approval requests
// for instance, with their run.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDContextKey).(string)
	return id
}

// StepIDFromContext returns the id of the executing step, or "" outside a
// run.
func StepIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(stepIDContextKey).(string)
	return id
}

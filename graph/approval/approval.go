// Package approval defines the human-input collaborator: out-of-band
// requests a workflow raises and a person (or an operator API) resolves.
package approval

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested approval id does not exist.
var ErrNotFound = errors.New("approval request not found")

// ErrAwaitTimeout is returned by Await when the request is not resolved
// within the wait window.
var ErrAwaitTimeout = errors.New("approval wait timed out")

// Status is the lifecycle status of an approval request.
type Status string

const (
	// StatusPending means nobody has resolved the request yet.
	StatusPending Status = "pending"
	// StatusApproved means the request was resolved positively.
	StatusApproved Status = "approved"
	// StatusRejected means the request was resolved negatively.
	StatusRejected Status = "rejected"
	// StatusExpired means nobody answered before the wait window closed.
	StatusExpired Status = "expired"
)

// Request is one pending or resolved human-input request.
type Request struct {
	ID string

	// CheckpointID and StepID tie the request back to the run and step
	// that raised it.
	CheckpointID string
	StepID       string

	// Prompt is the question shown to the human.
	Prompt string

	Status Status

	// Value is the free-form answer supplied on resolution.
	Value string

	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Resolved reports whether the request has left the pending state.
func (r *Request) Resolved() bool {
	return r.Status != StatusPending
}

// Store is the human-input collaborator contract.
type Store interface {
	// Create registers a new pending request and returns it with its
	// generated id.
	Create(ctx context.Context, checkpointID, stepID, prompt string) (*Request, error)

	// Get returns the request by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Request, error)

	// Resolve answers a pending request. Resolving a request twice, or
	// an unknown id, is an error.
	Resolve(ctx context.Context, id string, approved bool, value string) error

	// Expire marks a pending request as timed out so it no longer shows
	// up as awaiting an answer. Expiring a resolved request, or an
	// unknown id, is an error.
	Expire(ctx context.Context, id string) error

	// Await blocks until the request is resolved, the wait window
	// elapses (ErrAwaitTimeout), or ctx is cancelled. The wait must not
	// spin; implementations use channel notification or coarse polling.
	Await(ctx context.Context, id string, wait time.Duration) (*Request, error)
}

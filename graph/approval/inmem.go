package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMem is a thread-safe in-process approval Store.
//
// Each request carries a channel closed on resolution, so Await wakes
// immediately instead of polling.
type InMem struct {
	mu       sync.RWMutex
	requests map[string]*Request
	done     map[string]chan struct{}
}

// NewInMem creates an empty in-process approval store.
func NewInMem() *InMem {
	return &InMem{
		requests: make(map[string]*Request),
		done:     make(map[string]chan struct{}),
	}
}

// Create registers a new pending request.
func (m *InMem) Create(_ context.Context, checkpointID, stepID, prompt string) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req := &Request{
		ID:           uuid.NewString(),
		CheckpointID: checkpointID,
		StepID:       stepID,
		Prompt:       prompt,
		Status:       StatusPending,
		CreatedAt:    time.Now(),
	}

	m.requests[req.ID] = req
	m.done[req.ID] = make(chan struct{})

	cp := *req
	return &cp, nil
}

// Get returns the request by id.
func (m *InMem) Get(_ context.Context, id string) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, exists := m.requests[id]
	if !exists {
		return nil, ErrNotFound
	}

	cp := *req
	return &cp, nil
}

// Resolve answers a pending request and wakes any waiters.
func (m *InMem) Resolve(_ context.Context, id string, approved bool, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, exists := m.requests[id]
	if !exists {
		return ErrNotFound
	}
	if req.Resolved() {
		return fmt.Errorf("approval %s already resolved (%s)", id, req.Status)
	}

	now := time.Now()
	if approved {
		req.Status = StatusApproved
	} else {
		req.Status = StatusRejected
	}
	req.Value = value
	req.ResolvedAt = &now

	close(m.done[id])
	return nil
}

// Expire marks a pending request as timed out and wakes any waiters.
func (m *InMem) Expire(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, exists := m.requests[id]
	if !exists {
		return ErrNotFound
	}
	if req.Resolved() {
		return fmt.Errorf("approval %s already resolved (%s)", id, req.Status)
	}

	now := time.Now()
	req.Status = StatusExpired
	req.ResolvedAt = &now

	close(m.done[id])
	return nil
}

// Pending returns the unresolved requests, for operator surfaces that
// list what needs an answer.
func (m *InMem) Pending() []*Request {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Request
	for _, req := range m.requests {
		if !req.Resolved() {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out
}

// Await blocks until the request is resolved, the wait elapses, or ctx is
// cancelled.
func (m *InMem) Await(ctx context.Context, id string, wait time.Duration) (*Request, error) {
	m.mu.RLock()
	ch, exists := m.done[id]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ch:
		return m.Get(ctx, id)
	case <-timer.C:
		return nil, ErrAwaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory implementation of Store.
//
// Designed for:
//   - Testing and development
//   - Single-process workflows where persistence isn't required
//
// MemStore is thread-safe and supports concurrent access. Data is lost when
// the process terminates; for durable runs use SQLiteStore, MySQLStore, or
// PostgresStore.
type MemStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*Record
	executions  map[string]*NodeExecution
	// byCheckpoint preserves append order per run.
	byCheckpoint map[string][]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		checkpoints:  make(map[string]*Record),
		executions:   make(map[string]*NodeExecution),
		byCheckpoint: make(map[string][]string),
	}
}

// Create persists a new checkpoint record.
func (m *MemStore) Create(_ context.Context, graphID, name string, state map[string]any, opts CreateOptions) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	rec := &Record{
		ID:        uuid.NewString(),
		GraphID:   graphID,
		Name:      name,
		Owner:     opts.Owner,
		Status:    StatusActive,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.ExpiresInDays > 0 {
		exp := now.AddDate(0, 0, opts.ExpiresInDays)
		rec.ExpiresAt = &exp
	}

	m.checkpoints[rec.ID] = rec

	cp := *rec
	return &cp, nil
}

// Update overwrites the checkpoint's mutable fields.
func (m *MemStore) Update(_ context.Context, id string, state map[string]any, status Status, currentStepID string, stepCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.checkpoints[id]
	if !exists {
		return ErrNotFound
	}

	rec.State = state
	rec.Status = status
	rec.CurrentStepID = currentStepID
	rec.StepCount = stepCount
	rec.UpdatedAt = time.Now()
	return nil
}

// Load retrieves a checkpoint by id.
func (m *MemStore) Load(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.checkpoints[id]
	if !exists {
		return nil, ErrNotFound
	}

	cp := *rec
	return &cp, nil
}

// RecordStepStart appends a Running node execution record.
func (m *MemStore) RecordStepStart(_ context.Context, checkpointID, stepID, kind string, input map[string]any) (*NodeExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exec := &NodeExecution{
		ID:           uuid.NewString(),
		CheckpointID: checkpointID,
		StepID:       stepID,
		Kind:         kind,
		Status:       StepRunning,
		Input:        input,
		StartedAt:    time.Now(),
	}

	m.executions[exec.ID] = exec
	m.byCheckpoint[checkpointID] = append(m.byCheckpoint[checkpointID], exec.ID)

	cp := *exec
	return &cp, nil
}

// RecordStepEnd completes a node execution record. DurationMs is computed
// from the StartedAt persisted by RecordStepStart.
func (m *MemStore) RecordStepEnd(_ context.Context, executionID string, status StepStatus, output map[string]any, errMsg string) (*NodeExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exec, exists := m.executions[executionID]
	if !exists {
		return nil, ErrNotFound
	}

	now := time.Now()
	exec.Status = status
	exec.Output = output
	exec.Error = errMsg
	exec.CompletedAt = &now
	exec.DurationMs = now.Sub(exec.StartedAt).Milliseconds()

	cp := *exec
	return &cp, nil
}

// ListNodeExecutions returns the run's trace ordered by start time.
func (m *MemStore) ListNodeExecutions(_ context.Context, checkpointID string) ([]NodeExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byCheckpoint[checkpointID]
	out := make([]NodeExecution, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.executions[id])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error { return nil }

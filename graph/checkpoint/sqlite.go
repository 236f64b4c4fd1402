package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It stores checkpoints and execution traces in a single-file database.
// Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments requiring durable runs
//   - Prototyping before migrating to MySQL or Postgres
//
// SQLiteStore uses WAL mode so concurrent runs can read while one writes.
//
// Schema:
//   - checkpoints: one row per run snapshot
//   - node_executions: append-only per-step trace
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore creates a SQLite-backed store at the given path.
//
// The path can be a file ("./runs.db"), an absolute path, or ":memory:"
// for an in-memory database that vanishes on Close. The store creates the
// database file and schema on first use and enables WAL mode.
//
// Example:
//
//	store, err := checkpoint.NewSQLiteStore("./runs.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	store := &SQLiteStore{
		db:   db,
		path: path,
	}

	if err := store.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	checkpointsTable := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT NOT NULL PRIMARY KEY,
			graph_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			owner TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			state TEXT NOT NULL,
			current_step_id TEXT NOT NULL DEFAULT '',
			step_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			expires_at TEXT
		)
	`
	if _, err := s.db.ExecContext(ctx, checkpointsTable); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_checkpoints_graph_id ON checkpoints(graph_id)"); err != nil {
		return fmt.Errorf("failed to create idx_checkpoints_graph_id: %w", err)
	}

	executionsTable := `
		CREATE TABLE IF NOT EXISTS node_executions (
			id TEXT NOT NULL PRIMARY KEY,
			checkpoint_id TEXT NOT NULL REFERENCES checkpoints(id),
			step_id TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			input TEXT NOT NULL,
			output TEXT,
			error TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			completed_at TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0
		)
	`
	if _, err := s.db.ExecContext(ctx, executionsTable); err != nil {
		return fmt.Errorf("failed to create node_executions table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_executions_checkpoint ON node_executions(checkpoint_id, started_at)"); err != nil {
		return fmt.Errorf("failed to create idx_executions_checkpoint: %w", err)
	}

	return nil
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// Create persists a new checkpoint row.
func (s *SQLiteStore) Create(ctx context.Context, graphID, name string, state map[string]any, opts CreateOptions) (*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

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

	var expires any
	if opts.ExpiresInDays > 0 {
		exp := now.AddDate(0, 0, opts.ExpiresInDays)
		rec.ExpiresAt = &exp
		expires = exp.Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, graph_id, name, owner, status, state, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.GraphID, rec.Name, rec.Owner, string(rec.Status), string(stateJSON),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), expires,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert checkpoint: %w", err)
	}

	return rec, nil
}

// Update overwrites the checkpoint's mutable fields.
func (s *SQLiteStore) Update(ctx context.Context, id string, state map[string]any, status Status, currentStepID string, stepCount int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE checkpoints
		SET state = ?, status = ?, current_step_id = ?, step_count = ?, updated_at = ?
		WHERE id = ?`,
		string(stateJSON), string(status), currentStepID, stepCount,
		time.Now().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update checkpoint: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Load retrieves a checkpoint by id.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, graph_id, name, owner, status, state, current_step_id, step_count, created_at, updated_at, expires_at
		FROM checkpoints WHERE id = ?`, id)

	var rec Record
	var status, stateJSON, createdAt, updatedAt string
	var expiresAt sql.NullString

	err := row.Scan(&rec.ID, &rec.GraphID, &rec.Name, &rec.Owner, &status, &stateJSON,
		&rec.CurrentStepID, &rec.StepCount, &createdAt, &updatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	rec.Status = Status(status)
	if err := json.Unmarshal([]byte(stateJSON), &rec.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if expiresAt.Valid {
		exp, err := time.Parse(time.RFC3339Nano, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse expires_at: %w", err)
		}
		rec.ExpiresAt = &exp
	}

	return &rec, nil
}

// RecordStepStart appends a Running node execution row.
func (s *SQLiteStore) RecordStepStart(ctx context.Context, checkpointID, stepID, kind string, input map[string]any) (*NodeExecution, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}

	exec := &NodeExecution{
		ID:           uuid.NewString(),
		CheckpointID: checkpointID,
		StepID:       stepID,
		Kind:         kind,
		Status:       StepRunning,
		Input:        input,
		StartedAt:    time.Now(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO node_executions (id, checkpoint_id, step_id, kind, status, input, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.CheckpointID, exec.StepID, exec.Kind, string(exec.Status),
		string(inputJSON), exec.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert node execution: %w", err)
	}

	return exec, nil
}

// RecordStepEnd completes a node execution row. DurationMs is derived from
// the persisted started_at, not from caller-side bookkeeping.
func (s *SQLiteStore) RecordStepEnd(ctx context.Context, executionID string, status StepStatus, output map[string]any, errMsg string) (*NodeExecution, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT checkpoint_id, step_id, kind, input, started_at
		FROM node_executions WHERE id = ?`, executionID)

	exec := NodeExecution{ID: executionID, Status: status, Error: errMsg, Output: output}
	var inputJSON, startedAt string

	err := row.Scan(&exec.CheckpointID, &exec.StepID, &exec.Kind, &inputJSON, &startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load node execution: %w", err)
	}

	if err := json.Unmarshal([]byte(inputJSON), &exec.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}
	if exec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}

	var outputJSON any
	if output != nil {
		data, err := json.Marshal(output)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal output: %w", err)
		}
		outputJSON = string(data)
	}

	now := time.Now()
	exec.CompletedAt = &now
	exec.DurationMs = now.Sub(exec.StartedAt).Milliseconds()

	_, err = s.db.ExecContext(ctx, `
		UPDATE node_executions
		SET status = ?, output = ?, error = ?, completed_at = ?, duration_ms = ?
		WHERE id = ?`,
		string(status), outputJSON, errMsg, now.Format(time.RFC3339Nano),
		exec.DurationMs, executionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update node execution: %w", err)
	}

	return &exec, nil
}

// ListNodeExecutions returns the run's trace ordered by start time.
func (s *SQLiteStore) ListNodeExecutions(ctx context.Context, checkpointID string) ([]NodeExecution, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, checkpoint_id, step_id, kind, status, input, output, error, started_at, completed_at, duration_ms
		FROM node_executions
		WHERE checkpoint_id = ?
		ORDER BY started_at ASC`, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []NodeExecution
	for rows.Next() {
		var exec NodeExecution
		var status, inputJSON, startedAt string
		var outputJSON, completedAt sql.NullString

		if err := rows.Scan(&exec.ID, &exec.CheckpointID, &exec.StepID, &exec.Kind, &status,
			&inputJSON, &outputJSON, &exec.Error, &startedAt, &completedAt, &exec.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan node execution: %w", err)
		}

		exec.Status = StepStatus(status)
		if err := json.Unmarshal([]byte(inputJSON), &exec.Input); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input: %w", err)
		}
		if outputJSON.Valid {
			if err := json.Unmarshal([]byte(outputJSON.String), &exec.Output); err != nil {
				return nil, fmt.Errorf("failed to unmarshal output: %w", err)
			}
		}
		if exec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
		if completedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, completedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse completed_at: %w", err)
			}
			exec.CompletedAt = &t
		}

		out = append(out, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate node executions: %w", err)
	}

	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store already closed")
	}
	s.closed = true

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

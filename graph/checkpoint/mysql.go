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
	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store.
//
// Designed for:
//   - Production deployments requiring durable runs
//   - Distributed systems with multiple workers sharing one database
//   - Audit trails and compliance requirements
//
// MySQLStore uses connection pooling and JSON columns for state payloads.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore creates a MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// The DSN must include parseTime=true so timestamp columns scan into
// time.Time values:
//
//	user:pass@tcp(localhost:3306)/graphflow?parseTime=true
//
// Never hardcode credentials; read the DSN from the environment:
//
//	store, err := checkpoint.NewMySQLStore(os.Getenv("MYSQL_DSN"))
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store := &MySQLStore{db: db}

	if err := store.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	checkpointsTable := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			graph_id VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			owner VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			state JSON NOT NULL,
			current_step_id VARCHAR(255) NOT NULL DEFAULT '',
			step_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP(6) NOT NULL,
			updated_at TIMESTAMP(6) NOT NULL,
			expires_at TIMESTAMP(6) NULL,
			INDEX idx_checkpoints_graph_id (graph_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, checkpointsTable); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}

	executionsTable := `
		CREATE TABLE IF NOT EXISTS node_executions (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			checkpoint_id VARCHAR(36) NOT NULL,
			step_id VARCHAR(255) NOT NULL,
			kind VARCHAR(64) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			input JSON NOT NULL,
			output JSON NULL,
			error TEXT NOT NULL,
			started_at TIMESTAMP(6) NOT NULL,
			completed_at TIMESTAMP(6) NULL,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			INDEX idx_executions_checkpoint (checkpoint_id, started_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, executionsTable); err != nil {
		return fmt.Errorf("failed to create node_executions table: %w", err)
	}

	return nil
}

func (m *MySQLStore) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// Create persists a new checkpoint row.
func (m *MySQLStore) Create(ctx context.Context, graphID, name string, state map[string]any, opts CreateOptions) (*Record, error) {
	if err := m.checkOpen(); err != nil {
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
	if opts.ExpiresInDays > 0 {
		exp := now.AddDate(0, 0, opts.ExpiresInDays)
		rec.ExpiresAt = &exp
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO checkpoints (id, graph_id, name, owner, status, state, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.GraphID, rec.Name, rec.Owner, string(rec.Status), string(stateJSON),
		now, now, rec.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert checkpoint: %w", err)
	}

	return rec, nil
}

// Update overwrites the checkpoint's mutable fields.
func (m *MySQLStore) Update(ctx context.Context, id string, state map[string]any, status Status, currentStepID string, stepCount int) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	res, err := m.db.ExecContext(ctx, `
		UPDATE checkpoints
		SET state = ?, status = ?, current_step_id = ?, step_count = ?, updated_at = ?
		WHERE id = ?`,
		string(stateJSON), string(status), currentStepID, stepCount, time.Now(), id,
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
func (m *MySQLStore) Load(ctx context.Context, id string) (*Record, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	row := m.db.QueryRowContext(ctx, `
		SELECT id, graph_id, name, owner, status, state, current_step_id, step_count, created_at, updated_at, expires_at
		FROM checkpoints WHERE id = ?`, id)

	var rec Record
	var status, stateJSON string
	var expiresAt sql.NullTime

	err := row.Scan(&rec.ID, &rec.GraphID, &rec.Name, &rec.Owner, &status, &stateJSON,
		&rec.CurrentStepID, &rec.StepCount, &rec.CreatedAt, &rec.UpdatedAt, &expiresAt)
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
	if expiresAt.Valid {
		rec.ExpiresAt = &expiresAt.Time
	}

	return &rec, nil
}

// RecordStepStart appends a Running node execution row.
func (m *MySQLStore) RecordStepStart(ctx context.Context, checkpointID, stepID, kind string, input map[string]any) (*NodeExecution, error) {
	if err := m.checkOpen(); err != nil {
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

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO node_executions (id, checkpoint_id, step_id, kind, status, input, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?)`,
		exec.ID, exec.CheckpointID, exec.StepID, exec.Kind, string(exec.Status),
		string(inputJSON), exec.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert node execution: %w", err)
	}

	return exec, nil
}

// RecordStepEnd completes a node execution row. DurationMs is derived from
// the persisted started_at.
func (m *MySQLStore) RecordStepEnd(ctx context.Context, executionID string, status StepStatus, output map[string]any, errMsg string) (*NodeExecution, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	row := m.db.QueryRowContext(ctx, `
		SELECT checkpoint_id, step_id, kind, input, started_at
		FROM node_executions WHERE id = ?`, executionID)

	exec := NodeExecution{ID: executionID, Status: status, Error: errMsg, Output: output}
	var inputJSON string

	err := row.Scan(&exec.CheckpointID, &exec.StepID, &exec.Kind, &inputJSON, &exec.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load node execution: %w", err)
	}

	if err := json.Unmarshal([]byte(inputJSON), &exec.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
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

	_, err = m.db.ExecContext(ctx, `
		UPDATE node_executions
		SET status = ?, output = ?, error = ?, completed_at = ?, duration_ms = ?
		WHERE id = ?`,
		string(status), outputJSON, errMsg, now, exec.DurationMs, executionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update node execution: %w", err)
	}

	return &exec, nil
}

// ListNodeExecutions returns the run's trace ordered by start time.
func (m *MySQLStore) ListNodeExecutions(ctx context.Context, checkpointID string) ([]NodeExecution, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
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
		var status, inputJSON string
		var outputJSON sql.NullString
		var completedAt sql.NullTime

		if err := rows.Scan(&exec.ID, &exec.CheckpointID, &exec.StepID, &exec.Kind, &status,
			&inputJSON, &outputJSON, &exec.Error, &exec.StartedAt, &completedAt, &exec.DurationMs); err != nil {
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
		if completedAt.Valid {
			exec.CompletedAt = &completedAt.Time
		}

		out = append(out, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate node executions: %w", err)
	}

	return out, nil
}

// Close closes the database connection.
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("store already closed")
	}
	m.closed = true

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

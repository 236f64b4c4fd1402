package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"
)

// testStore exercises the Store contract against any implementation.
// State values stick to JSON-stable types (strings, bools, float64) so
// the same assertions hold for SQL-backed stores.
func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("create and load", func(t *testing.T) {
		rec, err := store.Create(ctx, "graph-1", "research pipeline", map[string]any{"topic": "solar"}, CreateOptions{Owner: "alice"})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if rec.ID == "" {
			t.Fatal("expected generated id")
		}
		if rec.Status != StatusActive {
			t.Errorf("new checkpoint status = %s", rec.Status)
		}

		loaded, err := store.Load(ctx, rec.ID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.GraphID != "graph-1" || loaded.Owner != "alice" {
			t.Errorf("loaded = %+v", loaded)
		}
		if loaded.Name != "research pipeline" {
			t.Errorf("name not round-tripped: %q", loaded.Name)
		}
		if loaded.State["topic"] != "solar" {
			t.Errorf("state not round-tripped: %v", loaded.State)
		}
		if loaded.ExpiresAt != nil {
			t.Error("expected no expiry by default")
		}
	})

	t.Run("expiry window", func(t *testing.T) {
		rec, err := store.Create(ctx, "graph-1", "", nil, CreateOptions{ExpiresInDays: 7})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		loaded, err := store.Load(ctx, rec.ID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.ExpiresAt == nil {
			t.Fatal("expected expiry to be set")
		}
		want := time.Now().AddDate(0, 0, 7)
		if diff := loaded.ExpiresAt.Sub(want); diff < -time.Minute || diff > time.Minute {
			t.Errorf("expiry off by %s", diff)
		}
	})

	t.Run("load unknown id", func(t *testing.T) {
		if _, err := store.Load(ctx, "no-such-id"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		rec, err := store.Create(ctx, "graph-1", "", map[string]any{"n": "0"}, CreateOptions{})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		err = store.Update(ctx, rec.ID, map[string]any{"n": "2"}, StatusCompleted, "last-step", 2)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		loaded, err := store.Load(ctx, rec.ID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.Status != StatusCompleted {
			t.Errorf("status = %s", loaded.Status)
		}
		if loaded.CurrentStepID != "last-step" || loaded.StepCount != 2 {
			t.Errorf("progress = %s/%d", loaded.CurrentStepID, loaded.StepCount)
		}
		if loaded.State["n"] != "2" {
			t.Errorf("state not updated: %v", loaded.State)
		}
	})

	t.Run("update unknown id", func(t *testing.T) {
		err := store.Update(ctx, "no-such-id", nil, StatusCompleted, "", 0)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("step trace lifecycle", func(t *testing.T) {
		rec, err := store.Create(ctx, "graph-1", "", nil, CreateOptions{})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		started, err := store.RecordStepStart(ctx, rec.ID, "research", "model_call", map[string]any{"topic": "solar"})
		if err != nil {
			t.Fatalf("RecordStepStart failed: %v", err)
		}
		if started.Status != StepRunning {
			t.Errorf("started status = %s", started.Status)
		}
		if started.StartedAt.IsZero() {
			t.Error("expected StartedAt to be set")
		}

		ended, err := store.RecordStepEnd(ctx, started.ID, StepCompleted, map[string]any{"notes": "done"}, "")
		if err != nil {
			t.Fatalf("RecordStepEnd failed: %v", err)
		}
		if ended.Status != StepCompleted {
			t.Errorf("ended status = %s", ended.Status)
		}
		if ended.CompletedAt == nil {
			t.Fatal("expected CompletedAt to be set")
		}
		if ended.DurationMs < 0 {
			t.Errorf("negative duration %d", ended.DurationMs)
		}
		if !ended.CompletedAt.After(ended.StartedAt.Add(-time.Millisecond)) {
			t.Error("completion precedes start")
		}

		trace, err := store.ListNodeExecutions(ctx, rec.ID)
		if err != nil {
			t.Fatalf("ListNodeExecutions failed: %v", err)
		}
		if len(trace) != 1 {
			t.Fatalf("expected 1 record, got %d", len(trace))
		}
		if trace[0].Input["topic"] != "solar" || trace[0].Output["notes"] != "done" {
			t.Errorf("trace record = %+v", trace[0])
		}
	})

	t.Run("failed step records error text", func(t *testing.T) {
		rec, _ := store.Create(ctx, "graph-1", "", nil, CreateOptions{})
		started, _ := store.RecordStepStart(ctx, rec.ID, "bad", "tool_call", nil)

		ended, err := store.RecordStepEnd(ctx, started.ID, StepFailed, nil, "boom")
		if err != nil {
			t.Fatalf("RecordStepEnd failed: %v", err)
		}
		if ended.Status != StepFailed || ended.Error != "boom" {
			t.Errorf("ended = %+v", ended)
		}
	})

	t.Run("end unknown execution", func(t *testing.T) {
		_, err := store.RecordStepEnd(ctx, "no-such-exec", StepCompleted, nil, "")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("trace ordered by start time", func(t *testing.T) {
		rec, _ := store.Create(ctx, "graph-1", "", nil, CreateOptions{})

		for _, id := range []string{"first", "second", "third"} {
			started, err := store.RecordStepStart(ctx, rec.ID, id, "custom", nil)
			if err != nil {
				t.Fatalf("RecordStepStart failed: %v", err)
			}
			if _, err := store.RecordStepEnd(ctx, started.ID, StepCompleted, nil, ""); err != nil {
				t.Fatalf("RecordStepEnd failed: %v", err)
			}
			// RFC3339Nano ordering needs distinct timestamps.
			time.Sleep(2 * time.Millisecond)
		}

		trace, err := store.ListNodeExecutions(ctx, rec.ID)
		if err != nil {
			t.Fatalf("ListNodeExecutions failed: %v", err)
		}
		if len(trace) != 3 {
			t.Fatalf("expected 3 records, got %d", len(trace))
		}
		for i, want := range []string{"first", "second", "third"} {
			if trace[i].StepID != want {
				t.Errorf("trace[%d] = %s, want %s", i, trace[i].StepID, want)
			}
		}
	})

	t.Run("empty trace", func(t *testing.T) {
		rec, _ := store.Create(ctx, "graph-1", "", nil, CreateOptions{})
		trace, err := store.ListNodeExecutions(ctx, rec.ID)
		if err != nil {
			t.Fatalf("ListNodeExecutions failed: %v", err)
		}
		if len(trace) != 0 {
			t.Errorf("expected empty trace, got %d records", len(trace))
		}
	})
}

package steps

import (
	"context"
	"testing"
	"time"

	"github.com/dashworks/graphflow/graph"
	"github.com/dashworks/graphflow/graph/approval"
)

func TestHumanInput_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("approved answer flows into the delta", func(t *testing.T) {
		store := approval.NewInMem()
		step := &HumanInput{
			Approvals: store,
			Prompt:    "Publish {{title}}?",
			Wait:      time.Second,
			OutputKey: "decision",
		}

		go func() {
			for i := 0; i < 100; i++ {
				if reqs := store.Pending(); len(reqs) == 1 {
					if reqs[0].Prompt != "Publish the report?" {
						t.Errorf("prompt = %q", reqs[0].Prompt)
					}
					_ = store.Resolve(ctx, reqs[0].ID, true, "go ahead")
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}()

		delta, err := step.Execute(ctx, graph.State{"title": "the report"})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if delta.GetString("decision") != "go ahead" || !delta.GetBool("decision_approved") {
			t.Errorf("delta = %v", delta)
		}
	})

	t.Run("rejection is not an error", func(t *testing.T) {
		store := approval.NewInMem()
		step := &HumanInput{Approvals: store, Prompt: "?", Wait: time.Second}

		go func() {
			for i := 0; i < 100; i++ {
				if reqs := store.Pending(); len(reqs) == 1 {
					_ = store.Resolve(ctx, reqs[0].ID, false, "not yet")
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}()

		delta, err := step.Execute(ctx, graph.State{})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if delta.GetBool("approval_approved") {
			t.Error("rejected request marked approved")
		}
		if delta.GetString("approval") != "not yet" {
			t.Errorf("delta = %v", delta)
		}
	})

	t.Run("timeout with default continues and expires the request", func(t *testing.T) {
		store := approval.NewInMem()
		step := &HumanInput{
			Approvals:    store,
			Prompt:       "?",
			Wait:         50 * time.Millisecond,
			DefaultValue: "auto-approved",
			UseDefault:   true,
			OutputKey:    "decision",
		}

		idCh := make(chan string, 1)
		go func() {
			for i := 0; i < 100; i++ {
				if reqs := store.Pending(); len(reqs) == 1 {
					idCh <- reqs[0].ID
					return
				}
				time.Sleep(2 * time.Millisecond)
			}
		}()

		delta, err := step.Execute(ctx, graph.State{})
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if delta.GetString("decision") != "auto-approved" {
			t.Errorf("delta = %v", delta)
		}
		if delta.GetBool("decision_approved") {
			t.Error("defaulted timeout must not count as approved")
		}

		req, err := store.Get(ctx, <-idCh)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if req.Status != approval.StatusExpired {
			t.Errorf("request status = %s, want expired", req.Status)
		}
		if len(store.Pending()) != 0 {
			t.Error("timed-out request still listed as pending")
		}
	})

	t.Run("timeout without default fails and expires the request", func(t *testing.T) {
		store := approval.NewInMem()
		step := &HumanInput{
			Approvals: store,
			Prompt:    "?",
			Wait:      10 * time.Millisecond,
		}

		if _, err := step.Execute(ctx, graph.State{}); err == nil {
			t.Error("expected error on unanswered request")
		}
		if len(store.Pending()) != 0 {
			t.Error("timed-out request still listed as pending")
		}
	})

	t.Run("missing store", func(t *testing.T) {
		step := &HumanInput{Prompt: "?"}
		if _, err := step.Execute(ctx, graph.State{}); err == nil {
			t.Error("expected error without an approval store")
		}
	})
}

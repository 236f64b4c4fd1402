package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dashworks/graphflow/graph"
	"github.com/dashworks/graphflow/graph/approval"
)

// HumanInput is a step that raises an approval request and waits for a
// person to resolve it.
//
// The wait is bounded by Wait. On timeout, DefaultValue (when set) stands
// in for the human answer and the run continues; without a default the
// step fails. The wait blocks this run only; other runs keep executing.
//
// The written delta has two keys derived from OutputKey:
//   - <OutputKey>: the supplied value (or DefaultValue)
//   - <OutputKey>_approved: bool, false on rejection or defaulted timeout
type HumanInput struct {
	// Approvals is the collaborator. Required.
	Approvals approval.Store

	// Prompt is a template shown to the human.
	Prompt string

	// Wait bounds the blocking wait. Defaults to 5 minutes.
	Wait time.Duration

	// DefaultValue substitutes for the answer on timeout. Empty string
	// is a valid default when UseDefault is set.
	DefaultValue string
	UseDefault   bool

	// OutputKey prefixes the written keys. Defaults to "approval".
	OutputKey string
}

// Execute implements graph.Step.
func (s *HumanInput) Execute(ctx context.Context, state graph.State) (graph.State, error) {
	if s.Approvals == nil {
		return nil, fmt.Errorf("human input: approval store not configured")
	}

	wait := s.Wait
	if wait <= 0 {
		wait = 5 * time.Minute
	}
	key := s.OutputKey
	if key == "" {
		key = "approval"
	}

	req, err := s.Approvals.Create(ctx, graph.RunIDFromContext(ctx), graph.StepIDFromContext(ctx), render(s.Prompt, state))
	if err != nil {
		return nil, fmt.Errorf("human input: create request: %w", err)
	}

	resolved, err := s.Approvals.Await(ctx, req.ID, wait)
	if errors.Is(err, approval.ErrAwaitTimeout) {
		// Record the timeout so the request stops showing as pending.
		// An answer racing the timeout keeps its recorded resolution;
		// this run has already moved on either way.
		_ = s.Approvals.Expire(ctx, req.ID)
		if s.UseDefault {
			return graph.State{
				key:               s.DefaultValue,
				key + "_approved": false,
			}, nil
		}
		return nil, fmt.Errorf("human input: request %s unanswered after %s", req.ID, wait)
	}
	if err != nil {
		return nil, err
	}

	return graph.State{
		key:               resolved.Value,
		key + "_approved": resolved.Status == approval.StatusApproved,
	}, nil
}

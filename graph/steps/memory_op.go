package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dashworks/graphflow/graph"
	"github.com/dashworks/graphflow/graph/memory"
)

// Memory operation names accepted by MemoryOp.
const (
	MemoryStore    = "store"
	MemoryRetrieve = "retrieve"
	MemorySearch   = "search"
)

// MemoryOp is a step that reads or writes the memory collaborator.
//
// Operations:
//   - store: saves the state value under ValueKey at the rendered Key.
//     Produces no delta.
//   - retrieve: loads the rendered Key and writes its value under
//     OutputKey. A missing key writes nil rather than failing, so
//     workflows can branch on absence.
//   - search: queries with the rendered Query and writes the matching
//     values under OutputKey as a slice.
type MemoryOp struct {
	// Memory is the collaborator. Required.
	Memory memory.Store

	// Op is one of MemoryStore, MemoryRetrieve, MemorySearch.
	Op string

	// Key is a template naming the entry (store, retrieve).
	Key string

	// ValueKey names the state key whose value gets stored (store).
	ValueKey string

	// Query is a template for the search text (search).
	Query string

	// Limit caps search results. Zero means all.
	Limit int

	// Importance and TTL configure stored entries.
	Importance float64
	TTL        time.Duration

	// OutputKey receives retrieve/search results. Defaults to "memory".
	OutputKey string
}

// Execute implements graph.Step.
func (s *MemoryOp) Execute(ctx context.Context, state graph.State) (graph.State, error) {
	if s.Memory == nil {
		return nil, fmt.Errorf("memory op: store not configured")
	}

	key := s.OutputKey
	if key == "" {
		key = "memory"
	}

	switch s.Op {
	case MemoryStore:
		value, ok := state[s.ValueKey]
		if !ok {
			return nil, fmt.Errorf("memory op: state key %q not set", s.ValueKey)
		}
		err := s.Memory.Store(ctx, render(s.Key, state), value, memory.StoreOptions{
			Importance: s.Importance,
			TTL:        s.TTL,
		})
		if err != nil {
			return nil, err
		}
		return graph.State{}, nil

	case MemoryRetrieve:
		entry, err := s.Memory.Retrieve(ctx, render(s.Key, state))
		if errors.Is(err, memory.ErrNotFound) {
			return graph.State{key: nil}, nil
		}
		if err != nil {
			return nil, err
		}
		return graph.State{key: entry.Value}, nil

	case MemorySearch:
		entries, err := s.Memory.Search(ctx, render(s.Query, state), s.Limit)
		if err != nil {
			return nil, err
		}
		values := make([]any, 0, len(entries))
		for _, e := range entries {
			values = append(values, e.Value)
		}
		return graph.State{key: values}, nil

	default:
		return nil, fmt.Errorf("memory op: unknown operation %q", s.Op)
	}
}

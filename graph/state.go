// Package graph provides the core workflow graph orchestration engine for graphflow.
package graph

import (
	"encoding/json"
	"fmt"
)

// State is the open key-value record threaded through a workflow run.
//
// Steps are decoupled through duck-typed state keys: each step reads the keys
// it needs and returns a delta that is merged on top of the previous state.
// The merge is append-biased - later steps see every prior key unless they
// explicitly overwrite it, and no step may assume another step's keys are
// absent.
//
// State must be JSON-serializable, since checkpoints and execution records
// persist snapshots of it.
type State map[string]any

// Merge returns a new State with delta applied on top of s.
//
// Neither input is mutated. Keys present in delta overwrite keys in s;
// all other keys are carried forward. A nil delta returns a shallow copy
// of s.
func (s State) Merge(delta State) State {
	merged := make(State, len(s)+len(delta))
	for k, v := range s {
		merged[k] = v
	}
	for k, v := range delta {
		merged[k] = v
	}
	return merged
}

// GetString returns the string stored under key, or "" if the key is absent
// or holds a non-string value.
func (s State) GetString(key string) string {
	v, ok := s[key].(string)
	if !ok {
		return ""
	}
	return v
}

// GetBool returns the bool stored under key, or false if the key is absent
// or holds a non-bool value.
func (s State) GetBool(key string) bool {
	v, ok := s[key].(bool)
	if !ok {
		return false
	}
	return v
}

// Snapshot creates a deep copy of the state using JSON round-trip
// serialization.
//
// This works for any value that can be JSON-marshaled: primitives, maps,
// slices, and structs with exported fields. Channels, functions, and
// circular references will fail. Numeric values come back as float64, which
// matches what checkpoint stores return after a load.
//
// Execution records hold Snapshot copies of the state so that later steps
// cannot retroactively mutate an earlier step's recorded input or output.
func (s State) Snapshot() (State, error) {
	if s == nil {
		return State{}, nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	var copied State
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return copied, nil
}

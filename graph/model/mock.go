package model

import (
	"context"
	"sync"
)

// MockCompleter is a scripted Completer for tests.
//
// Responses are returned in order, sticking on the last one when the
// script runs out. Every request is recorded for assertion.
//
// Example:
//
//	mock := &model.MockCompleter{Responses: []string{"research notes", "draft text"}}
//	... run workflow ...
//	if mock.CallCount() != 2 { ... }
type MockCompleter struct {
	mu sync.Mutex

	// Responses is the scripted output sequence.
	Responses []string

	// Err, when set, is returned by every call instead of a response.
	Err error

	calls []Request
}

// Complete returns the next scripted response, recording the request.
func (m *MockCompleter) Complete(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}

	idx := len(m.calls) - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// CallCount returns how many completions were requested.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the recorded requests.
func (m *MockCompleter) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMem is a thread-safe in-process Store.
//
// Expired entries are dropped lazily on read; there is no background
// sweeper.
type InMem struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewInMem creates an empty in-process memory store.
func NewInMem() *InMem {
	return &InMem{entries: make(map[string]Entry)}
}

// Store writes or overwrites the entry under key.
func (m *InMem) Store(_ context.Context, key string, value any, opts StoreOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	entry := Entry{
		Key:        key,
		Value:      value,
		Importance: opts.Importance,
		CreatedAt:  now,
	}
	if opts.TTL > 0 {
		exp := now.Add(opts.TTL)
		entry.ExpiresAt = &exp
	}

	m.entries[key] = entry
	return nil
}

// Retrieve returns the live entry for key.
func (m *InMem) Retrieve(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	entry, exists := m.entries[key]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}
	if entry.expired() {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, ErrNotFound
	}

	return &entry, nil
}

// Search returns live entries matching the query, by importance descending.
// Ties break on recency, newest first.
func (m *InMem) Search(_ context.Context, query string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	var out []Entry
	for _, entry := range m.entries {
		if entry.expired() {
			continue
		}
		if q == "" ||
			strings.Contains(strings.ToLower(entry.Key), q) ||
			strings.Contains(strings.ToLower(fmt.Sprintf("%v", entry.Value)), q) {
			out = append(out, entry)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes the entry for key.
func (m *InMem) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (e Entry) expired() bool {
	return e.ExpiresAt != nil && time.Now().After(*e.ExpiresAt)
}

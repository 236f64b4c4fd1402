// Package memory defines the memory collaborator used by memory-op steps:
// a keyed store of facts a workflow accumulates and queries across steps.
package memory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested key does not exist or has
// expired.
var ErrNotFound = errors.New("memory entry not found")

// Entry is one remembered fact.
type Entry struct {
	Key   string
	Value any

	// Importance orders search results; higher surfaces first.
	Importance float64

	CreatedAt time.Time

	// ExpiresAt is the entry's TTL deadline, nil for no expiry.
	ExpiresAt *time.Time
}

// StoreOptions configures a write.
type StoreOptions struct {
	// Importance orders search results. Defaults to 0.
	Importance float64

	// TTL expires the entry after the given duration. Zero means never.
	TTL time.Duration
}

// Store is the memory collaborator contract.
type Store interface {
	// Store writes or overwrites the entry under key.
	Store(ctx context.Context, key string, value any, opts StoreOptions) error

	// Retrieve returns the entry for key, or ErrNotFound if absent or
	// expired.
	Retrieve(ctx context.Context, key string) (*Entry, error)

	// Search returns live entries whose key or string value contains the
	// query, ordered by importance descending. limit <= 0 means all.
	Search(ctx context.Context, query string, limit int) ([]Entry, error)

	// Delete removes the entry for key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error
}

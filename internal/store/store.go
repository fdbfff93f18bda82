// Package store defines the persisted state surface of the paper engine: a
// flat key/value space of JSON documents. Implementations include a local
// file (default), PostgreSQL, a Redis read-through cache over either, and
// in-memory (for testing).
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("store: key not found")

// Store is the persistence interface. There is a single logical writer;
// implementations are read-modify-write without transactions.
type Store interface {
	// Get returns the raw value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Package keystore abstracts the external key-value store that holds all
// durable per-client state: API key records, usage ledgers, request counters
// and cached responses. The gateway process keeps no authoritative copy of
// any of it in memory.
package keystore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("keystore: key not found")

// Store is the set of primitives the gateway needs from the shared store.
// IncrCounter and AppendList must be atomic; everything else is plain
// get/set with optional expiry.
type Store interface {
	// IncrCounter atomically increments an integer counter, returning the
	// new value. A missing key counts as zero.
	IncrCounter(ctx context.Context, key string) (int64, error)

	// AppendList appends a value to the end of a list, creating it if absent.
	AppendList(ctx context.Context, key, value string) error

	// ListRange returns the full list in insertion order. A missing key
	// yields an empty slice, not an error.
	ListRange(ctx context.Context, key string) ([]string, error)

	// Set stores a value. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get retrieves a value, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Expire sets a ttl on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Package cache stores upstream responses keyed by the exact inbound request
// body. Only non-streaming responses are cached; a hit is returned verbatim
// with no upstream call and no additional usage recorded.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/llmgate/llmgate/internal/shared/keystore"
	"github.com/rs/zerolog"
)

// Cache is a content-addressed response cache over the shared store.
type Cache struct {
	store keystore.Store
	ttl   time.Duration
	log   zerolog.Logger
}

// New constructs a Cache with the given entry TTL.
func New(store keystore.Store, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		store: store,
		ttl:   ttl,
		log:   log.With().Str("component", "cache").Logger(),
	}
}

// Key returns the cache key for a request body: the hex sha256 of the exact
// bytes. Canonicalization is byte-identity, which is deterministic across
// calls; two logically equal bodies with different serialization miss each
// other, which only costs an extra upstream call.
func Key(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached response for a request body, if present. Store
// failures are treated as misses: caching is never allowed to fail a request.
func (c *Cache) Lookup(ctx context.Context, body []byte) ([]byte, bool) {
	val, err := c.store.Get(ctx, Key(body))
	if err != nil {
		if !errors.Is(err, keystore.ErrNotFound) {
			c.log.Warn().Err(err).Msg("cache lookup failed, treating as miss")
		}
		return nil, false
	}
	return []byte(val), true
}

// Store caches a response against the request body. Errors are logged and
// swallowed; expiry is the store's job via the TTL.
func (c *Cache) Store(ctx context.Context, body, response []byte) {
	if err := c.store.Set(ctx, Key(body), string(response), c.ttl); err != nil {
		c.log.Warn().Err(err).Msg("cache store failed, skipping")
	}
}

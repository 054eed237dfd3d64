// Package ratelimit enforces a sliding-window-log limit over the shared
// usage ledger. The log stores one entry per completed request; admission
// counts the entries inside the trailing window, so there are no fixed-window
// boundary bursts.
//
// The ledger is read in full on every check and stale entries are ignored
// rather than pruned; retention is bounded only by the store-level TTL the
// meter refreshes on append. For very chatty clients this is a capacity
// concern.
package ratelimit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/llmgate/llmgate/internal/shared/keystore"
	"github.com/llmgate/llmgate/internal/shared/models"
	"github.com/rs/zerolog"
)

// Config holds rate limit configuration.
type Config struct {
	Limit  int           // requests per window
	Period time.Duration // window length
}

// Limiter admits or rejects requests per client identity.
type Limiter struct {
	store keystore.Store
	cfg   Config
	now   func() time.Time
	log   zerolog.Logger
}

// New constructs a Limiter.
func New(store keystore.Store, cfg Config, log zerolog.Logger) *Limiter {
	return &Limiter{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		log:   log.With().Str("component", "ratelimit").Logger(),
	}
}

// SetNow overrides the clock, for tests.
func (l *Limiter) SetNow(now func() time.Time) { l.now = now }

// Admit reports whether the client may make another request. The count
// covers completed requests only — the request being admitted is appended by
// the usage meter after it finishes — so the check is read-then-decide and
// best-effort under concurrent requests from the same client. A store error
// denies the request: limiting fails closed.
func (l *Limiter) Admit(ctx context.Context, identity string) (bool, error) {
	entries, err := l.store.ListRange(ctx, "requests:"+identity)
	if err != nil {
		l.log.Error().Err(err).Msg("ledger read failed, denying request")
		return false, err
	}

	cutoff := l.now().Add(-l.cfg.Period).UnixMilli()
	recent := 0
	for _, raw := range entries {
		var ev models.UsageEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		if ev.Timestamp >= cutoff {
			recent++
		}
	}

	// Admitting this request must keep the in-window count at or below the
	// limit, so the check is against the count excluding it.
	if recent >= l.cfg.Limit {
		return false, nil
	}
	return true, nil
}

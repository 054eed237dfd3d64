// Package usage meters token consumption per client against the shared
// ledger. Events are appended, never mutated; aggregates are folded on
// demand.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/llmgate/llmgate/internal/shared/keystore"
	"github.com/llmgate/llmgate/internal/shared/models"
	"github.com/rs/zerolog"
)

// retention bounds the per-client ledger; refreshed on every append so an
// active client's history survives, an idle one ages out.
const retention = 7 * 24 * time.Hour

// Meter records and aggregates per-client usage.
type Meter struct {
	store keystore.Store
	now   func() time.Time
	log   zerolog.Logger
}

// New constructs a Meter.
func New(store keystore.Store, log zerolog.Logger) *Meter {
	return &Meter{
		store: store,
		now:   time.Now,
		log:   log.With().Str("component", "usage").Logger(),
	}
}

// SetNow overrides the clock, for tests.
func (m *Meter) SetNow(now func() time.Time) { m.now = now }

// Record appends a usage event and increments the request counter. The two
// writes are individually atomic but not as a pair; a failure between them
// can under-count one side, which is accepted. Callers treat any error as
// non-fatal to the request being served.
func (m *Meter) Record(ctx context.Context, identity string, tokens int) error {
	raw, err := json.Marshal(models.NewUsageEvent(tokens, m.now()))
	if err != nil {
		return fmt.Errorf("encode usage event: %w", err)
	}

	listKey := "requests:" + identity
	if err := m.store.AppendList(ctx, listKey, string(raw)); err != nil {
		return fmt.Errorf("append usage event: %w", err)
	}
	if err := m.store.Expire(ctx, listKey, retention); err != nil {
		m.log.Warn().Err(err).Msg("ledger ttl refresh failed")
	}

	if _, err := m.store.IncrCounter(ctx, "counter:"+identity); err != nil {
		return fmt.Errorf("increment request counter: %w", err)
	}
	return nil
}

// Totals folds the client's event list for the token sum and reads the
// request counter. Undecodable ledger entries are skipped. Each number is
// monotonically non-decreasing, though they may be read at slightly
// different instants under concurrent writers.
func (m *Meter) Totals(ctx context.Context, identity string) (models.UsageTotals, error) {
	var totals models.UsageTotals

	entries, err := m.store.ListRange(ctx, "requests:"+identity)
	if err != nil {
		return totals, fmt.Errorf("read usage ledger: %w", err)
	}
	for _, raw := range entries {
		var ev models.UsageEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			m.log.Debug().Str("entry", raw).Msg("skipping undecodable ledger entry")
			continue
		}
		totals.TokenUsage += ev.TokenUsage
	}

	count, err := m.store.Get(ctx, "counter:"+identity)
	if err != nil && !errors.Is(err, keystore.ErrNotFound) {
		return totals, fmt.Errorf("read request counter: %w", err)
	}
	if err == nil {
		if n, perr := strconv.ParseInt(count, 10, 64); perr == nil {
			totals.RequestCount = n
		}
	}

	return totals, nil
}

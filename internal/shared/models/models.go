package models

import "time"

// UsageEvent is one completed request's token consumption, appended to the
// per-client ledger and never mutated.
type UsageEvent struct {
	TokenUsage int   `json:"token_usage"`
	Timestamp  int64 `json:"timestamp"` // unix milliseconds
}

// NewUsageEvent builds an event stamped with the given instant.
func NewUsageEvent(tokens int, at time.Time) UsageEvent {
	return UsageEvent{
		TokenUsage: tokens,
		Timestamp:  at.UnixMilli(),
	}
}

// Time returns the event's timestamp as a time.Time.
func (e UsageEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// UsageTotals aggregates a client's ledger. Token usage is folded from the
// event list; the request count comes from a separate atomic counter, so the
// two may reflect slightly different instants under concurrent writers.
type UsageTotals struct {
	TokenUsage   int   `json:"token_usage"`
	RequestCount int64 `json:"request_count"`
}

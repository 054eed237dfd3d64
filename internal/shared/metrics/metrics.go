// Package metrics exposes the gateway's prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's counters. One instance is shared by all
// handlers; prometheus counters are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	RateLimitDenied prometheus.Counter
	UpstreamErrors  prometheus.Counter
	TokensRecorded  prometheus.Counter
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Completion requests by terminal outcome.",
		}, []string{"outcome"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_cache_hits_total",
			Help: "Non-streaming requests served from the response cache.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_cache_misses_total",
			Help: "Non-streaming requests that missed the response cache.",
		}),
		RateLimitDenied: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_ratelimit_denied_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		UpstreamErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_upstream_errors_total",
			Help: "Upstream calls that failed or returned unusable responses.",
		}),
		TokensRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_tokens_recorded_total",
			Help: "Tokens written to the usage ledger.",
		}),
	}
}

// Outcome labels for the request counter.
const (
	OutcomeResponded = "responded"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

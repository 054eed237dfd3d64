package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/llmgate/llmgate/internal/gateway/auth"
	"github.com/llmgate/llmgate/internal/gateway/ratelimit"
	"github.com/llmgate/llmgate/internal/shared/metrics"
	"github.com/rs/zerolog"
)

type contextKey string

const identityKey contextKey = "client_identity"

// identityFrom returns the authenticated client identity from the request
// context. Only set by AuthMiddleware.
func identityFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityKey).(string)
	return id, ok
}

// bearerToken extracts the credential from an Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// Middleware carries the authentication and rate-limiting request filters.
type Middleware struct {
	auth    *auth.Authenticator
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewMiddleware constructs the middleware set.
func NewMiddleware(a *auth.Authenticator, l *ratelimit.Limiter, m *metrics.Metrics, log zerolog.Logger) *Middleware {
	return &Middleware{
		auth:    a,
		limiter: l,
		metrics: m,
		log:     log.With().Str("component", "middleware").Logger(),
	}
}

// Auth validates the bearer credential and stores the client identity in the
// request context. Every failure is the same 401: the response never reveals
// whether the key was missing, malformed or unrecognized.
func (m *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.auth.Validate(r.Context(), bearerToken(r))
		if err != nil {
			m.metrics.Requests.WithLabelValues(metrics.OutcomeRejected).Inc()
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimit enforces the sliding-window limit for the authenticated client.
// A store failure denies the request: limiting fails closed. This middleware
// is only installed when the rate-limit flag is enabled.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identityFrom(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		admitted, err := m.limiter.Admit(r.Context(), identity)
		if err != nil {
			m.metrics.Requests.WithLabelValues(metrics.OutcomeFailed).Inc()
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		if !admitted {
			m.metrics.RateLimitDenied.Inc()
			m.metrics.Requests.WithLabelValues(metrics.OutcomeRejected).Inc()
			http.Error(w, "Too many requests, please try again later", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CORS allows browser clients from any origin.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

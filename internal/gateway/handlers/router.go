package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/llmgate/llmgate/internal/shared/metrics"
)

// Deps bundles everything the router needs.
type Deps struct {
	Middleware       *Middleware
	Chat             *ChatHandler
	Usage            *UsageHandler
	Keys             *KeyHandler
	Metrics          *metrics.Metrics
	RateLimitEnabled bool
}

// NewRouter assembles the gateway's HTTP surface.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(d.Middleware.CORS)

	// Liveness probe, no auth.
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"status": true})
	})

	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	// Admin surface: guarded by the administrative secret, not client keys.
	r.Method(http.MethodPost, "/generate_key", d.Keys)

	// Client surface: bearer key auth, then rate limiting when enabled.
	r.Group(func(r chi.Router) {
		r.Use(d.Middleware.Auth)
		if d.RateLimitEnabled {
			r.Use(d.Middleware.RateLimit)
		}

		r.Method(http.MethodPost, "/v1/chat/completions", d.Chat)
		r.Method(http.MethodGet, "/usage", d.Usage)
	})

	return r
}

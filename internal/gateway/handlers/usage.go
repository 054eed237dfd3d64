package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/llmgate/llmgate/internal/gateway/usage"
	"github.com/llmgate/llmgate/internal/shared/models"
	"github.com/rs/zerolog"
)

// UsageHandler serves GET /usage for the authenticated client.
type UsageHandler struct {
	meter *usage.Meter
	log   zerolog.Logger
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(m *usage.Meter, log zerolog.Logger) *UsageHandler {
	return &UsageHandler{
		meter: m,
		log:   log.With().Str("component", "usage_handler").Logger(),
	}
}

// ServeHTTP reports the caller's aggregate usage.
func (h *UsageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	totals, err := h.meter.Totals(r.Context(), identity)
	if err != nil {
		h.log.Error().Err(err).Msg("usage query failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		TotalTokenUsage models.UsageTotals `json:"total_token_usage"`
	}{totals})
}

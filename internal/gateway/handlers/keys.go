package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/llmgate/llmgate/internal/gateway/auth"
	"github.com/rs/zerolog"
)

// KeyHandler serves POST /generate_key, the administrative issuance endpoint.
type KeyHandler struct {
	auth *auth.Authenticator
	log  zerolog.Logger
}

// NewKeyHandler constructs a KeyHandler.
func NewKeyHandler(a *auth.Authenticator, log zerolog.Logger) *KeyHandler {
	return &KeyHandler{
		auth: a,
		log:  log.With().Str("component", "keys").Logger(),
	}
}

// ServeHTTP issues a new API key. The caller must present the administrative
// secret; the plaintext key in the response is shown exactly once.
func (h *KeyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.auth.ValidateAdmin(bearerToken(r)) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	key, err := h.auth.IssueKey(r.Context(), req.Username)
	if err != nil {
		h.log.Error().Err(err).Msg("key issuance failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"api_key": key})
}

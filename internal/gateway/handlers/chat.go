package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/llmgate/llmgate/internal/gateway/cache"
	"github.com/llmgate/llmgate/internal/gateway/upstream"
	"github.com/llmgate/llmgate/internal/gateway/usage"
	"github.com/llmgate/llmgate/internal/shared/auditlog"
	"github.com/llmgate/llmgate/internal/shared/metrics"
	"github.com/rs/zerolog"
)

// ChatHandler serves POST /v1/chat/completions: cache lookup, upstream
// forwarding (buffered or streaming), usage accounting and cache fill.
type ChatHandler struct {
	forwarder    *upstream.Forwarder
	cache        *cache.Cache
	meter        *usage.Meter
	metrics      *metrics.Metrics
	audit        auditlog.Recorder
	cacheEnabled bool
	debug        bool
	log          zerolog.Logger
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(f *upstream.Forwarder, c *cache.Cache, m *usage.Meter, mx *metrics.Metrics, audit auditlog.Recorder, cacheEnabled, debug bool, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		forwarder:    f,
		cache:        c,
		meter:        m,
		metrics:      mx,
		audit:        audit,
		cacheEnabled: cacheEnabled,
		debug:        debug,
		log:          log.With().Str("component", "chat").Logger(),
	}
}

// upstreamError writes a 5xx for an upstream or forwarding failure. Debug
// mode includes the error text; production stays generic.
func (h *ChatHandler) upstreamError(w http.ResponseWriter, err error) {
	h.metrics.UpstreamErrors.Inc()
	h.metrics.Requests.WithLabelValues(metrics.OutcomeFailed).Inc()
	msg := "Internal Server Error"
	if h.debug {
		msg = "upstream error: " + err.Error()
	}
	http.Error(w, msg, http.StatusBadGateway)
}

// ServeHTTP handles POST /v1/chat/completions.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx := r.Context()

	identity, ok := identityFrom(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var probe struct {
		Stream bool `json:"stream"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if probe.Stream {
		h.serveStreaming(w, r, identity, body, started)
		return
	}
	h.serveBuffered(w, r, identity, body, started)
}

func (h *ChatHandler) serveBuffered(w http.ResponseWriter, r *http.Request, identity string, body []byte, started time.Time) {
	ctx := r.Context()

	if h.cacheEnabled {
		if cached, hit := h.cache.Lookup(ctx, body); hit {
			// Usage was recorded when the cache was filled; a hit adds none.
			h.metrics.CacheHits.Inc()
			h.metrics.Requests.WithLabelValues(metrics.OutcomeResponded).Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Write(cached)
			go h.audit.Record(context.Background(), auditlog.Entry{
				ClientHash: identity,
				Endpoint:   r.URL.Path,
				StatusCode: http.StatusOK,
				CacheHit:   true,
				LatencyMs:  time.Since(started).Milliseconds(),
			})
			return
		}
		h.metrics.CacheMisses.Inc()
	}

	respBody, tokens, err := h.forwarder.Forward(ctx, body)
	if err != nil {
		h.log.Error().Err(err).Msg("buffered forward failed")
		h.upstreamError(w, err)
		go h.audit.Record(context.Background(), auditlog.Entry{
			ClientHash: identity,
			Endpoint:   r.URL.Path,
			StatusCode: http.StatusBadGateway,
			LatencyMs:  time.Since(started).Milliseconds(),
			ErrorMsg:   err.Error(),
		})
		return
	}

	// Metering and caching are non-essential: failures are logged, the
	// response is served regardless.
	if err := h.meter.Record(ctx, identity, tokens); err != nil {
		h.log.Warn().Err(err).Msg("usage record skipped")
	} else {
		h.metrics.TokensRecorded.Add(float64(tokens))
	}
	if h.cacheEnabled {
		h.cache.Store(ctx, body, respBody)
	}

	h.metrics.Requests.WithLabelValues(metrics.OutcomeResponded).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.Write(respBody)

	go h.audit.Record(context.Background(), auditlog.Entry{
		ClientHash:  identity,
		Endpoint:    r.URL.Path,
		StatusCode:  http.StatusOK,
		TotalTokens: tokens,
		LatencyMs:   time.Since(started).Milliseconds(),
	})
}

func (h *ChatHandler) serveStreaming(w http.ResponseWriter, r *http.Request, identity string, body []byte, started time.Time) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	stream, err := h.forwarder.ForwardStream(ctx, body)
	if err != nil {
		h.log.Error().Err(err).Msg("stream open failed")
		h.upstreamError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for {
		line, err := stream.Next()
		if err != nil {
			break
		}
		if _, werr := w.Write(line); werr != nil {
			break
		}
		flusher.Flush()
	}

	io.WriteString(w, "data: [DONE]\n\n")
	flusher.Flush()

	// Exactly one usage record per stream, whether it ended at the sentinel,
	// on upstream close or by client cancellation. The request context may
	// already be cancelled, so the record uses a fresh one.
	tokens := stream.Tokens()
	recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.meter.Record(recordCtx, identity, tokens); err != nil {
		h.log.Warn().Err(err).Msg("usage record skipped")
	} else {
		h.metrics.TokensRecorded.Add(float64(tokens))
	}

	h.metrics.Requests.WithLabelValues(metrics.OutcomeResponded).Inc()
	go h.audit.Record(context.Background(), auditlog.Entry{
		ClientHash:  identity,
		Endpoint:    r.URL.Path,
		StatusCode:  http.StatusOK,
		TotalTokens: tokens,
		Streamed:    true,
		LatencyMs:   time.Since(started).Milliseconds(),
	})
}

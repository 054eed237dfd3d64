// Package upstream forwards chat-completion payloads to the provider. The
// payload passes through verbatim; the forwarder only picks a credential,
// makes the call and extracts token usage from the result.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

const completionsPath = "/v1/chat/completions"

// ErrNoUsage is returned when a successful upstream response carries no
// parseable usage field.
var ErrNoUsage = errors.New("upstream: response missing usage data")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// Forwarder performs upstream calls with a pool of provider credentials.
// Each call picks one credential uniformly at random; a failure is not
// retried against another credential.
type Forwarder struct {
	baseURL string
	creds   []string
	client  *http.Client // buffered calls, bounded by a total timeout
	stream  *http.Client // streaming calls, bounded only by the caller's context
	log     zerolog.Logger
}

// Config holds forwarder configuration.
type Config struct {
	BaseURL     string
	Credentials []string
	Timeout     time.Duration
}

// New constructs a Forwarder.
func New(cfg Config, log zerolog.Logger) *Forwarder {
	return &Forwarder{
		baseURL: cfg.BaseURL,
		creds:   cfg.Credentials,
		client:  &http.Client{Timeout: cfg.Timeout},
		stream:  &http.Client{},
		log:     log.With().Str("component", "upstream").Logger(),
	}
}

func (f *Forwarder) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	cred := f.creds[rand.Intn(len(f.creds))]
	req.Header.Set("Authorization", "Bearer "+cred)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Forward makes a buffered upstream call, returning the raw response body and
// the upstream-reported total token count. A missing or malformed usage field
// is an error even when the call itself succeeded.
func (f *Forwarder) Forward(ctx context.Context, body []byte) ([]byte, int, error) {
	req, err := f.newRequest(ctx, body)
	if err != nil {
		return nil, 0, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("upstream call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read upstream response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed struct {
		Usage *openai.Usage `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNoUsage, err)
	}
	if parsed.Usage == nil {
		return nil, 0, ErrNoUsage
	}

	return respBody, parsed.Usage.TotalTokens, nil
}

// ForwardStream opens a streaming upstream call. The returned Stream yields
// raw lines as the upstream delivers them; cancelling ctx closes the upstream
// connection. The caller owns Close and must record whatever Tokens reports
// once the stream ends, however it ends.
func (f *Forwarder) ForwardStream(ctx context.Context, body []byte) (*Stream, error) {
	req, err := f.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := f.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream call: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return newStream(resp.Body, f.log), nil
}

// Package auth validates gateway API keys and issues new ones. Keys are
// stored only as sha256 hashes; the hash doubles as the client identity used
// throughout the ledger, so a plaintext credential is never persisted.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/llmgate/llmgate/internal/shared/keystore"
	"github.com/rs/zerolog"
)

// ErrUnauthorized is returned for any credential that does not resolve to a
// registered key. Callers must not distinguish why.
var ErrUnauthorized = errors.New("auth: unauthorized")

const keyPrefix = "lg_"

// Authenticator validates credentials against the shared store.
type Authenticator struct {
	store    keystore.Store
	adminKey string
	log      zerolog.Logger
}

// New constructs an Authenticator.
func New(store keystore.Store, adminKey string, log zerolog.Logger) *Authenticator {
	return &Authenticator{
		store:    store,
		adminKey: adminKey,
		log:      log.With().Str("component", "auth").Logger(),
	}
}

// HashCredential returns the client identity for a presented credential.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// Validate resolves a presented credential to a client identity. Store
// failures are folded into ErrUnauthorized: authentication fails closed and
// never reveals which check failed.
func (a *Authenticator) Validate(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", ErrUnauthorized
	}

	identity := HashCredential(credential)
	if _, err := a.store.Get(ctx, identity); err != nil {
		if !errors.Is(err, keystore.ErrNotFound) {
			a.log.Error().Err(err).Msg("key lookup failed")
		}
		return "", ErrUnauthorized
	}
	return identity, nil
}

// ValidateAdmin checks the administrative secret in constant time. An
// unconfigured secret always fails.
func (a *Authenticator) ValidateAdmin(credential string) bool {
	if a.adminKey == "" || credential == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(credential), []byte(a.adminKey)) == 1
}

// IssueKey generates a new API key for the given owner, stores its hash with
// the owner label and returns the plaintext. The plaintext is shown exactly
// once; it cannot be recovered from the store.
func (a *Authenticator) IssueKey(ctx context.Context, owner string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	plaintext := keyPrefix + hex.EncodeToString(raw)

	identity := HashCredential(plaintext)
	if err := a.store.Set(ctx, identity, owner, 0); err != nil {
		return "", fmt.Errorf("store key: %w", err)
	}

	a.log.Info().Str("owner", owner).Msg("issued api key")
	return plaintext, nil
}

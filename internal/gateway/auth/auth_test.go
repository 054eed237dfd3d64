package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/llmgate/llmgate/internal/shared/keystore"
	"github.com/rs/zerolog"
)

func newTestAuth(store keystore.Store, adminKey string) *Authenticator {
	return New(store, adminKey, zerolog.Nop())
}

func TestIssueKeyThenValidate(t *testing.T) {
	store := keystore.NewMemory()
	a := newTestAuth(store, "admin-secret")
	ctx := context.Background()

	plaintext, err := a.IssueKey(ctx, "alice")
	if err != nil {
		t.Fatalf("IssueKey: %v", err)
	}
	if !strings.HasPrefix(plaintext, "lg_") {
		t.Errorf("key = %q, want lg_ prefix", plaintext)
	}
	if len(plaintext) != len("lg_")+64 {
		t.Errorf("key length = %d, want %d", len(plaintext), len("lg_")+64)
	}

	identity, err := a.Validate(ctx, plaintext)
	if err != nil {
		t.Fatalf("Validate issued key: %v", err)
	}
	if identity != HashCredential(plaintext) {
		t.Errorf("identity = %q, want hash of plaintext", identity)
	}

	// The stored record maps the hash to the owner label, never the plaintext.
	owner, err := store.Get(ctx, identity)
	if err != nil {
		t.Fatalf("Get record: %v", err)
	}
	if owner != "alice" {
		t.Errorf("owner = %q, want alice", owner)
	}
}

func TestIssuedKeysAreDistinct(t *testing.T) {
	a := newTestAuth(keystore.NewMemory(), "admin-secret")
	ctx := context.Background()

	k1, err := a.IssueKey(ctx, "alice")
	if err != nil {
		t.Fatalf("IssueKey: %v", err)
	}
	k2, err := a.IssueKey(ctx, "alice")
	if err != nil {
		t.Fatalf("IssueKey: %v", err)
	}
	if k1 == k2 {
		t.Error("two issued keys are identical")
	}
}

func TestValidateUnknownKeyFails(t *testing.T) {
	a := newTestAuth(keystore.NewMemory(), "admin-secret")

	if _, err := a.Validate(context.Background(), "lg_never_issued"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestValidateEmptyCredentialFails(t *testing.T) {
	a := newTestAuth(keystore.NewMemory(), "admin-secret")

	if _, err := a.Validate(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestValidateFailsClosedWhenStoreDown(t *testing.T) {
	store := keystore.NewMemory()
	a := newTestAuth(store, "admin-secret")
	ctx := context.Background()

	plaintext, err := a.IssueKey(ctx, "alice")
	if err != nil {
		t.Fatalf("IssueKey: %v", err)
	}

	store.SetDown(true)
	if _, err := a.Validate(ctx, plaintext); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestValidateAdmin(t *testing.T) {
	tests := []struct {
		name       string
		adminKey   string
		credential string
		want       bool
	}{
		{"match", "secret", "secret", true},
		{"mismatch", "secret", "wrong", false},
		{"empty credential", "secret", "", false},
		{"unconfigured secret", "", "", false},
		{"unconfigured secret with credential", "", "secret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAuth(keystore.NewMemory(), tt.adminKey)
			if got := a.ValidateAdmin(tt.credential); got != tt.want {
				t.Errorf("ValidateAdmin(%q) = %v, want %v", tt.credential, got, tt.want)
			}
		})
	}
}

func TestHashCredentialIsDeterministic(t *testing.T) {
	if HashCredential("abc") != HashCredential("abc") {
		t.Error("same credential hashed to different identities")
	}
	if HashCredential("abc") == HashCredential("abd") {
		t.Error("different credentials hashed to same identity")
	}
}

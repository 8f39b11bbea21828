package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/pulsechat/pulsechat-server/internal/store/sqlite"
)

func TestVerifierAuthenticate(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := testJWTConfig()
	verifier := NewVerifier(st, cfg)
	ctx := context.Background()

	user, err := st.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := GenerateToken(cfg, user.ID, user.Username)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	identity, err := verifier.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if identity.UserID != user.ID || identity.Username != "alice" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestVerifierRejections(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := testJWTConfig()
	verifier := NewVerifier(st, cfg)
	ctx := context.Background()

	if _, err := verifier.Authenticate(ctx, ""); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}

	if _, err := verifier.Authenticate(ctx, "not-a-jwt"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}

	// Valid token for a user that no longer exists.
	token, err := GenerateToken(cfg, 999, "ghost")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := verifier.Authenticate(ctx, token); !errors.Is(err, ErrUnknownSubject) {
		t.Fatalf("expected ErrUnknownSubject, got %v", err)
	}
}

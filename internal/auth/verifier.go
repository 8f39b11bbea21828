package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

var (
	// ErrMissingCredential is returned when no credential is presented.
	ErrMissingCredential = errors.New("missing credential")
	// ErrInvalidCredential is returned when the credential fails verification.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrUnknownSubject is returned when the verified subject no longer exists.
	ErrUnknownSubject = errors.New("unknown subject")
)

// Identity is the stable identity resolved from a verified credential.
type Identity struct {
	UserID   int64
	Username string
}

// Verifier resolves inbound connection credentials to user identities.
// It verifies tokens it did not mint; issuance lives in Service.
type Verifier struct {
	users     store.UserStore
	jwtConfig *JWTConfig
}

// NewVerifier creates a new identity verifier.
func NewVerifier(users store.UserStore, jwtConfig *JWTConfig) *Verifier {
	return &Verifier{users: users, jwtConfig: jwtConfig}
}

// Authenticate validates a credential and resolves the owning user.
// Any failure aborts connection establishment; no state is left behind.
func (v *Verifier) Authenticate(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, ErrMissingCredential
	}

	claims, err := ValidateToken(v.jwtConfig, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	exists, err := v.users.UserExists(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("check subject: %w", err)
	}
	if !exists {
		return nil, ErrUnknownSubject
	}

	return &Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

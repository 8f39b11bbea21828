package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidRefreshToken is returned for unknown or expired refresh tokens.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// TokenPair bundles a short-lived access token with its refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Service provides credential issuance and validation.
type Service struct {
	users      store.UserStore
	tokens     store.TokenStore
	jwtConfig  *JWTConfig
	refreshTTL time.Duration
}

// NewService creates a new authentication service.
func NewService(users store.UserStore, tokens store.TokenStore, jwtConfig *JWTConfig, refreshTTL time.Duration) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		jwtConfig:  jwtConfig,
		refreshTTL: refreshTTL,
	}
}

// Register creates a new user with hashed password and returns a token pair.
func (s *Service) Register(ctx context.Context, username, password string) (*TokenPair, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return nil, ErrInvalidUsername
	}
	if len(password) < 6 {
		return nil, ErrInvalidPassword
	}

	existing, err := s.users.GetUserByUsername(ctx, username)
	if err == nil && existing != nil {
		return nil, ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, username, hashedPassword)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// Login validates credentials and returns a token pair.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token, revoking the old one and returning a
// fresh token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	record, err := s.tokens.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if time.Now().After(record.ExpiresAt) {
		_ = s.tokens.DeleteRefreshToken(ctx, refreshToken)
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetUserByID(ctx, record.UserID)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	if err := s.tokens.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	return s.issueTokens(ctx, user)
}

// Logout revokes a refresh token. Revoking an unknown token is a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.DeleteRefreshToken(ctx, refreshToken)
}

// ValidateToken validates a JWT access token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

func (s *Service) issueTokens(ctx context.Context, user *store.User) (*TokenPair, error) {
	access, err := GenerateToken(s.jwtConfig, user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	refresh, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if _, err := s.tokens.CreateRefreshToken(ctx, user.ID, refresh, time.Now().Add(s.refreshTTL)); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func generateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

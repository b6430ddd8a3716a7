package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tally/internal/store"
)

// ErrInvalidCredentials is returned by Login for an unknown operator or a
// wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialStore holds operator password hashes. store.RecordStore
// satisfies it.
type CredentialStore interface {
	OperatorCredential(ctx context.Context, username string) (store.Credential, error)
	SetOperatorCredential(ctx context.Context, username, passwordHash string) error
}

// Session is a successful login.
type Session struct {
	Token     string    `json:"token"`
	Operator  string    `json:"operator"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service logs operators in against the credential store.
type Service struct {
	creds  CredentialStore
	tokens *Issuer
	logger *slog.Logger
}

// NewService creates a Service. A nil logger means slog.Default().
func NewService(creds CredentialStore, tokens *Issuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{creds: creds, tokens: tokens, logger: logger}
}

// Tokens returns the token issuer, for the HTTP middleware.
func (s *Service) Tokens() *Issuer {
	return s.tokens
}

// Login checks username and password and issues a session token.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	cred, err := s.creds.OperatorCredential(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("login for unknown operator", "operator", username)
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}

	if !CheckPassword(password, cred.PasswordHash) {
		s.logger.Warn("login with wrong password", "operator", username)
		return Session{}, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(cred.Username)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("operator logged in", "operator", cred.Username)
	return Session{Token: token, Operator: cred.Username, ExpiresAt: expires}, nil
}

// SetPassword stores a new password hash for username.
func (s *Service) SetPassword(ctx context.Context, username, password string) error {
	if username == "" {
		return errors.New("set password: username is required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.creds.SetOperatorCredential(ctx, username, hash); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

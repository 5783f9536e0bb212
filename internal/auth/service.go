package auth

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orders/pkg/errorbank"
)

// Module wires credential verification, session storage, and the service.
var Module = fx.Options(
	fx.Provide(NewVerifier),
	fx.Provide(NewTokenStore),
	fx.Provide(NewService),
)

// Params collects the service dependencies.
type Params struct {
	fx.In

	Verifier Verifier
	Store    TokenStore
	Logger   *zap.Logger
}

// Service issues, resolves, and revokes bearer tokens.
type Service struct {
	verifier Verifier
	store    TokenStore
	logger   *zap.Logger
}

// NewService wires a Service.
func NewService(p Params) *Service {
	return &Service{verifier: p.Verifier, store: p.Store, logger: p.Logger}
}

// Login verifies credentials and issues a fresh token, replacing any token
// the user already held.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	role, err := s.verifier.Verify(ctx, username, password)
	if errors.Is(err, ErrInvalidCredentials) {
		s.logger.Info("login rejected", zap.String("username", username))

		return "", errorbank.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return "", errorbank.Internal("failed to verify credentials", errorbank.WithCause(err))
	}

	token, err := IssueToken()
	if err != nil {
		return "", errorbank.Internal("failed to issue token", errorbank.WithCause(err))
	}

	if err := s.store.Save(ctx, Session{Token: token, Username: username, Role: role}); err != nil {
		return "", errorbank.Internal("failed to store session", errorbank.WithCause(err))
	}

	s.logger.Info("login succeeded", zap.String("username", username), zap.String("role", string(role)))
	return token, nil
}

// Resolve maps a token to the caller identity.
func (s *Service) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, errorbank.Unauthorized("missing token")
	}
	session, err := s.store.Resolve(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return Identity{}, errorbank.Unauthorized("invalid or expired token")
	}
	if err != nil {
		return Identity{}, errorbank.Internal("failed to resolve token", errorbank.WithCause(err))
	}
	return session.Identity(), nil
}

// Logout revokes the token. Revoking an unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	revoked, err := s.store.Revoke(ctx, token)
	if err != nil {
		return errorbank.Internal("failed to revoke token", errorbank.WithCause(err))
	}
	if revoked {
		s.logger.Debug("token revoked")
	}
	return nil
}

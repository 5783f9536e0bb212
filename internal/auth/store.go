package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orders/internal/config"
)

// ErrSessionNotFound is returned when a token does not resolve.
var ErrSessionNotFound = errors.New("session not found")

// TokenStore persists sessions. It holds at most one token per username:
// saving a session replaces, and thereby invalidates, the previous token.
type TokenStore interface {
	Save(ctx context.Context, session Session) error
	Resolve(ctx context.Context, token string) (Session, error)
	// Revoke reports whether the token was live.
	Revoke(ctx context.Context, token string) (bool, error)
}

// NewTokenStore selects the session backend from configuration.
func NewTokenStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (TokenStore, error) {
	switch cfg.Auth.SessionDriver {
	case "memory":
		logger.Info("using in-memory session store")

		return NewMemoryStore(), nil
	case "redis":
		return newRedisStore(lc, cfg.Auth, cfg.Redis, logger), nil
	default:
		return nil, fmt.Errorf("unsupported session driver: %s", cfg.Auth.SessionDriver)
	}
}

// MemoryStore keeps sessions for the life of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	byToken map[string]Session
	byUser  map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byToken: make(map[string]Session),
		byUser:  make(map[string]string),
	}
}

func (s *MemoryStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byUser[session.Username]; ok {
		delete(s.byToken, old)
	}
	s.byToken[session.Token] = session
	s.byUser[session.Username] = session.Token
	return nil
}

func (s *MemoryStore) Resolve(_ context.Context, token string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byToken[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *MemoryStore) Revoke(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.byToken[token]
	if !ok {
		return false, nil
	}
	delete(s.byToken, token)
	if s.byUser[session.Username] == token {
		delete(s.byUser, session.Username)
	}
	return true, nil
}

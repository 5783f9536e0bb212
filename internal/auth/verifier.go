package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Additional-Code/orders/internal/config"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Verifier checks a username/password pair and returns the granted role.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (Role, error)
}

type staticUser struct {
	hash []byte
	role Role
}

// StaticVerifier verifies against credentials fixed at boot. Passwords are
// held only as bcrypt hashes.
type StaticVerifier struct {
	users map[string]staticUser
	// compared against for unknown users so both paths cost one bcrypt round
	dummy []byte
}

// NewVerifier builds the configured verifier.
func NewVerifier(cfg config.Config) (Verifier, error) {
	return NewStaticVerifier(cfg.Auth.Users, cfg.Auth.BcryptCost)
}

// NewStaticVerifier hashes each credential with the given bcrypt cost.
func NewStaticVerifier(creds []config.Credential, cost int) (*StaticVerifier, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	users := make(map[string]staticUser, len(creds))
	for _, c := range creds {
		hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", c.Username, err)
		}
		users[c.Username] = staticUser{hash: hash, role: Role(c.Role)}
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}

	return &StaticVerifier{users: users, dummy: dummy}, nil
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(_ context.Context, username, password string) (Role, error) {
	user, ok := v.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(v.dummy, []byte(password))
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.hash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return user.role, nil
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Role is the authorization level attached to a session.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// tokenBytes is the entropy of an issued token (256 bits).
const tokenBytes = 32

// Identity is the caller resolved from a bearer token.
type Identity struct {
	Username string
	Role     Role
}

// Session binds an opaque token to an identity.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Identity returns the caller described by the session.
func (s Session) Identity() Identity {
	return Identity{Username: s.Username, Role: s.Role}
}

// IssueToken returns a URL-safe random token.
func IssueToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type identityKey struct{}

// WithIdentity stores the caller on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored on ctx, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

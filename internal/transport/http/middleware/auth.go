package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/orders/internal/auth"
	"github.com/Additional-Code/orders/internal/presentation/http/response"
	"github.com/Additional-Code/orders/pkg/errorbank"
)

const (
	identityKey = "identity"
	tokenKey    = "token"
	bearer      = "bearer "
)

// TokenResolver maps a bearer token to its caller.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (auth.Identity, error)
}

// RequireToken rejects requests without a resolvable bearer token (401) and
// attaches the caller identity to the request.
func RequireToken(resolver TokenResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return response.Error(c, errorbank.Unauthorized("Missing or malformed Authorization header"))
			}

			id, err := resolver.Resolve(c.Request().Context(), token)
			if err != nil {
				return response.Error(c, err)
			}

			c.Set(identityKey, id)
			c.Set(tokenKey, token)
			c.SetRequest(c.Request().WithContext(auth.WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// RequireRole rejects callers without the role (403). It must run after
// RequireToken.
func RequireRole(role auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := Identity(c)
			if !ok {
				return response.Error(c, errorbank.Unauthorized("Missing or malformed Authorization header"))
			}
			if id.Role != role {
				return response.Error(c, errorbank.Forbidden("Insufficient permissions",
					errorbank.WithDetail("required_role", string(role)),
				))
			}
			return next(c)
		}
	}
}

// Identity returns the caller attached by RequireToken.
func Identity(c echo.Context) (auth.Identity, bool) {
	id, ok := c.Get(identityKey).(auth.Identity)
	return id, ok
}

// Token returns the bearer token attached by RequireToken.
func Token(c echo.Context) string {
	token, _ := c.Get(tokenKey).(string)
	return token
}

func bearerToken(header string) (string, bool) {
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearer):])
	return token, token != ""
}

package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	authsvc "github.com/Additional-Code/orders/internal/auth"
	"github.com/Additional-Code/orders/internal/dto"
	"github.com/Additional-Code/orders/internal/presentation/http/response"
	"github.com/Additional-Code/orders/internal/transport/http/middleware"
	"github.com/Additional-Code/orders/pkg/errorbank"
)

// Module wires the login and logout endpoints.
var Module = fx.Options(
	fx.Provide(func(s *authsvc.Service) Sessions { return s }),
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Sessions is the session lifecycle used by the handlers.
type Sessions interface {
	Login(ctx context.Context, username, password string) (string, error)
	Resolve(ctx context.Context, token string) (authsvc.Identity, error)
	Logout(ctx context.Context, token string) error
}

// Handler exposes authentication endpoints over HTTP.
type Handler struct {
	sessions Sessions
}

// NewHandler constructs an auth Handler.
func NewHandler(sessions Sessions) *Handler {
	return &Handler{sessions: sessions}
}

// Register routes on the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.POST("/login", h.login)
	e.POST("/logout", h.logout, middleware.RequireToken(h.sessions))
}

func (h *Handler) login(c echo.Context) error {
	b := response.New(c)

	var payload dto.LoginRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if strings.TrimSpace(payload.Username) == "" || payload.Password == "" {
		return b.WithError(errorbank.BadRequest("Missing username or password")).Build()
	}

	token, err := h.sessions.Login(c.Request().Context(), payload.Username, payload.Password)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.LoginResponse{Token: token}).Build()
}

func (h *Handler) logout(c echo.Context) error {
	b := response.New(c)

	if err := h.sessions.Logout(c.Request().Context(), middleware.Token(c)); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.MessageResponse{Message: "Successfully logged out"}).Build()
}

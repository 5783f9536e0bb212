package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/orders/internal/auth"
	"github.com/Additional-Code/orders/pkg/errorbank"
)

type stubResolver map[string]auth.Identity

func (s stubResolver) Resolve(_ context.Context, token string) (auth.Identity, error) {
	id, ok := s[token]
	if !ok {
		return auth.Identity{}, errorbank.Unauthorized("invalid or expired token")
	}
	return id, nil
}

var resolver = stubResolver{
	"admin-token": {Username: "admin", Role: auth.RoleAdmin},
	"user-token":  {Username: "user1", Role: auth.RoleUser},
}

func newRouter() *echo.Echo {
	e := echo.New()
	ok := func(c echo.Context) error {
		id, _ := auth.IdentityFrom(c.Request().Context())
		return c.JSON(http.StatusOK, map[string]string{"username": id.Username, "token": Token(c)})
	}
	e.GET("/read", ok, RequireToken(resolver))
	e.DELETE("/write", ok, RequireToken(resolver), RequireRole(auth.RoleAdmin))
	return e
}

func serve(e *echo.Echo, method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireToken(t *testing.T) {
	e := newRouter()

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic YWRtaW46cGFzc3dvcmQ=", status: http.StatusUnauthorized},
		{name: "raw token without scheme", header: "admin-token", status: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", status: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer admin-token", status: http.StatusOK},
		{name: "lowercase scheme", header: "bearer user-token", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, "/read", tt.header)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"kind":"unauthorized"`)
			}
		})
	}
}

func TestRequireTokenAttachesIdentity(t *testing.T) {
	rec := serve(newRouter(), http.MethodGet, "/read", "Bearer user-token")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"user1","token":"user-token"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := newRouter()

	rec := serve(e, http.MethodDelete, "/write", "Bearer user-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"forbidden"`)

	rec = serve(e, http.MethodDelete, "/write", "Bearer admin-token")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Authentication is checked before the role.
	rec = serve(e, http.MethodDelete, "/write", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestIDGeneratesAndPropagates(t *testing.T) {
	e := echo.New()
	e.Use(RequestID())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(RequestID(), RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/missing", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "nope"})
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusNotFound), entries[1].ContextMap()["status"])
	assert.NotEmpty(t, entries[1].ContextMap()["request_id"])
}

package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/orders/pkg/errorbank"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string         `json:"error"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
}

// Builder helps construct consistent HTTP responses. Success payloads are
// rendered as-is; errors are rendered as ErrorBody.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.buildError()
	}
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.ctx.JSON(b.status, b.data)
}

func (b *Builder) buildError() error {
	appErr := errorbank.From(b.err)
	status := b.status
	if status < 400 {
		status = appErr.StatusCode()
	}
	if status >= http.StatusInternalServerError {
		// Internal causes stay in the logs.
		b.ctx.Set("error", b.err)
	}
	return b.ctx.JSON(status, ErrorBody{
		Error:   appErr.Message(),
		Kind:    string(appErr.Kind()),
		Details: appErr.Details(),
	})
}

// Error renders err directly; handy for middleware.
func Error(c echo.Context, err error) error {
	return New(c).WithError(err).Build()
}

// Status renders a framework-level failure (unknown route, wrong method) in
// the ErrorBody shape.
func Status(c echo.Context, status int, message any) error {
	kind := strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	if status >= http.StatusInternalServerError {
		kind = string(errorbank.KindInternal)
	}
	return c.JSON(status, ErrorBody{Error: fmt.Sprint(message), Kind: kind})
}

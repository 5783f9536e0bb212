package order

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/orders/internal/auth"
	"github.com/Additional-Code/orders/internal/dto"
	"github.com/Additional-Code/orders/internal/entity"
	"github.com/Additional-Code/orders/internal/presentation/http/response"
	service "github.com/Additional-Code/orders/internal/service/order"
	"github.com/Additional-Code/orders/internal/transport/http/middleware"
	"github.com/Additional-Code/orders/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/orders/transport/http/order")

// Module wires HTTP order handlers.
var Module = fx.Options(
	fx.Provide(func(s *service.Service) Orders { return s }),
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Orders is the order use-case surface the handlers call.
type Orders interface {
	List(ctx context.Context) ([]entity.Order, error)
	Get(ctx context.Context, id int64) (*entity.Order, error)
	Create(ctx context.Context, in service.CreateInput) (*entity.Order, error)
	Update(ctx context.Context, id int64, in service.UpdateInput) (*entity.Order, error)
	Delete(ctx context.Context, id int64) error
}

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc Orders
}

// NewHandler constructs an order Handler.
func NewHandler(svc Orders) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance. Reads need a token; writes
// also need the admin role.
func Register(e *echo.Echo, h *Handler, resolver middleware.TokenResolver) {
	g := e.Group("/orders", middleware.RequireToken(resolver))
	admin := middleware.RequireRole(auth.RoleAdmin)

	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.POST("", h.create, admin)
	g.PUT("/:id", h.update, admin)
	g.DELETE("/:id", h.delete, admin)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.svc.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrders(orders)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	in, err := toCreateInput(payload)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(
		attribute.Int64("order.client_id", in.ClientID),
		attribute.Int64("order.product_id", in.ProductID),
	)
	defer span.End()

	order, err := h.svc.Create(ctx, in)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.UpdateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	in, err := toUpdateInput(payload)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Update(ctx, id, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.MessageResponse{Message: "Order deleted successfully"}).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithDetail("id", c.Param("id")))
	}
	return id, nil
}

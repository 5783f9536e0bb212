package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orders/internal/cache"
	"github.com/Additional-Code/orders/internal/config"
	"github.com/Additional-Code/orders/internal/entity"
	repo "github.com/Additional-Code/orders/internal/repository/order"
	"github.com/Additional-Code/orders/pkg/errorbank"
)

const maxTombstoneTTL = 30 * time.Second

const meterName = "github.com/Additional-Code/orders/service/order"

var serviceTracer = otel.Tracer("github.com/Additional-Code/orders/service/order")

// Repository is the persistence contract the service relies on.
type Repository interface {
	List(ctx context.Context) ([]entity.Order, error)
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, id int64, fields repo.UpdateFields) (*entity.Order, error)
	Delete(ctx context.Context, id int64) error
	DeleteByClient(ctx context.Context, clientID int64) ([]int64, error)
}

// Publisher emits the side effects of a committed order.
type Publisher interface {
	OrderCreated(ctx context.Context, order *entity.Order) error
}

// CreateInput is a validated create command. Zero values and nil pointers
// select defaults; an explicit empty Status is kept.
type CreateInput struct {
	ClientID    int64
	ProductID   int64
	OrderDate   *time.Time
	Status      *string
	TotalAmount decimal.Decimal
	Quantity    int
}

// UpdateInput carries the mutable fields; nil leaves a field unchanged.
type UpdateInput struct {
	Status      *string
	TotalAmount *decimal.Decimal
}

// Service encapsulates business logic around orders.
type Service struct {
	repo      Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher Publisher
	metrics   serviceMetrics
	now       func() time.Time
}

type serviceMetrics struct {
	created         metric.Int64Counter
	deleted         metric.Int64Counter
	cascadeDeleted  metric.Int64Counter
	publishFailures metric.Int64Counter
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository    Repository
	Cache         cache.Store
	Config        config.Config
	Logger        *zap.Logger
	Publisher     Publisher
	MeterProvider metric.MeterProvider
}

// NewService wires a new Service instance.
func NewService(p Params) (*Service, error) {
	meter := p.MeterProvider.Meter(meterName)

	var m serviceMetrics
	var err error
	if m.created, err = meter.Int64Counter("orders.created", metric.WithDescription("Orders persisted")); err != nil {
		return nil, fmt.Errorf("create orders.created counter: %w", err)
	}
	if m.deleted, err = meter.Int64Counter("orders.deleted", metric.WithDescription("Orders deleted through the API")); err != nil {
		return nil, fmt.Errorf("create orders.deleted counter: %w", err)
	}
	if m.cascadeDeleted, err = meter.Int64Counter("orders.cascade_deleted", metric.WithDescription("Orders deleted by client deletion events")); err != nil {
		return nil, fmt.Errorf("create orders.cascade_deleted counter: %w", err)
	}
	if m.publishFailures, err = meter.Int64Counter("events.publish_failures", metric.WithDescription("Order events the broker did not accept")); err != nil {
		return nil, fmt.Errorf("create events.publish_failures counter: %w", err)
	}

	return &Service{
		repo:      p.Repository,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		metrics:   m,
		now:       time.Now,
	}, nil
}

// List returns every order.
func (s *Service) List(ctx context.Context) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, errInvalidated) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("Order not found", errorbank.WithDetail("id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	s.storeInCache(ctx, order)
	return order, nil
}

// Create persists a new order, then publishes its events. A publish failure
// is logged and counted; the committed order is still returned.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.Int64("order.client_id", in.ClientID),
		attribute.Int64("order.product_id", in.ProductID),
	))
	defer span.End()

	if in.TotalAmount.IsNegative() {
		return nil, errorbank.BadRequest("total_amount must not be negative")
	}
	if in.Quantity < 0 {
		return nil, errorbank.BadRequest("quantity must be at least 1")
	}

	now := s.now().UTC()
	order := &entity.Order{
		ClientID:    in.ClientID,
		ProductID:   in.ProductID,
		OrderDate:   entity.Day(now),
		Status:      entity.DefaultStatus,
		TotalAmount: in.TotalAmount,
		Quantity:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.OrderDate != nil {
		order.OrderDate = entity.Day(*in.OrderDate)
	}
	if in.Status != nil {
		order.Status = *in.Status
	}
	if in.Quantity > 0 {
		order.Quantity = in.Quantity
	}

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}
	s.metrics.created.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	s.storeInCache(ctx, order)
	s.publishOrderCreated(ctx, order)
	return order, nil
}

// publishOrderCreated runs detached from request cancellation; the order is
// already committed and the events should still go out.
func (s *Service) publishOrderCreated(ctx context.Context, order *entity.Order) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.OrderCreated(context.WithoutCancel(ctx), order); err != nil {
		s.metrics.publishFailures.Add(ctx, 1)
		s.logger.Error("publish order created events",
			zap.Int64("order_id", order.ID),
			zap.Int64("client_id", order.ClientID),
			zap.Error(err),
		)
	}
}

// Update changes the status and/or total amount of an order.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Update", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if in.TotalAmount != nil && in.TotalAmount.IsNegative() {
		return nil, errorbank.BadRequest("total_amount must not be negative")
	}

	order, err := s.repo.Update(ctx, id, repo.UpdateFields{Status: in.Status, TotalAmount: in.TotalAmount})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("Order not found", errorbank.WithDetail("id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}

	s.invalidate(ctx, id)
	return order, nil
}

// Delete removes a single order.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return errorbank.NotFound("Order not found", errorbank.WithDetail("id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to delete order", errorbank.WithCause(err))
	}

	s.metrics.deleted.Add(ctx, 1)
	s.invalidate(ctx, id)
	return nil
}

// DeleteByClient removes every order of a client and returns how many were
// deleted. Repeating it for the same client deletes nothing.
func (s *Service) DeleteByClient(ctx context.Context, clientID int64) (int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.DeleteByClient", trace.WithAttributes(attribute.Int64("order.client_id", clientID)))
	defer span.End()

	ids, err := s.repo.DeleteByClient(ctx, clientID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return 0, errorbank.Internal("failed to delete client orders", errorbank.WithCause(err), errorbank.WithDetail("client_id", clientID))
	}

	if len(ids) > 0 {
		s.metrics.cascadeDeleted.Add(ctx, int64(len(ids)))
		s.invalidate(ctx, ids...)
	}
	return len(ids), nil
}

// tombstone marks a key whose row changed recently. Fills use SET NX, so a
// read that loaded the row before the change cannot overwrite it.
var tombstone = []byte("\x00invalidated")

var errInvalidated = errors.New("cache entry invalidated")

func cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	raw, err := s.cache.Get(ctx, cacheKey(id))
	if err != nil {
		return nil, err
	}
	if bytes.Equal(raw, tombstone) {
		return nil, errInvalidated
	}
	var order entity.Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) {
	if s.cache == nil || order == nil {
		return
	}
	raw, err := json.Marshal(order)
	if err == nil {
		_, err = s.cache.SetNX(ctx, cacheKey(order.ID), raw, s.cacheTTL)
	}
	if err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, ids ...int64) {
	if s.cache == nil {
		return
	}
	var errs []error
	for _, id := range ids {
		if err := s.cache.Set(ctx, cacheKey(id), tombstone, s.tombstoneTTL()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("orders cache invalidation failed", zap.Int64s("ids", ids), zap.Error(err))
	}
}

func (s *Service) tombstoneTTL() time.Duration {
	if s.cacheTTL > 0 && s.cacheTTL < maxTombstoneTTL {
		return s.cacheTTL
	}
	return maxTombstoneTTL
}

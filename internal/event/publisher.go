package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orders/internal/config"
	"github.com/Additional-Code/orders/internal/entity"
	"github.com/Additional-Code/orders/internal/messaging"
)

var publisherTracer = otel.Tracer("github.com/Additional-Code/orders/event")

// Module provides the event publisher.
var Module = fx.Provide(NewPublisher)

// PublishError reports a message the broker did not accept.
type PublishError struct {
	Exchange string
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Exchange, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Publisher emits domain events onto fan-out exchanges.
type Publisher struct {
	client      messaging.Client
	exchanges   config.Exchanges
	timeout     time.Duration
	useQuantity bool
	logger      *zap.Logger
}

// NewPublisher wires a Publisher from the messaging configuration.
func NewPublisher(client messaging.Client, cfg config.Config, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:      client,
		exchanges:   cfg.Messaging.Exchanges,
		timeout:     cfg.Messaging.PublishTimeout,
		useQuantity: cfg.Messaging.StockDecrementUseQuantity,
		logger:      logger,
	}
}

// OrderCreated publishes the order notification and the stock decrement.
// Both publishes are attempted; failures are joined.
func (p *Publisher) OrderCreated(ctx context.Context, order *entity.Order) error {
	ctx, span := publisherTracer.Start(ctx, "EventPublisher.OrderCreated", trace.WithAttributes(
		attribute.Int64("order.id", order.ID),
	))
	defer span.End()

	quantity := 1
	if p.useQuantity && order.Quantity > 0 {
		quantity = order.Quantity
	}

	key := []byte(strconv.FormatInt(order.ID, 10))
	err := errors.Join(
		p.publish(ctx, p.exchanges.OrderNotifications, key, NewOrderCreated(order)),
		p.publish(ctx, p.exchanges.StockUpdate, key, StockDecrement{ProductID: order.ProductID, Quantity: quantity}),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
	}
	return err
}

// ClientDeleted publishes a client deletion event.
func (p *Publisher) ClientDeleted(ctx context.Context, clientID int64) error {
	ctx, span := publisherTracer.Start(ctx, "EventPublisher.ClientDeleted", trace.WithAttributes(
		attribute.Int64("client.id", clientID),
	))
	defer span.End()

	err := p.publish(ctx, p.exchanges.ClientDeletion, []byte(strconv.FormatInt(clientID, 10)), ClientDeleted{ClientID: &clientID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, exchange string, key []byte, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &PublishError{Exchange: exchange, Err: err}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.client.Publish(ctx, exchange, key, body); err != nil {
		return &PublishError{Exchange: exchange, Err: err}
	}

	p.logger.Debug("event published", zap.String("exchange", exchange), zap.ByteString("key", key))
	return nil
}

package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orders/internal/config"
	"github.com/Additional-Code/orders/internal/event"
	"github.com/Additional-Code/orders/internal/messaging"
	ordersvc "github.com/Additional-Code/orders/internal/service/order"
	"github.com/Additional-Code/orders/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/orders/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		func(s *ordersvc.Service) ClientOrders { return s },
		fx.Annotate(
			NewClientDeletedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// ClientOrders removes the orders owned by a client.
type ClientOrders interface {
	DeleteByClient(ctx context.Context, clientID int64) (int, error)
}

// NewClientDeletedHandler cascades client deletions from the client service
// onto local orders. Malformed events are acknowledged and dropped; store
// failures are returned so the broker redelivers the event.
func NewClientDeletedHandler(orders ClientOrders, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.client_deleted", trace.WithAttributes(
			attribute.String("messaging.exchange", msg.Exchange),
			attribute.String("messaging.message_id", msg.ID),
			attribute.Bool("messaging.redelivered", msg.Redelivered),
		))
		defer span.End()

		var payload event.ClientDeleted
		if err := json.Unmarshal(msg.Body, &payload); err != nil {
			logger.Warn("dropping malformed client deletion event",
				zap.Error(err),
				zap.ByteString("body", msg.Body),
			)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		if payload.ClientID == nil {
			logger.Warn("dropping client deletion event without client_id", zap.ByteString("body", msg.Body))
			span.SetStatus(codes.Error, "missing client_id")
			return nil
		}

		clientID := *payload.ClientID
		span.SetAttributes(attribute.Int64("client.id", clientID))

		deleted, err := orders.DeleteByClient(ctx, clientID)
		if err != nil {
			logger.Error("cascade delete failed; event will be redelivered",
				zap.Int64("client_id", clientID),
				zap.Error(err),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, "cascade delete failed")
			return err
		}

		logger.Info("client orders deleted",
			zap.Int64("client_id", clientID),
			zap.Int("deleted", deleted),
			zap.Bool("redelivered", msg.Redelivered),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Name: "client-deleted",
		Subscription: messaging.Subscription{
			Exchange: cfg.Messaging.Exchanges.ClientDeletion,
			Queue:    cfg.Messaging.ClientDeletionQueue,
		},
		Handler: handler,
	}
}

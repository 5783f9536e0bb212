package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orders/internal/config"
)

// Message represents a message consumed from the bus.
type Message struct {
	Exchange    string
	ID          string
	Key         []byte
	Body        []byte
	Headers     map[string]string
	Time        time.Time
	Redelivered bool
}

// Subscription binds a durable queue to a fan-out exchange. Every
// subscription with a distinct queue receives its own copy of each message.
type Subscription struct {
	Exchange string
	Queue    string
}

// Handler processes an inbound message. A nil return acknowledges the
// message; an error leaves it unacknowledged so the broker redelivers it.
type Handler func(context.Context, Message) error

// Client is the pluggable messaging abstraction.
type Client interface {
	// Publish blocks until the broker has accepted the message.
	Publish(ctx context.Context, exchange string, key []byte, body []byte) error
	// Consume delivers messages one at a time until ctx is cancelled, the
	// connection drops, or the handler fails; it always returns non-nil.
	Consume(ctx context.Context, sub Subscription, handler Handler) error
}

// ErrPublishNacked reports a broker refusing a published message.
var ErrPublishNacked = errors.New("broker rejected message")

// ErrBrokerUnavailable is returned without dialing while a recent connection
// attempt has failed.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// HandlerError wraps a handler failure that ended a consume session.
type HandlerError struct {
	Err error
}

func (e *HandlerError) Error() string { return fmt.Sprintf("message handler failed: %v", e.Err) }

func (e *HandlerError) Unwrap() error { return e.Err }

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// noopClient is used when messaging is disabled.
type noopClient struct{}

func (noopClient) Publish(context.Context, string, []byte, []byte) error { return nil }

func (noopClient) Consume(ctx context.Context, _ Subscription, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")

		return noopClient{}, nil
	}

	switch cfg.Messaging.Driver {
	case "amqp":
		return newAMQPClient(lc, cfg.Messaging.AMQP, cfg.Observability.ServiceName, logger), nil
	case "kafka":
		return newKafkaClient(lc, cfg.Messaging.Kafka, logger), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

// NewNoop returns a client that drops publishes and never delivers.
func NewNoop() Client { return noopClient{} }

package messaging

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orders/internal/config"
)

const (
	exchangeKind = "fanout"
	// redialBackoff is how long publishes fail fast after a failed dial.
	redialBackoff = time.Second
)

// amqpClient implements Client on RabbitMQ fan-out exchanges. Publishing
// shares one confirm-mode channel; each Consume call owns its connection.
type amqpClient struct {
	cfg    config.AMQP
	name   string
	logger *zap.Logger
	// sem serialises access to the publish channel; waiters honour ctx.
	sem     chan struct{}
	conn    *amqp.Connection
	channel *amqp.Channel
	// exchanges already declared on the current publish channel
	declared    map[string]struct{}
	dialErr     error
	redialAfter time.Time
}

func newAMQPClient(lc fx.Lifecycle, cfg config.AMQP, name string, logger *zap.Logger) *amqpClient {
	client := &amqpClient{cfg: cfg, name: name, logger: logger, sem: make(chan struct{}, 1)}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing amqp publisher")

			return client.Close()
		},
	})

	return client
}

func (a *amqpClient) acquire(ctx context.Context) error {
	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		a.release()
		return err
	}
	return nil
}

func (a *amqpClient) release() { <-a.sem }

func (a *amqpClient) dial(ctx context.Context, purpose string) (*amqp.Connection, error) {
	return amqp.DialConfig(a.cfg.URL, amqp.Config{
		Dial:       a.dialer(ctx),
		Heartbeat:  10 * time.Second,
		Properties: amqp.Table{"connection_name": fmt.Sprintf("%s-%s", a.name, purpose)},
	})
}

// dialer connects under ctx and bounds the TLS and AMQP handshake by the
// earlier of the connect timeout and the ctx deadline. The library clears
// the deadline once the connection is open.
func (a *amqpClient) dialer(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: a.cfg.ConnectTimeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline := time.Now().Add(a.cfg.ConnectTimeout)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// publishChannel returns a live confirm-mode channel; callers hold the semaphore.
func (a *amqpClient) publishChannel(ctx context.Context) (*amqp.Channel, error) {
	if a.channel != nil && !a.channel.IsClosed() {
		return a.channel, nil
	}
	if a.conn == nil || a.conn.IsClosed() {
		if time.Now().Before(a.redialAfter) {
			return nil, fmt.Errorf("%w: %v", ErrBrokerUnavailable, a.dialErr)
		}
		conn, err := a.dial(ctx, "publisher")
		if err != nil {
			a.dialErr = err
			a.redialAfter = time.Now().Add(redialBackoff)
			return nil, fmt.Errorf("dial amqp: %w", err)
		}
		a.conn = conn
		a.dialErr = nil
		a.redialAfter = time.Time{}
	}
	ch, err := a.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	a.channel = ch
	a.declared = make(map[string]struct{})
	return ch, nil
}

func (a *amqpClient) resetChannel() {
	if a.channel != nil {
		_ = a.channel.Close()
	}
	a.channel = nil
	a.declared = nil
}

func (a *amqpClient) Publish(ctx context.Context, exchange string, key []byte, body []byte) error {
	if err := a.acquire(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}
	defer a.release()

	ch, err := a.publishChannel(ctx)
	if err != nil {
		return err
	}

	if _, ok := a.declared[exchange]; !ok {
		if err := ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil); err != nil {
			a.resetChannel()
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
		a.declared[exchange] = struct{}{}
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, "", false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: string(key),
		Timestamp:     time.Now().UTC(),
		Body:          body,
	})
	if err != nil {
		a.resetChannel()
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		// The confirm may still arrive; a fresh channel keeps tags consistent.
		a.resetChannel()
		return fmt.Errorf("await confirm from %s: %w", exchange, err)
	}
	if !acked {
		return fmt.Errorf("publish to %s: %w", exchange, ErrPublishNacked)
	}
	return nil
}

func (a *amqpClient) Consume(ctx context.Context, sub Subscription, handler Handler) error {
	conn, err := a.dial(ctx, "consumer")
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(sub.Exchange, exchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", sub.Exchange, err)
	}
	queue, err := ch.QueueDeclare(sub.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", sub.Queue, err)
	}
	if err := ch.QueueBind(queue.Name, "", sub.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue.Name, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	tag := fmt.Sprintf("%s-%s", a.name, uuid.NewString())
	deliveries, err := ch.Consume(queue.Name, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue.Name, err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	a.logger.Info("amqp consumer started",
		zap.String("exchange", sub.Exchange),
		zap.String("queue", queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			_ = ch.Cancel(tag, false)
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return errors.New("amqp connection closed")
			}
			return fmt.Errorf("amqp connection closed: %w", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}

			msg := Message{
				Exchange:    d.Exchange,
				ID:          d.MessageId,
				Key:         []byte(d.CorrelationId),
				Body:        d.Body,
				Headers:     tableToHeaders(d.Headers),
				Time:        d.Timestamp,
				Redelivered: d.Redelivered,
			}

			if err := handler(ctx, msg); err != nil {
				if nackErr := d.Nack(false, true); nackErr != nil {
					a.logger.Warn("nack failed", zap.Error(nackErr), zap.Uint64("delivery_tag", d.DeliveryTag))
				}
				return &HandlerError{Err: err}
			}
			if err := d.Ack(false); err != nil {
				return fmt.Errorf("ack delivery %d: %w", d.DeliveryTag, err)
			}
		}
	}
}

// Close releases the publishing connection.
func (a *amqpClient) Close() error {
	a.sem <- struct{}{}
	defer a.release()

	a.resetChannel()
	if a.conn == nil || a.conn.IsClosed() {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}

func tableToHeaders(table amqp.Table) map[string]string {
	if len(table) == 0 {
		return nil
	}
	out := make(map[string]string, len(table))
	for k, v := range table {
		out[k] = fmt.Sprint(v)
	}
	return out
}

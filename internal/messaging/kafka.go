package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/orders/internal/config"
	"github.com/Additional-Code/orders/internal/logger"
)

const (
	messageIDHeader = "message-id"
	commitTimeout   = 5 * time.Second
)

// kafkaClient implements the Client via kafka-go. Exchanges map to topics
// and queues to consumer groups.
type kafkaClient struct {
	cfg    config.Kafka
	writer *kafka.Writer
	logger *zap.Logger
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Kafka, log *zap.Logger) *kafkaClient {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,
		Logger:                 logger.Printf{Logger: log, Level: zapcore.DebugLevel},
		ErrorLogger:            logger.Printf{Logger: log, Level: zapcore.ErrorLevel},
	}

	client := &kafkaClient{cfg: cfg, writer: writer, logger: log}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing kafka writer")

			return writer.Close()
		},
	})

	return client
}

func (k *kafkaClient) Publish(ctx context.Context, exchange string, key []byte, body []byte) error {
	msg := kafka.Message{
		Topic: exchange,
		Key:   key,
		Value: body,
		Headers: []kafka.Header{
			{Key: messageIDHeader, Value: []byte(uuid.NewString())},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}
	return nil
}

func (k *kafkaClient) Consume(ctx context.Context, sub Subscription, handler Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.cfg.Brokers,
		GroupID:     sub.Queue,
		Topic:       sub.Exchange,
		MinBytes:    k.cfg.MinBytes,
		MaxBytes:    k.cfg.MaxBytes,
		StartOffset: kafka.FirstOffset,
		Dialer: &kafka.Dialer{
			Timeout:  k.cfg.ConnectTimeout,
			ClientID: k.cfg.ClientID,
		},
		Logger:      logger.Printf{Logger: k.logger, Level: zapcore.DebugLevel},
		ErrorLogger: logger.Printf{Logger: k.logger, Level: zapcore.ErrorLevel},
	})
	// Closing the reader drops uncommitted offsets, so a failed message is
	// fetched again by the next session.
	defer reader.Close()

	k.logger.Info("kafka consumer started",
		zap.String("topic", sub.Exchange),
		zap.String("group", sub.Queue),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("fetch from %s: %w", sub.Exchange, err)
		}

		wrapped := Message{
			Exchange: msg.Topic,
			Key:      append([]byte(nil), msg.Key...),
			Body:     append([]byte(nil), msg.Value...),
			Time:     msg.Time,
			Headers: func() map[string]string {
				if len(msg.Headers) == 0 {
					return nil
				}
				m := make(map[string]string, len(msg.Headers))
				for _, h := range msg.Headers {
					m[h.Key] = string(h.Value)
				}
				return m
			}(),
		}
		wrapped.ID = wrapped.Headers[messageIDHeader]

		if err := handler(ctx, wrapped); err != nil {
			k.logger.Error("message handler failed", zap.Error(err), zap.Int64("offset", msg.Offset))

			return &HandlerError{Err: err}
		}

		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		err = reader.CommitMessages(commitCtx, msg)
		cancel()
		if err != nil {
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

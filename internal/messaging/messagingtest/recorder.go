// Package messagingtest provides an in-memory messaging.Client for tests.
package messagingtest

import (
	"context"
	"sync"

	"github.com/Additional-Code/orders/internal/messaging"
)

// Published is a message captured by the Recorder.
type Published struct {
	Exchange string
	Key      []byte
	Body     []byte
}

// Recorder captures publishes and feeds deliveries to consumers. A message
// whose handler fails is queued again, like a broker requeue.
type Recorder struct {
	mu        sync.Mutex
	published []Published
	failures  map[string]error
	inbox     chan messaging.Message
	sessions  int
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{
		failures: make(map[string]error),
		inbox:    make(chan messaging.Message, 64),
	}
}

// FailExchange makes publishes to exchange return err; nil clears it.
func (r *Recorder) FailExchange(exchange string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, exchange)
		return
	}
	r.failures[exchange] = err
}

// Publish records the message unless the exchange is set to fail.
func (r *Recorder) Publish(_ context.Context, exchange string, key []byte, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failures[exchange]; ok {
		return err
	}
	r.published = append(r.published, Published{
		Exchange: exchange,
		Key:      append([]byte(nil), key...),
		Body:     append([]byte(nil), body...),
	})
	return nil
}

// Published returns the captured messages for exchange, or all when empty.
func (r *Recorder) Published(exchange string) []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Published
	for _, p := range r.published {
		if exchange == "" || p.Exchange == exchange {
			out = append(out, p)
		}
	}
	return out
}

// Deliver queues a message for the next consumer.
func (r *Recorder) Deliver(msg messaging.Message) {
	r.inbox <- msg
}

// Sessions reports how many Consume calls have started.
func (r *Recorder) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions
}

// Consume hands queued messages to handler until ctx ends or it fails.
func (r *Recorder) Consume(ctx context.Context, _ messaging.Subscription, handler messaging.Handler) error {
	r.mu.Lock()
	r.sessions++
	r.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-r.inbox:
			if err := handler(ctx, msg); err != nil {
				msg.Redelivered = true
				r.inbox <- msg
				return &messaging.HandlerError{Err: err}
			}
		}
	}
}

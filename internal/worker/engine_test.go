package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/orders/internal/config"
	"github.com/Additional-Code/orders/internal/messaging"
	"github.com/Additional-Code/orders/internal/messaging/messagingtest"
)

var testSubscription = messaging.Subscription{Exchange: "client-deletion", Queue: "orders.client-deletion"}

func engineConfig() config.Config {
	return config.Config{
		Messaging: config.Messaging{
			Enabled: true,
			Workers: config.Worker{
				Enabled:        true,
				RetryBackoff:   5 * time.Millisecond,
				MaxBackoff:     20 * time.Millisecond,
				HandlerTimeout: time.Second,
			},
		},
	}
}

func newTestEngine(rec *messagingtest.Recorder, cfg config.Config, handler messaging.Handler) *Engine {
	return NewEngine(Params{
		Client: rec,
		Logger: zap.NewNop(),
		Config: cfg,
		Registrations: []HandlerRegistration{
			{Name: "test", Subscription: testSubscription, Handler: handler},
		},
	})
}

func stopEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.stop(ctx))
}

func TestEngineDeliversMessages(t *testing.T) {
	rec := messagingtest.New()
	var mu sync.Mutex
	var bodies []string

	e := newTestEngine(rec, engineConfig(), func(_ context.Context, msg messaging.Message) error {
		mu.Lock()
		defer mu.Unlock()
		bodies = append(bodies, string(msg.Body))
		return nil
	})
	require.NoError(t, e.start(context.Background()))
	defer stopEngine(t, e)

	rec.Deliver(messaging.Message{Body: []byte("a")})
	rec.Deliver(messaging.Message{Body: []byte("b")})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bodies) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rec.Sessions())
}

func TestEngineRedeliversAfterHandlerError(t *testing.T) {
	rec := messagingtest.New()
	var attempts atomic.Int32
	var redelivered atomic.Bool

	e := newTestEngine(rec, engineConfig(), func(_ context.Context, msg messaging.Message) error {
		if attempts.Add(1) == 1 {
			return errors.New("database unavailable")
		}
		redelivered.Store(msg.Redelivered)
		return nil
	})
	require.NoError(t, e.start(context.Background()))
	defer stopEngine(t, e)

	rec.Deliver(messaging.Message{Body: []byte(`{"client_id":7}`)})

	assert.Eventually(t, func() bool { return attempts.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, redelivered.Load())
	assert.GreaterOrEqual(t, rec.Sessions(), 2)
}

func TestEngineSurvivesHandlerPanic(t *testing.T) {
	rec := messagingtest.New()
	var attempts atomic.Int32

	e := newTestEngine(rec, engineConfig(), func(context.Context, messaging.Message) error {
		if attempts.Add(1) == 1 {
			panic("boom")
		}
		return nil
	})
	require.NoError(t, e.start(context.Background()))
	defer stopEngine(t, e)

	rec.Deliver(messaging.Message{Body: []byte("x")})

	assert.Eventually(t, func() bool { return attempts.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestEngineStopFinishesInFlightDelivery(t *testing.T) {
	rec := messagingtest.New()
	started := make(chan struct{})
	var handlerCtxErr atomic.Value
	var finished atomic.Bool

	e := newTestEngine(rec, engineConfig(), func(ctx context.Context, _ messaging.Message) error {
		close(started)
		time.Sleep(30 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			handlerCtxErr.Store(err)
		}
		finished.Store(true)
		return nil
	})
	require.NoError(t, e.start(context.Background()))

	rec.Deliver(messaging.Message{Body: []byte("x")})
	<-started

	stopEngine(t, e)
	assert.True(t, finished.Load())
	assert.Nil(t, handlerCtxErr.Load())
}

func TestEngineDisabled(t *testing.T) {
	rec := messagingtest.New()
	cfg := engineConfig()
	cfg.Messaging.Workers.Enabled = false

	e := newTestEngine(rec, cfg, func(context.Context, messaging.Message) error { return nil })
	require.NoError(t, e.start(context.Background()))
	require.NoError(t, e.stop(context.Background()))
	assert.Zero(t, rec.Sessions())
}

func TestNewEngineSkipsIncompleteRegistrations(t *testing.T) {
	e := NewEngine(Params{
		Client: messagingtest.New(),
		Logger: zap.NewNop(),
		Config: engineConfig(),
		Registrations: []HandlerRegistration{
			{Name: "no-queue", Subscription: messaging.Subscription{Exchange: "x"}, Handler: func(context.Context, messaging.Message) error { return nil }},
			{Name: "no-handler", Subscription: testSubscription},
		},
	})
	assert.Empty(t, e.registrations)
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orders/internal/config"
	"github.com/Additional-Code/orders/internal/messaging"
)

// HandlerRegistration binds a subscription to its handler.
type HandlerRegistration struct {
	Name         string
	Subscription messaging.Subscription
	Handler      messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine runs one long-lived consume loop per registration. A loop only
// exits when the engine stops; every failure is retried with backoff.
type Engine struct {
	client         messaging.Client
	logger         *zap.Logger
	enabled        bool
	retryBackoff   time.Duration
	maxBackoff     time.Duration
	handlerTimeout time.Duration
	registrations  []HandlerRegistration
	cancel         context.CancelFunc
	wg             *sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	reg := make([]HandlerRegistration, 0, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Subscription.Exchange == "" || r.Subscription.Queue == "" || r.Handler == nil {
			continue
		}
		reg = append(reg, r)
	}

	workers := p.Config.Messaging.Workers
	return &Engine{
		client:         p.Client,
		logger:         p.Logger,
		enabled:        p.Config.Messaging.Enabled && workers.Enabled,
		retryBackoff:   workers.RetryBackoff,
		maxBackoff:     workers.MaxBackoff,
		handlerTimeout: workers.HandlerTimeout,
		registrations:  reg,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

func (e *Engine) start(ctx context.Context) error {
	if !e.enabled {
		e.logger.Info("worker engine disabled")

		return nil
	}
	if len(e.registrations) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")

		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	for _, reg := range e.registrations {
		reg := reg
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, reg)
		}()
	}

	e.logger.Info("worker engine started", zap.Int("subscriptions", len(e.registrations)))

	return nil
}

// stop cancels the loops and waits for in-flight deliveries to finish.
func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		if e.wg != nil {
			e.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")

		return nil
	}
}

func (e *Engine) consumeLoop(ctx context.Context, reg HandlerRegistration) {
	logger := e.logger.With(
		zap.String("handler", reg.Name),
		zap.String("exchange", reg.Subscription.Exchange),
		zap.String("queue", reg.Subscription.Queue),
	)
	backoff := e.retryBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		processed := false
		handler := e.dispatch(reg, func() { processed = true })
		err := e.client.Consume(ctx, reg.Subscription, handler)

		if ctx.Err() != nil {
			return
		}
		if processed {
			backoff = e.retryBackoff
		}

		var handlerErr *messaging.HandlerError
		if errors.As(err, &handlerErr) {
			logger.Warn("delivery not acknowledged; reconnecting for redelivery", zap.Error(handlerErr.Err), zap.Duration("retry_in", backoff))
		} else {
			logger.Error("consume session ended", zap.Error(err), zap.Duration("retry_in", backoff))
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff *= 2; backoff > e.maxBackoff {
			backoff = e.maxBackoff
		}
	}
}

// dispatch runs the handler on a context that survives engine shutdown, so
// a delivery already in progress completes before its ack.
func (e *Engine) dispatch(reg HandlerRegistration, onSuccess func()) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) (err error) {
		handlerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.handlerTimeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler %s panicked: %v", reg.Name, r)
			}
		}()

		if err = reg.Handler(handlerCtx, msg); err == nil {
			onSuccess()
		}
		return err
	}
}

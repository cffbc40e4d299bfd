package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/config"
	"github.com/Additional-Code/dialtone/internal/messaging"
)

// EventHandler processes one decoded domain event.
type EventHandler func(context.Context, messaging.Event) error

// HandlerRegistration binds an event type to a handler. Several handlers may
// share one event type.
type HandlerRegistration struct {
	EventType string
	Handler   EventHandler
}

// Params collects the engine's dependencies.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Engine runs consumer loops that fan messages out to registered handlers.
type Engine struct {
	client   messaging.Client
	logger   *zap.Logger
	cfg      config.Messaging
	handlers map[string][]EventHandler

	cancel context.CancelFunc
	loops  sync.WaitGroup
}

func NewEngine(p Params) *Engine {
	handlers := make(map[string][]EventHandler)
	for _, r := range p.Registrations {
		if r.EventType != "" && r.Handler != nil {
			handlers[r.EventType] = append(handlers[r.EventType], r.Handler)
		}
	}
	return &Engine{
		client:   p.Client,
		logger:   p.Logger,
		cfg:      p.Config.Messaging,
		handlers: handlers,
	}
}

var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.StartStopHook(engine.start, engine.stop))
	}),
)

// Dispatch decodes msg and runs every handler registered for its type.
// Messages whose event-type header has no handler are skipped undecoded.
// Undecodable messages are dropped; a handler error is returned so the
// client retries the message.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) error {
	if t, ok := msg.Headers[messaging.HeaderEventType]; ok && len(e.handlers[t]) == 0 {
		return nil
	}
	event, err := messaging.DecodeEvent(msg)
	if err != nil {
		e.logger.Error("dropping undecodable message", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}
	handlers := e.handlers[event.Type]
	if len(handlers) == 0 {
		e.logger.Debug("no handler for event", zap.String("type", event.Type))
		return nil
	}

	var errs error
	for _, handle := range handlers {
		errs = errors.Join(errs, handle(ctx, event))
	}
	return errs
}

func (e *Engine) start() {
	switch {
	case !e.cfg.Enabled || !e.cfg.Workers.Enabled:
		e.logger.Info("worker engine disabled")
		return
	case len(e.handlers) == 0:
		e.logger.Info("worker engine has no handlers")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	workers := max(e.cfg.Workers.Concurrency, 1)
	for id := range workers {
		e.loops.Add(1)
		go func() {
			defer e.loops.Done()
			e.consume(ctx, id)
		}()
	}
	e.logger.Info("worker engine started", zap.Int("workers", workers), zap.Int("event_types", len(e.handlers)))
}

// stop cancels the loops and waits for in-flight messages, bounded by ctx.
func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.logger.Info("worker engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consume keeps one consumer loop alive, backing off after client errors.
func (e *Engine) consume(ctx context.Context, id int) {
	backoff := minBackoff
	for ctx.Err() == nil {
		err := e.client.Consume(ctx, func(ctx context.Context, msg messaging.Message) error {
			e.logger.Debug("message received", zap.Int("worker", id), zap.Int64("offset", msg.Offset))
			return e.Dispatch(ctx, msg)
		})
		if err == nil || ctx.Err() != nil {
			return
		}
		e.logger.Error("consumer loop failed", zap.Int("worker", id), zap.Duration("retry_in", backoff), zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

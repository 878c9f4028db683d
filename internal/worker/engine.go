package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/itsmewidii/fitriacookry/internal/config"
	"github.com/itsmewidii/fitriacookry/internal/messaging"
)

var (
	workerTracer = otel.Tracer("github.com/itsmewidii/fitriacookry/worker")
	workerMeter  = otel.Meter("github.com/itsmewidii/fitriacookry/worker")
)

const maxBackoff = 30 * time.Second

// HandlerRegistration binds message topics to handlers.
type HandlerRegistration struct {
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine consumes the order and chat topics and fans every message out to
// the handlers registered for its topic.
type Engine struct {
	client    messaging.Client
	logger    *zap.Logger
	workers   config.Worker
	enabled   bool
	handlers  map[string][]messaging.Handler
	processed metric.Int64Counter
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	handlers := make(map[string][]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			p.Logger.Warn("skipping incomplete worker registration", zap.String("topic", r.Topic))
			continue
		}
		handlers[r.Topic] = append(handlers[r.Topic], r.Handler)
	}

	processed, err := workerMeter.Int64Counter("worker.messages.processed",
		metric.WithDescription("Messages handled by the worker engine, by topic and outcome."))
	if err != nil {
		p.Logger.Warn("worker counter unavailable", zap.Error(err))
	}

	return &Engine{
		client:    p.Client,
		logger:    p.Logger,
		workers:   p.Config.Messaging.Workers,
		enabled:   p.Config.Messaging.Enabled && p.Config.Messaging.Workers.Enabled,
		handlers:  handlers,
		processed: processed,
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

// Topics lists the topics that have at least one handler.
func (e *Engine) Topics() []string {
	topics := make([]string, 0, len(e.handlers))
	for t := range e.handlers {
		topics = append(topics, t)
	}
	return topics
}

func (e *Engine) start(context.Context) error {
	if !e.enabled {
		e.logger.Info("worker engine disabled")
		return nil
	}
	if len(e.handlers) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	concurrency := max(e.workers.Concurrency, 1)

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	for id := 0; id < concurrency; id++ {
		id := id
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, id)
		}()
	}

	e.logger.Info("worker engine started", zap.Int("workers", concurrency), zap.Strings("topics", e.Topics()))
	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
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

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := e.workers.PollInterval
	if backoff <= 0 {
		backoff = time.Second
	}
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			return e.dispatch(msgCtx, workerID, msg)
		})
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Int("worker", workerID), zap.Duration("retry_in", backoff), zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// dispatch runs every handler of the message topic; the first failure stops
// the chain so the message is redelivered.
func (e *Engine) dispatch(ctx context.Context, workerID int, msg messaging.Message) error {
	handlers, ok := e.handlers[msg.Topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		e.count(ctx, msg.Topic, "unhandled")
		return nil
	}

	ctx, span := workerTracer.Start(ctx, "worker.dispatch", trace.WithAttributes(
		attribute.String("messaging.destination", msg.Topic),
		attribute.Int64("messaging.offset", msg.Offset),
		attribute.Int("worker.id", workerID),
	))
	defer span.End()

	e.logger.Debug("processing message", zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset), zap.Int("worker", workerID))

	for i, h := range handlers {
		if err := h(ctx, msg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "handler failed")
			e.count(ctx, msg.Topic, "failed")
			return fmt.Errorf("%s handler %d: %w", msg.Topic, i, err)
		}
	}
	e.count(ctx, msg.Topic, "ok")
	return nil
}

func (e *Engine) count(ctx context.Context, topic, outcome string) {
	if e.processed == nil {
		return
	}
	e.processed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("outcome", outcome),
	))
}

package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/config"
	"github.com/Additional-Code/orderbook/internal/messaging"
)

const maxRestartBackoff = 30 * time.Second

var workerTracer = otel.Tracer("github.com/Additional-Code/orderbook/worker")

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

// Engine runs consumers that hand feed messages to registered handlers.
type Engine struct {
	client        messaging.Client
	logger        *zap.Logger
	cfg           config.Config
	registrations map[string]messaging.Handler
	cancel        context.CancelFunc
	wg            *sync.WaitGroup
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	reg := make(map[string]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		reg[r.Topic] = r.Handler
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:        p.Client,
		logger:        logger.Named("worker"),
		cfg:           p.Config,
		registrations: reg,
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
	if !e.cfg.Messaging.Enabled || !e.cfg.Messaging.Workers.Enabled {
		e.logger.Info("worker engine disabled")
		return nil
	}
	if _, ok := e.registrations[e.client.Topic()]; !ok {
		e.logger.Warn("no handler for subscribed topic; skipping", zap.String("topic", e.client.Topic()))
		return nil
	}

	// Each worker holds its own Consume call, so with kafka every worker is a
	// separate group member and a partition is only ever read by one of them.
	concurrency := max(e.cfg.Messaging.Workers.Concurrency, 1)

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	for i := 0; i < concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	e.logger.Info("worker engine started", zap.Int("workers", concurrency), zap.String("topic", e.client.Topic()))
	return nil
}

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

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := time.Second
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

		e.logger.Error("consume loop error", zap.Error(err), zap.Int("worker", workerID))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		backoff = min(backoff*2, maxRestartBackoff)
	}
}

// dispatch routes msg to the handler registered for its topic. Messages on
// topics nobody handles are acknowledged and skipped.
func (e *Engine) dispatch(ctx context.Context, workerID int, msg messaging.Message) error {
	topic := msg.Topic
	if topic == "" {
		topic = e.client.Topic()
	}
	handler, ok := e.registrations[topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", topic))
		return nil
	}

	ctx, span := workerTracer.Start(ctx, "worker.dispatch", trace.WithAttributes(
		attribute.String("messaging.topic", topic),
		attribute.Int64("messaging.offset", msg.Offset),
		attribute.Int("worker.id", workerID),
	))
	defer span.End()

	e.logger.Debug("processing message", zap.String("topic", topic), zap.Int64("offset", msg.Offset), zap.Int("worker", workerID))

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		return err
	}
	return nil
}

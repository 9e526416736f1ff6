package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/config"
	"github.com/Additional-Code/orderbook/internal/entity"
	"github.com/Additional-Code/orderbook/internal/loader"
	"github.com/Additional-Code/orderbook/internal/messaging"
	"github.com/Additional-Code/orderbook/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/orderbook/worker/feed")

// Module registers the feed consumer with the worker engine.
var Module = fx.Module("worker_feed",
	fx.Provide(
		fx.Annotate(
			NewHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewHandler loads one feed record per message. Records the store cannot
// take right now are redelivered; invalid or conflicting records are logged
// and acknowledged.
func NewHandler(l *loader.Loader, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	logger = logger.Named("feed")

	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.feed.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.String("loader.batch_id", msg.Headers[BatchHeader]),
		))
		defer span.End()

		var rec loader.Record
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			logger.Error("failed to decode feed record", zap.Error(err), zap.Int64("offset", msg.Offset))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return fmt.Errorf("%w: decode feed record: %w", entity.ErrInvalidInput, err)
		}

		orders, err := l.LoadRecord(ctx, rec)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load failed")
			if errors.Is(err, entity.ErrStoreUnavailable) {
				return messaging.Retryable(err)
			}
			logger.Warn("feed record rejected",
				zap.String("customer", rec.Name),
				zap.String("batch_id", msg.Headers[BatchHeader]),
				zap.Error(err),
			)
			return err
		}

		logger.Debug("feed record loaded",
			zap.String("customer", rec.Name),
			zap.Int("orders", orders),
			zap.Int64("offset", msg.Offset),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}

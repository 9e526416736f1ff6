package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/config"
)

const (
	redeliverBase = 500 * time.Millisecond
	redeliverCap  = 30 * time.Second
)

var (
	// ErrDisabled is returned by Publish when no broker is configured.
	ErrDisabled = errors.New("messaging disabled")

	errRedeliver = errors.New("redeliver")
)

// Message is a message published to or consumed from the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes an inbound message. Errors wrapped with Retryable are
// redelivered with backoff; any other error is logged and the message is
// committed.
type Handler func(context.Context, Message) error

// Client is the pluggable messaging abstraction.
type Client interface {
	Publish(ctx context.Context, messages ...Message) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// Retryable marks err as transient so the consumer redelivers the message.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", errRedeliver, err)
}

// noopClient is used when messaging is disabled.
type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, ...Message) error { return ErrDisabled }
func (n noopClient) Consume(ctx context.Context, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (n noopClient) Topic() string { return n.topic }

// groupReader is the part of kafka.Reader the consumer relies on.
type groupReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaClient implements the Client via kafka-go.
type kafkaClient struct {
	writer    *kafka.Writer
	readerCfg kafka.ReaderConfig
	newReader func(kafka.ReaderConfig) groupReader
	topic     string
	logger    *zap.Logger
}

func (k *kafkaClient) Publish(ctx context.Context, messages ...Message) error {
	out := make([]kafka.Message, 0, len(messages))
	for _, m := range messages {
		msg := kafka.Message{Key: m.Key, Value: m.Value}
		for key, value := range m.Headers {
			msg.Headers = append(msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
		}
		out = append(out, msg)
	}
	return k.writer.WriteMessages(ctx, out...)
}

// Consume joins the consumer group with a reader of its own and processes
// its messages one at a time. The group never assigns a partition to two
// readers, so concurrent Consume calls keep each partition in order and
// commit its offsets in sequence.
func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	reader := k.newReader(k.readerCfg)
	defer func() {
		if err := reader.Close(); err != nil {
			k.logger.Warn("closing kafka reader failed", zap.Error(err))
		}
	}()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))

			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if err := Deliver(ctx, handler, wrap(msg), k.logger); err != nil {
			// Only a cancelled context ends delivery; leave the offset uncommitted.
			return err
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

func wrap(msg kafka.Message) Message {
	wrapped := Message{
		Topic:  msg.Topic,
		Key:    append([]byte(nil), msg.Key...),
		Value:  append([]byte(nil), msg.Value...),
		Offset: msg.Offset,
		Time:   msg.Time,
	}
	if len(msg.Headers) > 0 {
		wrapped.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			wrapped.Headers[h.Key] = string(h.Value)
		}
	}
	return wrapped
}

// Deliver runs handler on msg, redelivering with capped exponential backoff
// while it returns a Retryable error. Other handler errors are logged and
// dropped so one bad message cannot stall the partition. Deliver only fails
// when ctx ends.
func Deliver(ctx context.Context, handler Handler, msg Message, logger *zap.Logger) error {
	backoff := retry.WithCappedDuration(redeliverCap, retry.NewExponential(redeliverBase))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, errRedeliver) {
			logger.Warn("message handler failed; redelivering",
				zap.Error(err), zap.Int64("offset", msg.Offset), zap.Int("attempt", attempt))
			return retry.RetryableError(err)
		}
		logger.Error("message handler failed; dropping message",
			zap.Error(err), zap.Int64("offset", msg.Offset))
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")

		return noopClient{topic: cfg.Messaging.Kafka.Topic}, nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if len(cfg.Messaging.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	topic := cfg.Messaging.Kafka.Topic
	logger = logger.Named("kafka").With(zap.String("topic", topic))

	// Records of one customer share a key, so the hash balancer keeps them on
	// one partition and in feed order.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Messaging.Kafka.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger},
	}

	client := &kafkaClient{
		writer: writer,
		readerCfg: kafka.ReaderConfig{
			Brokers:        cfg.Messaging.Kafka.Brokers,
			GroupID:        cfg.Messaging.ConsumerGroup,
			Topic:          topic,
			MinBytes:       cfg.Messaging.Kafka.MinBytes,
			MaxBytes:       cfg.Messaging.Kafka.MaxBytes,
			CommitInterval: cfg.Messaging.Kafka.CommitInterval,
			Dialer: &kafka.Dialer{
				Timeout:  cfg.Messaging.Kafka.ConnectTimeout,
				ClientID: cfg.Messaging.Kafka.ClientID,
			},
		},
		newReader: func(rc kafka.ReaderConfig) groupReader { return kafka.NewReader(rc) },
		topic:     topic,
		logger:    logger,
	}

	// Readers belong to Consume calls and close when their context ends.
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing kafka writer")
			return writer.Close()
		},
	})

	return client, nil
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	k.logger.Sugar().Debugf(msg, args...)
}

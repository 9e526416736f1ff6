package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderbook/internal/loader"
	"github.com/Additional-Code/orderbook/internal/messaging"
)

// BatchHeader carries the id shared by all messages of one publish call.
const BatchHeader = "batch_id"

// Publisher puts feed records on the bus, one message per record.
type Publisher struct {
	client messaging.Client
	logger *zap.Logger
}

// NewPublisher wires a Publisher.
func NewPublisher(client messaging.Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger.Named("feed")}
}

// Publish encodes records and writes them in order. Records are keyed by
// customer so one customer's records stay ordered on a partition.
func (p *Publisher) Publish(ctx context.Context, records []loader.Record) (string, error) {
	batchID := uuid.NewString()
	messages := make([]messaging.Message, 0, len(records))
	for i, rec := range records {
		value, err := json.Marshal(rec)
		if err != nil {
			return "", fmt.Errorf("encode record %d: %w", i, err)
		}
		messages = append(messages, messaging.Message{
			Key:     []byte(rec.Name + "\x00" + rec.Phone),
			Value:   value,
			Headers: map[string]string{BatchHeader: batchID},
		})
	}
	if len(messages) == 0 {
		return batchID, nil
	}
	if err := p.client.Publish(ctx, messages...); err != nil {
		return "", fmt.Errorf("publish feed to %s: %w", p.client.Topic(), err)
	}
	p.logger.Info("feed published",
		zap.String("batch_id", batchID),
		zap.String("topic", p.client.Topic()),
		zap.Int("records", len(messages)),
	)
	return batchID, nil
}

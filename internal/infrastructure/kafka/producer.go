package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
)

const maxPublishRetries = 3

type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(brokers []string, topic string, logger *slog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // same aggregate -> same partition, keeps per-aggregate order
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{writer: writer, logger: logger.With("component", "kafka-producer")}
}

// Publish writes the event keyed by aggregate id, retrying transient broker
// errors with exponential backoff.
func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return backoff.Permanent(err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxPublishRetries),
		ctx,
	)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			p.logger.Warn("publish failed", "key", key, "attempt", attempt, "error", err)
			return err
		}
		return nil
	}, policy)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/ternarybob/arbor"

	"github.com/trogers1052/market-sync/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes sync events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
	logger arbor.ILogger
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string, logger arbor.ILogger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		logger: logger,
	}
}

// Publish writes event keyed by its symbol, or by run ID for run-level events
func (p *Producer) Publish(ctx context.Context, event models.SyncEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	key := event.Symbol
	if key == "" {
		key = event.RunID
	}
	if err := p.publish(ctx, key, event); err != nil {
		return err
	}
	p.logger.Debug().Str("event_type", event.EventType).Str("key", key).Msg("Published sync event")
	return nil
}

func (p *Producer) publish(ctx context.Context, key string, event models.SyncEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

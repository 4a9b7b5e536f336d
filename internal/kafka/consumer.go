package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/ternarybob/arbor"

	"github.com/trogers1052/market-sync/internal/ingest"
	"github.com/trogers1052/market-sync/internal/models"
)

// EntitySyncer runs a sync for a single ticker
type EntitySyncer interface {
	SyncEntity(ctx context.Context, ticker string) ingest.EntityResult
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

// Consumer handles SYNC_REQUESTED events from other services.
// Each request triggers a single-entity sync; storage idempotency makes
// redelivered requests harmless.
type Consumer struct {
	reader messageReader
	syncer EntitySyncer
	logger arbor.ILogger
}

// NewConsumer creates a new Kafka consumer for sync requests
func NewConsumer(brokers []string, topic, groupID string, syncer EntitySyncer, logger arbor.ILogger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		syncer: syncer,
		logger: logger,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().Str("topic", c.reader.Config().Topic).Msg("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return c.reader.Close()
				}
				c.logger.Warn().Err(err).Msg("Error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.Warn().Err(err).Int("partition", msg.Partition).Msg("Error processing message")
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.SyncEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal sync event: %w", err)
	}

	if event.EventType != models.EventSyncRequested {
		c.logger.Debug().Str("event_type", event.EventType).Msg("Ignoring event type")
		return nil
	}

	symbol := strings.TrimSpace(event.Symbol)
	if symbol == "" {
		symbol = strings.TrimSpace(string(msg.Key))
	}
	if symbol == "" {
		return fmt.Errorf("sync request without symbol at offset %d", msg.Offset)
	}

	res := c.syncer.SyncEntity(ctx, symbol)
	if res.State == ingest.StateFailed {
		return fmt.Errorf("sync of %s failed: %s", res.Ticker, res.Error)
	}

	c.logger.Info().
		Str("ticker", res.Ticker).
		Str("state", string(res.State)).
		Int("inserted", res.Inserted).
		Int("filled", res.Filled).
		Msg("Handled sync request")
	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

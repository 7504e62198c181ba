// Package kafka carries search analytics events over segmentio/kafka-go. The
// producer publishes JSON-encoded event batches; the consumer feeds each
// message to a MessageHandler, typically the analytics aggregator.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"github.com/seniorliving/directory-search/pkg/config"
)

// MessageHandler processes one message value.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads a topic as part of the configured consumer group. Analytics
// events are lossy: a message the handler rejects is logged and committed
// so it is never redelivered.
type Consumer struct {
	reader    *kafka.Reader
	handler   MessageHandler
	logger    *slog.Logger
	processed atomic.Int64
	rejected  atomic.Int64
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{
		reader:  r,
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled or the reader is closed.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Info("consumer stopped", "processed", c.processed.Load(), "rejected", c.rejected.Load())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}

		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.rejected.Add(1)
			c.logger.Warn("message rejected",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		} else {
			c.processed.Add(1)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// Stats reports how many messages were handled and rejected.
func (c *Consumer) Stats() (processed, rejected int64) {
	return c.processed.Load(), c.rejected.Load()
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

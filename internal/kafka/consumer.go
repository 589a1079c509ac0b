package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// Message wraps a bus message with the fields services need.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Offset  int64
	Headers []kafka.Header
}

// HandlerFunc processes a single message. Return nil to commit the offset;
// return an error to skip committing so the message is re-delivered.
type HandlerFunc func(ctx context.Context, msg Message) error

// Consumer reads messages from a topic within a consumer group.
type Consumer interface {
	Subscribe(ctx context.Context, handler HandlerFunc) error
	Close() error
}

type consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

// NewConsumer creates a consumer for the given topic and group.
func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger) Consumer {
	return &consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6, // 10 MB
			MaxWait:        500 * time.Millisecond,
			CommitInterval: 0, // manual commit only
			StartOffset:    kafka.FirstOffset,
		}),
		logger: logger,
	}
}

// Subscribe reads messages in a loop until ctx is cancelled. Offsets are
// committed only after the handler returns nil (at-least-once delivery).
func (c *consumer) Subscribe(ctx context.Context, handler HandlerFunc) error {
	for {
		raw, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil // normal shutdown
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}
		c.dispatch(ctx, raw, handler)
	}
}

func (c *consumer) dispatch(ctx context.Context, raw kafka.Message, handler HandlerFunc) {
	// Resume the trace the producer injected into the headers.
	carrier := HeaderCarrier(raw.Headers)
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, &carrier)

	err := handler(msgCtx, Message{
		Topic:   raw.Topic,
		Key:     raw.Key,
		Value:   raw.Value,
		Offset:  raw.Offset,
		Headers: raw.Headers,
	})
	if err != nil {
		// No commit — the message will be re-delivered.
		c.logger.Error("message handler failed, skipping commit",
			slog.String("topic", raw.Topic),
			slog.Int64("offset", raw.Offset),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := c.reader.CommitMessages(ctx, raw); err != nil {
		c.logger.Error("failed to commit kafka offset",
			slog.String("topic", raw.Topic),
			slog.Int64("offset", raw.Offset),
			slog.String("error", err.Error()),
		)
	}
}

func (c *consumer) Close() error {
	return c.reader.Close()
}

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/taskcycle/taskcycle/internal/domain"
	"github.com/taskcycle/taskcycle/internal/kafka"
	"github.com/taskcycle/taskcycle/pkg/telemetry"
)

const defaultPublishTimeout = 5 * time.Second

// Publisher emits envelopes to the bus, best effort. Transport failures are
// logged and swallowed: event delivery loss must never break the scheduling
// or CRUD flow that triggered the event. The durable audit trail is the
// event log's job, not the bus's.
type Publisher struct {
	producer kafka.Producer
	timeout  time.Duration
	logger   *slog.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

func WithPublishTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) { p.timeout = d }
}

// NewPublisher creates a best-effort Publisher over the given producer.
func NewPublisher(producer kafka.Producer, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		producer: producer,
		timeout:  defaultPublishTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends the envelope to the events topic, keyed by task ID so events
// for one task stay ordered within a partition. Never blocks past the
// configured timeout and never returns an error to the caller.
func (p *Publisher) Publish(ctx context.Context, env domain.Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("marshal event envelope",
			slog.String("event_id", env.EventID),
			slog.String("error", err.Error()),
		)
		telemetry.PublisherDroppedTotal.Inc()
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.producer.Publish(pubCtx, Topic, env.Data.TaskID, raw); err != nil {
		p.logger.Error("event publish failed, dropping",
			slog.String("event_id", env.EventID),
			slog.String("event_type", string(env.EventType)),
			slog.String("error", err.Error()),
		)
		telemetry.PublisherDroppedTotal.Inc()
		return
	}

	telemetry.PublisherPublishedTotal.WithLabelValues(string(env.EventType)).Inc()
}

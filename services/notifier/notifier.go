// Package notifier subscribes to the event bus and turns task events into
// user notifications.
package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/taskcycle/taskcycle/internal/domain"
	"github.com/taskcycle/taskcycle/internal/events"
	"github.com/taskcycle/taskcycle/internal/kafka"
	"github.com/taskcycle/taskcycle/internal/notify"
	redisstore "github.com/taskcycle/taskcycle/internal/redis"
	"github.com/taskcycle/taskcycle/pkg/retry"
	"github.com/taskcycle/taskcycle/pkg/telemetry"
)

// DueSoonTrigger runs an immediate due-soon check. Task creation and update
// events trigger one so a task created inside the horizon is noticed without
// waiting for the next scheduled scan.
type DueSoonTrigger interface {
	RunDueSoonCheck(ctx context.Context) (int, error)
}

// Notifier consumes task events and fans each user-facing one out to the
// registered senders.
type Notifier struct {
	consumer   kafka.Consumer
	producer   kafka.Producer
	registry   *notify.Registry
	limiter    redisstore.RateLimiter // nil = disabled
	trigger    DueSoonTrigger         // nil = disabled
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

func WithRetries(n int) Option             { return func(nf *Notifier) { nf.maxRetries = n } }
func WithBaseDelay(d time.Duration) Option { return func(nf *Notifier) { nf.baseDelay = d } }

func WithRateLimiter(l redisstore.RateLimiter) Option {
	return func(nf *Notifier) { nf.limiter = l }
}

func WithDueSoonTrigger(t DueSoonTrigger) Option {
	return func(nf *Notifier) { nf.trigger = t }
}

// NewNotifier constructs a Notifier with the given dependencies and options.
func NewNotifier(
	consumer kafka.Consumer,
	producer kafka.Producer,
	registry *notify.Registry,
	logger *slog.Logger,
	opts ...Option,
) *Notifier {
	nf := &Notifier{
		consumer:   consumer,
		producer:   producer,
		registry:   registry,
		maxRetries: 3,
		baseDelay:  time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(nf)
	}
	return nf
}

// Run starts consuming. Blocks until ctx is cancelled.
func (nf *Notifier) Run(ctx context.Context) error {
	return nf.consumer.Subscribe(ctx, nf.handle)
}

// handle is the bus HandlerFunc. Returning nil commits the offset; returning
// an error leaves it uncommitted for redelivery. Only the due-soon trigger
// path returns errors: notification failures land in the DLQ instead, so one
// undeliverable event cannot wedge the partition.
func (nf *Notifier) handle(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer("notifier").Start(ctx, "notifier.handle")
	defer span.End()

	var env domain.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		nf.logger.Error("malformed event, discarding",
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed event")
		telemetry.NotifierEventsHandled.WithLabelValues("unknown", "malformed").Inc()
		return nil
	}

	span.SetAttributes(
		attribute.String("event.id", env.EventID),
		attribute.String("event.type", string(env.EventType)),
		attribute.String("task.id", env.Data.TaskID),
	)

	log := nf.logger.With(
		slog.String("event_id", env.EventID),
		slog.String("event_type", string(env.EventType)),
		slog.String("task_id", env.Data.TaskID),
	)

	switch env.EventType {
	case domain.EventTaskCreated, domain.EventTaskUpdated:
		// A task may have been created or rescheduled inside the due-soon
		// window; check now instead of waiting for the next scan. An error
		// here skips the commit so the event is retried.
		if nf.trigger != nil {
			if _, err := nf.trigger.RunDueSoonCheck(ctx); err != nil {
				log.Error("triggered due-soon check failed", slog.String("error", err.Error()))
				span.RecordError(err)
				telemetry.NotifierEventsHandled.WithLabelValues(string(env.EventType), "retry").Inc()
				return err
			}
		}
		telemetry.NotifierEventsHandled.WithLabelValues(string(env.EventType), "triggered").Inc()
		return nil

	case domain.EventTaskDueSoon, domain.EventRecurringTaskDue:
		return nf.deliver(ctx, log, env, msg.Value)

	case domain.EventTaskCompleted, domain.EventTaskDeleted:
		telemetry.NotifierEventsHandled.WithLabelValues(string(env.EventType), "ignored").Inc()
		return nil

	default:
		log.Warn("unknown event type, ignoring")
		telemetry.NotifierEventsHandled.WithLabelValues(string(env.EventType), "ignored").Inc()
		return nil
	}
}

// deliver fans the event out to every registered sender, retrying each one
// independently. Senders that exhaust their retries send the raw event to the
// DLQ; the offset is still committed.
func (nf *Notifier) deliver(ctx context.Context, log *slog.Logger, env domain.Envelope, raw []byte) error {
	if nf.limiter != nil {
		allowed, err := nf.limiter.Allow(ctx, env.Data.UserID)
		if err != nil {
			// Allow on limiter failure so a Redis outage never drops notifications.
			log.Error("rate limiter error", slog.String("error", err.Error()))
		} else if !allowed {
			log.Warn("notification rate limit exceeded, dropping",
				slog.String("user_id", env.Data.UserID),
			)
			telemetry.NotifierRateLimited.Inc()
			telemetry.NotifierEventsHandled.WithLabelValues(string(env.EventType), "rate_limited").Inc()
			return nil
		}
	}

	n := notify.FromEnvelope(env)
	failed := false

	for _, sender := range nf.registry.All() {
		sendErr := retry.Do(ctx, retry.Config{
			MaxAttempts: nf.maxRetries + 1,
			BaseDelay:   nf.baseDelay,
			OnRetry: func(attempt int, err error) {
				log.Warn("send attempt failed, retrying",
					slog.String("sender", sender.Name()),
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()),
				)
			},
		}, func() error {
			return sender.Send(ctx, n)
		})
		if sendErr != nil {
			log.Error("sender exhausted retries",
				slog.String("sender", sender.Name()),
				slog.String("error", sendErr.Error()),
			)
			telemetry.NotifierSendFailures.WithLabelValues(sender.Name()).Inc()
			failed = true
		}
	}

	if failed {
		if err := nf.producer.Publish(ctx, events.DLQTopic, env.Data.TaskID, raw); err != nil {
			log.Error("failed to publish to DLQ", slog.String("error", err.Error()))
		}
		telemetry.NotifierEventsHandled.WithLabelValues(string(env.EventType), "dlq").Inc()
		return nil
	}

	telemetry.NotifierEventsHandled.WithLabelValues(string(env.EventType), "delivered").Inc()
	log.Info("notification delivered", slog.String("user_id", env.Data.UserID))
	return nil
}

// Package processor materializes task instances from recurring templates
// whose cursor has arrived.
package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/taskcycle/taskcycle/internal/events"
	"github.com/taskcycle/taskcycle/internal/postgres"
	"github.com/taskcycle/taskcycle/internal/redis"
	"github.com/taskcycle/taskcycle/pkg/telemetry"
)

const defaultBatchSize = 500

// Processor runs the periodic recurring-template scan.
type Processor struct {
	recurring postgres.RecurringTaskRepository
	bus       *events.Publisher
	elector   *redis.LeaderElector // nil = single-instance deployment
	schedule  cron.Schedule
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithBatchSize caps how many templates one run processes.
func WithBatchSize(n int) Option { return func(p *Processor) { p.batchSize = n } }

// WithLeaderElector suppresses duplicate runs across replicas.
func WithLeaderElector(e *redis.LeaderElector) Option {
	return func(p *Processor) { p.elector = e }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option { return func(p *Processor) { p.now = now } }

// NewProcessor constructs a Processor that runs on the given cron schedule.
func NewProcessor(
	recurring postgres.RecurringTaskRepository,
	bus *events.Publisher,
	schedule cron.Schedule,
	logger *slog.Logger,
	opts ...Option,
) *Processor {
	p := &Processor{
		recurring: recurring,
		bus:       bus,
		schedule:  schedule,
		batchSize: defaultBatchSize,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes once immediately, then on every schedule fire until ctx is
// cancelled. The run in progress finishes its current template before
// stopping.
func (p *Processor) Run(ctx context.Context) {
	p.tick(ctx)

	for {
		next := p.schedule.Next(p.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			p.tick(ctx)
		}
	}
}

func (p *Processor) tick(ctx context.Context) {
	if p.elector != nil && !p.elector.AcquireOrRenew(ctx) {
		return
	}
	if _, err := p.RunRecurringProcessing(ctx); err != nil {
		p.logger.Error("recurring processing failed", slog.String("error", err.Error()))
	}
}

// RunRecurringProcessing performs one run: load templates due on or before
// today and materialize each one. The instance insert, cursor advance, and
// audit-log rows commit in a single transaction inside the repository; the
// bus events come back from that transaction and are published here, after
// commit, so the bus never sees an instance that was rolled back.
//
// Per-template failures are counted and skipped; the template stays due and
// is retried on the next run. Returns how many instances were created.
func (p *Processor) RunRecurringProcessing(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("processor").Start(ctx, "processor.recurring_run")
	defer span.End()

	start := time.Now()
	defer func() {
		telemetry.ProcessorRunDuration.Observe(time.Since(start).Seconds())
	}()

	today := midnightUTC(p.now())
	templates, err := p.recurring.ListDue(ctx, today, p.batchSize)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("templates.due", len(templates)))

	created := 0
	for _, rt := range templates {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}

		res, err := p.recurring.Materialize(ctx, rt)
		if err != nil {
			p.logger.Error("materialize failed",
				slog.String("recurring_task_id", rt.ID),
				slog.String("error", err.Error()),
			)
			telemetry.ProcessorItemFailures.Inc()
			continue
		}

		for _, env := range res.Events {
			p.bus.Publish(ctx, env)
		}

		if res.Created {
			created++
			telemetry.ProcessorMaterializedTotal.Inc()
			p.logger.Info("instance materialized",
				slog.String("recurring_task_id", rt.ID),
				slog.String("task_id", res.Task.ID),
				slog.Time("due_date", rt.NextDueAt),
			)
		}

		if !res.Recurring.IsActive {
			telemetry.ProcessorDeactivatedTotal.Inc()
			p.logger.Info("recurring task reached end date, deactivated",
				slog.String("recurring_task_id", rt.ID),
			)
		}
	}

	if len(templates) > 0 {
		p.logger.Info("recurring run complete",
			slog.Int("due", len(templates)),
			slog.Int("created", created),
		)
	}
	return created, nil
}

// midnightUTC truncates a timestamp to its UTC calendar date.
func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

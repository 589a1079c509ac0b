// Package detector scans for tasks entering the due-soon window and emits
// task-due-soon events, flipping each task's notified flag exactly once.
package detector

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/taskcycle/taskcycle/internal/domain"
	"github.com/taskcycle/taskcycle/internal/events"
	"github.com/taskcycle/taskcycle/internal/postgres"
	"github.com/taskcycle/taskcycle/internal/redis"
	"github.com/taskcycle/taskcycle/pkg/telemetry"
)

const (
	defaultHorizon   = 24 * time.Hour
	defaultBatchSize = 500
)

// Detector runs the periodic due-soon scan.
type Detector struct {
	tasks     postgres.TaskRepository
	bus       *events.Publisher
	elector   *redis.LeaderElector // nil = single-instance deployment
	schedule  cron.Schedule
	horizon   time.Duration
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithHorizon sets how far ahead of now a task counts as due soon.
func WithHorizon(d time.Duration) Option { return func(det *Detector) { det.horizon = d } }

// WithBatchSize caps how many tasks one scan processes.
func WithBatchSize(n int) Option { return func(det *Detector) { det.batchSize = n } }

// WithLeaderElector suppresses duplicate scans across replicas.
func WithLeaderElector(e *redis.LeaderElector) Option {
	return func(det *Detector) { det.elector = e }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option { return func(det *Detector) { det.now = now } }

// NewDetector constructs a Detector that scans on the given cron schedule.
func NewDetector(
	tasks postgres.TaskRepository,
	bus *events.Publisher,
	schedule cron.Schedule,
	logger *slog.Logger,
	opts ...Option,
) *Detector {
	d := &Detector{
		tasks:     tasks,
		bus:       bus,
		schedule:  schedule,
		horizon:   defaultHorizon,
		batchSize: defaultBatchSize,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run scans once immediately, then on every schedule fire until ctx is
// cancelled. The scan in progress finishes its current task before stopping.
func (d *Detector) Run(ctx context.Context) {
	d.tick(ctx)

	for {
		next := d.schedule.Next(d.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.tick(ctx)
		}
	}
}

func (d *Detector) tick(ctx context.Context) {
	if d.elector != nil && !d.elector.AcquireOrRenew(ctx) {
		return
	}
	if _, err := d.RunDueSoonCheck(ctx); err != nil {
		d.logger.Error("due-soon scan failed", slog.String("error", err.Error()))
	}
}

// RunDueSoonCheck performs one scan: find unnotified tasks inside the horizon,
// publish a task-due-soon event for each, then mark it notified. Publishing
// happens before the flag flips, so a crash in between re-delivers the event
// on the next scan rather than silently dropping it.
//
// Per-task failures are counted and skipped; one bad row never starves the
// rest of the batch. Returns how many tasks were marked notified.
func (d *Detector) RunDueSoonCheck(ctx context.Context) (int, error) {
	ctx, span := otel.Tracer("detector").Start(ctx, "detector.due_soon_check")
	defer span.End()

	start := time.Now()
	defer func() {
		telemetry.DetectorRunDuration.Observe(time.Since(start).Seconds())
	}()

	boundary := d.now().UTC().Add(d.horizon)
	tasks, err := d.tasks.ListDueSoon(ctx, boundary, d.batchSize)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("tasks.candidates", len(tasks)))

	notified := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			return notified, ctx.Err()
		}

		env := events.New(domain.EventTaskDueSoon, events.TaskData(task))
		d.bus.Publish(ctx, env)

		if err := d.tasks.MarkNotified(ctx, task.ID, env); err != nil {
			d.logger.Error("mark notified failed",
				slog.String("task_id", task.ID),
				slog.String("error", err.Error()),
			)
			telemetry.DetectorItemFailures.Inc()
			continue
		}

		notified++
		telemetry.DetectorTasksNotified.Inc()
		d.logger.Info("task due soon",
			slog.String("task_id", task.ID),
			slog.String("event_id", env.EventID),
		)
	}

	if notified > 0 {
		d.logger.Info("due-soon scan complete",
			slog.Int("notified", notified),
			slog.Int("candidates", len(tasks)),
		)
	}
	return notified, nil
}

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── API ─────────────────────────────────────────────────────────────────────

	APIRecurringCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskcycle",
		Subsystem: "api",
		Name:      "recurring_tasks_created_total",
		Help:      "Total recurring task templates created through the API.",
	})

	// ─── Event publisher ─────────────────────────────────────────────────────────

	PublisherPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskcycle",
		Subsystem: "publisher",
		Name:      "events_published_total",
		Help:      "Total events published to the bus, labelled by event type.",
	}, []string{"event_type"})

	PublisherDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskcycle",
		Subsystem: "publisher",
		Name:      "events_dropped_total",
		Help:      "Total events dropped by the best-effort publisher (transport or marshal failure).",
	})

	// ─── Due-soon detector ───────────────────────────────────────────────────────

	DetectorTasksNotified = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskcycle",
		Subsystem: "detector",
		Name:      "tasks_notified_total",
		Help:      "Total tasks marked notified by the due-soon detector.",
	})

	DetectorItemFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskcycle",
		Subsystem: "detector",
		Name:      "item_failures_total",
		Help:      "Per-task failures during due-soon runs; the task stays due for retry.",
	})

	DetectorRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "taskcycle",
		Subsystem: "detector",
		Name:      "run_duration_seconds",
		Help:      "Duration of one due-soon scan-and-notify run.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	// ─── Recurring processor ─────────────────────────────────────────────────────

	ProcessorMaterializedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskcycle",
		Subsystem: "processor",
		Name:      "instances_materialized_total",
		Help:      "Total task instances created from recurring templates.",
	})

	ProcessorDeactivatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskcycle",
		Subsystem: "processor",
		Name:      "templates_deactivated_total",
		Help:      "Total recurring templates deactivated after reaching their end date.",
	})

	ProcessorItemFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskcycle",
		Subsystem: "processor",
		Name:      "item_failures_total",
		Help:      "Per-template materialization failures; the template stays due for retry.",
	})

	ProcessorRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "taskcycle",
		Subsystem: "processor",
		Name:      "run_duration_seconds",
		Help:      "Duration of one recurring-processing run.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	// ─── Notifier ────────────────────────────────────────────────────────────────

	NotifierEventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskcycle",
		Subsystem: "notifier",
		Name:      "events_handled_total",
		Help:      "Total bus events handled, labelled by event type and outcome.",
	}, []string{"event_type", "outcome"})

	NotifierSendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskcycle",
		Subsystem: "notifier",
		Name:      "send_failures_total",
		Help:      "Notification sends that exhausted retries, labelled by sender.",
	}, []string{"sender"})

	NotifierRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskcycle",
		Subsystem: "notifier",
		Name:      "rate_limited_total",
		Help:      "Notifications dropped by the per-user rate limiter.",
	})
)

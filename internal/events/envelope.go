// Package events builds, publishes, and durably logs domain event envelopes.
//
// Two deliberately different reliability contracts live here: the Publisher
// is best-effort fire-and-forget over the bus, while event-log appends (see
// internal/postgres) are transactional writes that abort the caller's unit of
// work on failure.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskcycle/taskcycle/internal/domain"
)

// Topic is the bus topic every domain event is published to.
const Topic = "task.events"

// DLQTopic receives events the notifier gave up on after retries.
const DLQTopic = "task.events.dlq"

// New builds an envelope with a fresh event ID and a UTC timestamp.
func New(eventType domain.EventType, data domain.EventData) domain.Envelope {
	return domain.Envelope{
		EventID:        uuid.New().String(),
		EventType:      eventType,
		EventTimestamp: time.Now().UTC(),
		Data:           data,
	}
}

// TaskData extracts the envelope payload fields from a task instance.
func TaskData(t *domain.Task) domain.EventData {
	return domain.EventData{
		TaskID:          t.ID,
		UserID:          t.UserID,
		Title:           t.Title,
		DueDate:         DateString(t.DueDate),
		RecurringTaskID: t.RecurringTaskID,
	}
}

// DateString formats a calendar date for the envelope, or nil.
func DateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

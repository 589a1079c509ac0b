package domain

import "time"

// EventType identifies a task lifecycle event.
type EventType string

const (
	EventTaskCreated      EventType = "task-created"
	EventTaskUpdated      EventType = "task-updated"
	EventTaskCompleted    EventType = "task-completed"
	EventTaskDeleted      EventType = "task-deleted"
	EventTaskDueSoon      EventType = "task-due-soon"
	EventRecurringTaskDue EventType = "recurring-task-due"
)

// Valid returns true if t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventTaskCreated, EventTaskUpdated, EventTaskCompleted,
		EventTaskDeleted, EventTaskDueSoon, EventRecurringTaskDue:
		return true
	}
	return false
}

// EventData is the type-agnostic payload carried by every event.
// DueDate is a calendar date string (2006-01-02) or nil.
type EventData struct {
	TaskID          string  `json:"task_id"`
	UserID          string  `json:"user_id"`
	Title           string  `json:"title"`
	DueDate         *string `json:"due_date"`
	RecurringTaskID *string `json:"recurring_task_id"`
}

// Envelope is the wire and audit-log representation of a domain event.
// Published to the bus and appended to task_event_log identically.
type Envelope struct {
	EventID        string    `json:"event_id"`
	EventType      EventType `json:"event_type"`
	EventTimestamp time.Time `json:"event_timestamp"`
	Data           EventData `json:"data"`
}

// EventLogEntry is one append-only row in task_event_log.
type EventLogEntry struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	EventType EventType `json:"event_type"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

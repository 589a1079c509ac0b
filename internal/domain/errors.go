package domain

import "fmt"

// ValidationError rejects bad input at creation/update time, before anything
// enters the scheduler.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidRecurrenceKindError is returned for a kind outside the four-value set.
type InvalidRecurrenceKindError struct {
	Kind string
}

func (e *InvalidRecurrenceKindError) Error() string {
	return fmt.Sprintf("invalid recurrence kind %q", e.Kind)
}

// InvalidIntervalError is returned when a recurrence interval is below 1.
type InvalidIntervalError struct {
	Interval int
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("recurrence interval must be >= 1, got %d", e.Interval)
}

// RecurrenceCatchUpExceededError is returned when resuming a paused template
// whose cursor has fallen so far behind that advancing it to today would take
// more steps than the configured cap. Surfaced to the caller for manual
// intervention, never retried automatically.
type RecurrenceCatchUpExceededError struct {
	RecurringTaskID string
	MaxSteps        int
}

func (e *RecurrenceCatchUpExceededError) Error() string {
	return fmt.Sprintf("recurring task %s: catch-up exceeded %d steps", e.RecurringTaskID, e.MaxSteps)
}

// RecurringTaskNotFoundError is returned when a recurring task ID does not exist.
type RecurringTaskNotFoundError struct {
	ID string
}

func (e *RecurringTaskNotFoundError) Error() string {
	return fmt.Sprintf("recurring task not found: %s", e.ID)
}

// TaskNotFoundError is returned when a task ID does not exist.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

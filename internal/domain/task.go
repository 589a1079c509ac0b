package domain

import "time"

// Task is a concrete task instance. Plain-task CRUD is owned by the external
// API surface; this core only creates instances from recurring templates and
// flips the Notified flag during due-soon detection.
type Task struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Priority        int        `json:"priority"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	Completed       bool       `json:"completed"`
	Notified        bool       `json:"notified"`
	RecurringTaskID *string    `json:"recurring_task_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

package domain

import "time"

// RecurrenceKind is the unit a recurrence interval is counted in.
type RecurrenceKind string

const (
	KindDaily   RecurrenceKind = "daily"
	KindWeekly  RecurrenceKind = "weekly"
	KindMonthly RecurrenceKind = "monthly"
	KindYearly  RecurrenceKind = "yearly"
)

// Valid returns true if k is one of the four supported kinds.
func (k RecurrenceKind) Valid() bool {
	switch k {
	case KindDaily, KindWeekly, KindMonthly, KindYearly:
		return true
	}
	return false
}

// RecurringTask is a template that spawns task instances on a schedule.
// NextDueAt is the cursor: the due date of the next instance to create.
type RecurringTask struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Priority      int            `json:"priority"`
	Kind          RecurrenceKind `json:"recurrence_kind"`
	Interval      int            `json:"recurrence_interval"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       *time.Time     `json:"end_date,omitempty"`
	LastCreatedAt *time.Time     `json:"last_created_at,omitempty"`
	NextDueAt     time.Time      `json:"next_due_at"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// AdvanceCursor decides how the cursor moves after an instance is created for
// the current NextDueAt. candidate is the computed next occurrence. When
// candidate lands past the end date the template deactivates and the cursor
// stays on the last in-range due date.
func (rt *RecurringTask) AdvanceCursor(candidate time.Time) (next time.Time, active bool) {
	if rt.EndDate != nil && candidate.After(*rt.EndDate) {
		return rt.NextDueAt, false
	}
	return candidate, true
}

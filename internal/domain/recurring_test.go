package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskcycle/taskcycle/internal/domain"
)

func TestRecurrenceKind_Valid(t *testing.T) {
	for _, k := range []domain.RecurrenceKind{
		domain.KindDaily, domain.KindWeekly, domain.KindMonthly, domain.KindYearly,
	} {
		t.Run(string(k), func(t *testing.T) {
			assert.True(t, k.Valid())
		})
	}
	assert.False(t, domain.RecurrenceKind("hourly").Valid())
	assert.False(t, domain.RecurrenceKind("").Valid())
}

func TestAdvanceCursor_NoEndDate(t *testing.T) {
	rt := &domain.RecurringTask{
		NextDueAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	candidate := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	next, active := rt.AdvanceCursor(candidate)
	assert.Equal(t, candidate, next)
	assert.True(t, active)
}

func TestAdvanceCursor_CandidateWithinEndDate(t *testing.T) {
	end := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	rt := &domain.RecurringTask{
		NextDueAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   &end,
	}

	next, active := rt.AdvanceCursor(end) // candidate == end_date is still allowed
	assert.Equal(t, end, next)
	assert.True(t, active)
}

func TestAdvanceCursor_CandidatePastEndDate_Deactivates(t *testing.T) {
	end := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	last := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	rt := &domain.RecurringTask{NextDueAt: last, EndDate: &end}

	next, active := rt.AdvanceCursor(time.Date(2025, 3, 29, 0, 0, 0, 0, time.UTC))
	assert.False(t, active)
	assert.Equal(t, last, next, "cursor must stay on the last due date for inspection")
}

func TestEventType_Valid(t *testing.T) {
	for _, et := range []domain.EventType{
		domain.EventTaskCreated, domain.EventTaskUpdated, domain.EventTaskCompleted,
		domain.EventTaskDeleted, domain.EventTaskDueSoon, domain.EventRecurringTaskDue,
	} {
		t.Run(string(et), func(t *testing.T) {
			assert.True(t, et.Valid())
		})
	}
	assert.False(t, domain.EventType("task-archived").Valid())
}

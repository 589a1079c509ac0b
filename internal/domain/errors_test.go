package domain_test

import (
	"strings"
	"testing"

	"github.com/taskcycle/taskcycle/internal/domain"
)

func TestValidationError(t *testing.T) {
	err := &domain.ValidationError{Field: "end_date", Reason: "must not precede start_date"}
	if !strings.Contains(err.Error(), "end_date") {
		t.Errorf("error message should contain the field name, got: %q", err.Error())
	}
}

func TestInvalidRecurrenceKindError(t *testing.T) {
	err := &domain.InvalidRecurrenceKindError{Kind: "fortnightly"}
	if !strings.Contains(err.Error(), "fortnightly") {
		t.Errorf("error message should contain the kind, got: %q", err.Error())
	}
}

func TestInvalidIntervalError(t *testing.T) {
	err := &domain.InvalidIntervalError{Interval: -3}
	if !strings.Contains(err.Error(), "-3") {
		t.Errorf("error message should contain the interval, got: %q", err.Error())
	}
}

func TestRecurrenceCatchUpExceededError(t *testing.T) {
	err := &domain.RecurrenceCatchUpExceededError{RecurringTaskID: "rt-1", MaxSteps: 1000}
	msg := err.Error()
	if !strings.Contains(msg, "rt-1") {
		t.Errorf("error message should contain the recurring task ID, got: %q", msg)
	}
	if !strings.Contains(msg, "1000") {
		t.Errorf("error message should contain the cap, got: %q", msg)
	}
}

func TestNotFoundErrors(t *testing.T) {
	if got := (&domain.RecurringTaskNotFoundError{ID: "rt-9"}).Error(); !strings.Contains(got, "rt-9") {
		t.Errorf("error message should contain the ID, got: %q", got)
	}
	if got := (&domain.TaskNotFoundError{TaskID: "t-9"}).Error(); !strings.Contains(got, "t-9") {
		t.Errorf("error message should contain the task ID, got: %q", got)
	}
}

func TestAllErrorTypesImplementError(t *testing.T) {
	// Compile-time interface checks via assignment to error variables.
	var _ error = &domain.ValidationError{}
	var _ error = &domain.InvalidRecurrenceKindError{}
	var _ error = &domain.InvalidIntervalError{}
	var _ error = &domain.RecurrenceCatchUpExceededError{}
	var _ error = &domain.RecurringTaskNotFoundError{}
	var _ error = &domain.TaskNotFoundError{}
}

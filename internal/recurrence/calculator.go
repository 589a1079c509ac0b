// Package recurrence computes occurrence dates for recurring task templates.
// All functions are pure: no I/O, no clocks, deterministic for a given input.
package recurrence

import (
	"time"

	"github.com/taskcycle/taskcycle/internal/domain"
)

// Next returns the occurrence that follows current for the given kind and
// interval ("every N units").
//
// Monthly and yearly additions clamp the day-of-month to the last valid day
// of the target month: Jan 31 + 1 month is Feb 28 (or Feb 29 in a leap year),
// never a roll-over into March. Feb 29 + 1 year is Feb 28 on non-leap targets.
func Next(current time.Time, kind domain.RecurrenceKind, interval int) (time.Time, error) {
	if interval < 1 {
		return time.Time{}, &domain.InvalidIntervalError{Interval: interval}
	}

	switch kind {
	case domain.KindDaily:
		return current.AddDate(0, 0, interval), nil
	case domain.KindWeekly:
		return current.AddDate(0, 0, interval*7), nil
	case domain.KindMonthly:
		return addMonthsClamped(current, interval), nil
	case domain.KindYearly:
		// Year addition is month addition in disguise; the same clamp
		// handles Feb 29 on non-leap targets.
		return addMonthsClamped(current, interval*12), nil
	default:
		return time.Time{}, &domain.InvalidRecurrenceKindError{Kind: string(kind)}
	}
}

// CatchUp advances next until it is >= today, taking at most maxSteps
// calculator steps. Used on resume so a long-paused template produces a
// single upcoming occurrence instead of a backlog flood.
func CatchUp(next time.Time, kind domain.RecurrenceKind, interval int, today time.Time, maxSteps int) (time.Time, error) {
	steps := 0
	for next.Before(today) {
		if steps >= maxSteps {
			return time.Time{}, &domain.RecurrenceCatchUpExceededError{MaxSteps: maxSteps}
		}
		advanced, err := Next(next, kind, interval)
		if err != nil {
			return time.Time{}, err
		}
		next = advanced
		steps++
	}
	return next, nil
}

// addMonthsClamped adds months calendar months, clamping the day-of-month to
// the last valid day of the target month. time.AddDate is unsuitable here
// because it normalizes overflow (Jan 31 + 1 month = Mar 3).
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	// First of the target month; time.Date normalizes month overflow.
	first := time.Date(y, m+time.Month(months), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	if last := daysInMonth(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

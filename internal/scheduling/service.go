// Package scheduling owns the recurring-template lifecycle: creation,
// pause/resume, and the catch-up rule applied when a long-paused template
// comes back.
package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskcycle/taskcycle/internal/domain"
	"github.com/taskcycle/taskcycle/internal/postgres"
	"github.com/taskcycle/taskcycle/internal/recurrence"
)

const defaultCatchUpMax = 1000

// CreateInput carries the fields needed to create a recurring template.
type CreateInput struct {
	UserID      string
	Title       string
	Description string
	Priority    int
	Kind        domain.RecurrenceKind
	Interval    int
	StartDate   time.Time
	EndDate     *time.Time
}

// RecurringService validates and manages recurring task templates.
type RecurringService struct {
	repo       postgres.RecurringTaskRepository
	catchUpMax int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a RecurringService.
type Option func(*RecurringService)

// WithCatchUpLimit caps how many occurrences Resume may skip over.
func WithCatchUpLimit(n int) Option { return func(s *RecurringService) { s.catchUpMax = n } }

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option { return func(s *RecurringService) { s.now = now } }

// NewRecurringService constructs a RecurringService over the given repository.
func NewRecurringService(repo postgres.RecurringTaskRepository, logger *slog.Logger, opts ...Option) *RecurringService {
	s := &RecurringService{
		repo:       repo,
		catchUpMax: defaultCatchUpMax,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the input and persists a new active template with its
// cursor on the start date.
func (s *RecurringService) Create(ctx context.Context, in CreateInput) (*domain.RecurringTask, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, &domain.ValidationError{Field: "user_id", Reason: "required"}
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, &domain.ValidationError{Field: "title", Reason: "required"}
	}
	if !in.Kind.Valid() {
		return nil, &domain.InvalidRecurrenceKindError{Kind: string(in.Kind)}
	}
	if in.Interval < 1 {
		return nil, &domain.InvalidIntervalError{Interval: in.Interval}
	}
	if in.StartDate.IsZero() {
		return nil, &domain.ValidationError{Field: "start_date", Reason: "required"}
	}

	start := midnightUTC(in.StartDate)
	var end *time.Time
	if in.EndDate != nil {
		e := midnightUTC(*in.EndDate)
		if e.Before(start) {
			return nil, &domain.ValidationError{Field: "end_date", Reason: "must not precede start_date"}
		}
		end = &e
	}

	now := s.now().UTC()
	rt := &domain.RecurringTask{
		ID:          uuid.New().String(),
		UserID:      in.UserID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Priority:    in.Priority,
		Kind:        in.Kind,
		Interval:    in.Interval,
		StartDate:   start,
		EndDate:     end,
		NextDueAt:   start, // first occurrence is the start date itself
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, rt); err != nil {
		return nil, err
	}

	s.logger.Info("recurring task created",
		slog.String("recurring_task_id", rt.ID),
		slog.String("user_id", rt.UserID),
		slog.String("kind", string(rt.Kind)),
		slog.Int("interval", rt.Interval),
	)
	return rt, nil
}

// Get returns a single template by ID.
func (s *RecurringService) Get(ctx context.Context, id string) (*domain.RecurringTask, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByUser returns a user's templates, newest first.
func (s *RecurringService) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.RecurringTask, error) {
	return s.repo.ListByUser(ctx, userID, limit)
}

// Update changes the descriptive fields of a template. Schedule fields are
// immutable; a changed schedule is a new template.
func (s *RecurringService) Update(ctx context.Context, id, title, description string, priority int) error {
	if strings.TrimSpace(title) == "" {
		return &domain.ValidationError{Field: "title", Reason: "required"}
	}
	return s.repo.UpdateDetails(ctx, id, strings.TrimSpace(title), description, priority)
}

// Pause deactivates a template. The cursor keeps its position so Resume can
// pick up from where scheduling stopped.
func (s *RecurringService) Pause(ctx context.Context, id string) error {
	return s.repo.SetActive(ctx, id, false)
}

// Resume reactivates a paused template. A cursor that fell behind while
// paused is advanced to the first occurrence on or after today, so the user
// gets one upcoming instance instead of a backlog flood. The advance is
// bounded: past the cap a RecurrenceCatchUpExceededError is returned and the
// template stays paused.
func (s *RecurringService) Resume(ctx context.Context, id string) (*domain.RecurringTask, error) {
	rt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	today := midnightUTC(s.now())
	next := rt.NextDueAt
	if next.Before(today) {
		caughtUp, err := recurrence.CatchUp(next, rt.Kind, rt.Interval, today, s.catchUpMax)
		if err != nil {
			var exceeded *domain.RecurrenceCatchUpExceededError
			if errors.As(err, &exceeded) {
				exceeded.RecurringTaskID = rt.ID
			}
			return nil, err
		}
		next = caughtUp
	}

	if rt.EndDate != nil && next.After(*rt.EndDate) {
		// The schedule ran out while paused; resuming would never fire.
		return nil, &domain.ValidationError{Field: "end_date", Reason: "schedule ended before today"}
	}

	if err := s.repo.Reactivate(ctx, id, next); err != nil {
		return nil, err
	}

	rt.IsActive = true
	rt.NextDueAt = next
	s.logger.Info("recurring task resumed",
		slog.String("recurring_task_id", rt.ID),
		slog.Time("next_due_at", next),
	)
	return rt, nil
}

// Delete removes a template. Instances already materialized keep living.
func (s *RecurringService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// midnightUTC truncates a timestamp to its UTC calendar date.
func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package scheduling

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcycle/taskcycle/internal/domain"
	"github.com/taskcycle/taskcycle/internal/postgres"
)

// ── fakes ────────────────────────────────────────────────────────────────────

type fakeRecurringRepo struct {
	tasks       map[string]*domain.RecurringTask
	reactivated map[string]time.Time
	createErr   error
}

func newFakeRecurringRepo() *fakeRecurringRepo {
	return &fakeRecurringRepo{
		tasks:       make(map[string]*domain.RecurringTask),
		reactivated: make(map[string]time.Time),
	}
}

func (f *fakeRecurringRepo) Create(_ context.Context, rt *domain.RecurringTask) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *rt
	f.tasks[rt.ID] = &cp
	return nil
}

func (f *fakeRecurringRepo) GetByID(_ context.Context, id string) (*domain.RecurringTask, error) {
	rt, ok := f.tasks[id]
	if !ok {
		return nil, &domain.RecurringTaskNotFoundError{ID: id}
	}
	cp := *rt
	return &cp, nil
}

func (f *fakeRecurringRepo) ListByUser(_ context.Context, userID string, _ int) ([]*domain.RecurringTask, error) {
	var out []*domain.RecurringTask
	for _, rt := range f.tasks {
		if rt.UserID == userID {
			cp := *rt
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRecurringRepo) ListDue(_ context.Context, _ time.Time, _ int) ([]*domain.RecurringTask, error) {
	return nil, nil
}

func (f *fakeRecurringRepo) UpdateDetails(_ context.Context, id, title, description string, priority int) error {
	rt, ok := f.tasks[id]
	if !ok {
		return &domain.RecurringTaskNotFoundError{ID: id}
	}
	rt.Title, rt.Description, rt.Priority = title, description, priority
	return nil
}

func (f *fakeRecurringRepo) SetActive(_ context.Context, id string, active bool) error {
	rt, ok := f.tasks[id]
	if !ok {
		return &domain.RecurringTaskNotFoundError{ID: id}
	}
	rt.IsActive = active
	return nil
}

func (f *fakeRecurringRepo) Reactivate(_ context.Context, id string, nextDueAt time.Time) error {
	rt, ok := f.tasks[id]
	if !ok {
		return &domain.RecurringTaskNotFoundError{ID: id}
	}
	rt.IsActive = true
	rt.NextDueAt = nextDueAt
	f.reactivated[id] = nextDueAt
	return nil
}

func (f *fakeRecurringRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return &domain.RecurringTaskNotFoundError{ID: id}
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeRecurringRepo) Materialize(_ context.Context, _ *domain.RecurringTask) (*postgres.MaterializeResult, error) {
	return nil, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(repo *fakeRecurringRepo, opts ...Option) *RecurringService {
	return NewRecurringService(repo, slog.Default(), opts...)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestCreate_SetsCursorToStartDate(t *testing.T) {
	repo := newFakeRecurringRepo()
	svc := newTestService(repo)

	rt, err := svc.Create(context.Background(), CreateInput{
		UserID:    "user-1",
		Title:     "water the plants",
		Kind:      domain.KindDaily,
		Interval:  2,
		StartDate: time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, date(2025, 6, 1), rt.NextDueAt, "cursor starts on the start date at UTC midnight")
	assert.True(t, rt.IsActive)
	assert.NotEmpty(t, rt.ID)
	require.Contains(t, repo.tasks, rt.ID)
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	svc := newTestService(newFakeRecurringRepo())
	valid := CreateInput{
		UserID:    "user-1",
		Title:     "t",
		Kind:      domain.KindWeekly,
		Interval:  1,
		StartDate: date(2025, 6, 1),
	}

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing user", func(in *CreateInput) { in.UserID = " " }},
		{"missing title", func(in *CreateInput) { in.Title = "" }},
		{"bad kind", func(in *CreateInput) { in.Kind = "hourly" }},
		{"zero interval", func(in *CreateInput) { in.Interval = 0 }},
		{"negative interval", func(in *CreateInput) { in.Interval = -3 }},
		{"zero start date", func(in *CreateInput) { in.StartDate = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := svc.Create(context.Background(), in)
			require.Error(t, err)
		})
	}
}

func TestCreate_EndDateBeforeStartDate(t *testing.T) {
	svc := newTestService(newFakeRecurringRepo())
	end := date(2025, 5, 1)

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:    "user-1",
		Title:     "t",
		Kind:      domain.KindDaily,
		Interval:  1,
		StartDate: date(2025, 6, 1),
		EndDate:   &end,
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end_date", verr.Field)
}

func TestPause_Deactivates(t *testing.T) {
	repo := newFakeRecurringRepo()
	svc := newTestService(repo)

	rt, err := svc.Create(context.Background(), CreateInput{
		UserID: "user-1", Title: "t", Kind: domain.KindDaily, Interval: 1,
		StartDate: date(2025, 6, 1),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Pause(context.Background(), rt.ID))
	assert.False(t, repo.tasks[rt.ID].IsActive)
	assert.Equal(t, rt.NextDueAt, repo.tasks[rt.ID].NextDueAt, "pause must not move the cursor")
}

func TestResume_CursorCurrent_NoCatchUp(t *testing.T) {
	repo := newFakeRecurringRepo()
	today := date(2025, 6, 10)
	svc := newTestService(repo, WithClock(fixedClock(today)))

	repo.tasks["rt-1"] = &domain.RecurringTask{
		ID: "rt-1", UserID: "u", Title: "t",
		Kind: domain.KindDaily, Interval: 1,
		NextDueAt: date(2025, 6, 15), IsActive: false,
	}

	rt, err := svc.Resume(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, date(2025, 6, 15), rt.NextDueAt, "future cursor stays put")
	assert.True(t, rt.IsActive)
}

func TestResume_StaleCursor_CatchesUpToToday(t *testing.T) {
	repo := newFakeRecurringRepo()
	today := date(2025, 6, 10)
	svc := newTestService(repo, WithClock(fixedClock(today)))

	// Paused with the cursor three weeks behind; weekly interval.
	repo.tasks["rt-1"] = &domain.RecurringTask{
		ID: "rt-1", UserID: "u", Title: "t",
		Kind: domain.KindWeekly, Interval: 1,
		NextDueAt: date(2025, 5, 20), IsActive: false,
	}

	rt, err := svc.Resume(context.Background(), "rt-1")
	require.NoError(t, err)
	// May 20 → May 27 → Jun 3 → Jun 10: first occurrence on/after today.
	assert.Equal(t, date(2025, 6, 10), rt.NextDueAt)
	assert.Equal(t, date(2025, 6, 10), repo.reactivated["rt-1"])
}

func TestResume_CatchUpExceedsCap(t *testing.T) {
	repo := newFakeRecurringRepo()
	today := date(2025, 6, 10)
	svc := newTestService(repo, WithClock(fixedClock(today)), WithCatchUpLimit(5))

	// Daily template ten years behind with a cap of 5 steps.
	repo.tasks["rt-1"] = &domain.RecurringTask{
		ID: "rt-1", UserID: "u", Title: "t",
		Kind: domain.KindDaily, Interval: 1,
		NextDueAt: date(2015, 6, 10), IsActive: false,
	}

	_, err := svc.Resume(context.Background(), "rt-1")
	var exceeded *domain.RecurrenceCatchUpExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, "rt-1", exceeded.RecurringTaskID)
	assert.False(t, repo.tasks["rt-1"].IsActive, "template stays paused on catch-up failure")
}

func TestResume_ScheduleEndedWhilePaused(t *testing.T) {
	repo := newFakeRecurringRepo()
	today := date(2025, 6, 10)
	svc := newTestService(repo, WithClock(fixedClock(today)))

	end := date(2025, 5, 1)
	repo.tasks["rt-1"] = &domain.RecurringTask{
		ID: "rt-1", UserID: "u", Title: "t",
		Kind: domain.KindDaily, Interval: 1,
		NextDueAt: date(2025, 4, 28), EndDate: &end, IsActive: false,
	}

	_, err := svc.Resume(context.Background(), "rt-1")
	require.Error(t, err)
	assert.False(t, repo.tasks["rt-1"].IsActive)
}

func TestResume_NotFound(t *testing.T) {
	svc := newTestService(newFakeRecurringRepo())
	_, err := svc.Resume(context.Background(), "missing")
	var notFound *domain.RecurringTaskNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestUpdate_RejectsEmptyTitle(t *testing.T) {
	svc := newTestService(newFakeRecurringRepo())
	err := svc.Update(context.Background(), "rt-1", "  ", "", 0)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

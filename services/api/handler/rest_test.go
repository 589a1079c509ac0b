package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcycle/taskcycle/internal/domain"
	"github.com/taskcycle/taskcycle/internal/postgres"
	"github.com/taskcycle/taskcycle/internal/scheduling"
)

// ── fakes ────────────────────────────────────────────────────────────────────

type fakeRecurringRepo struct {
	tasks map[string]*domain.RecurringTask
}

func newFakeRecurringRepo() *fakeRecurringRepo {
	return &fakeRecurringRepo{tasks: make(map[string]*domain.RecurringTask)}
}

func (f *fakeRecurringRepo) Create(_ context.Context, rt *domain.RecurringTask) error {
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

type fakeEventLog struct {
	entries map[string][]*domain.EventLogEntry
}

func (f *fakeEventLog) Append(_ context.Context, _ postgres.DBTX, _ domain.Envelope) error {
	return nil
}

func (f *fakeEventLog) ListByTask(_ context.Context, taskID string, _ int) ([]*domain.EventLogEntry, error) {
	return f.entries[taskID], nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func newTestRouter(repo *fakeRecurringRepo, eventLog *fakeEventLog) http.Handler {
	svc := scheduling.NewRecurringService(repo, slog.Default())
	h := NewREST(svc, eventLog, slog.Default())

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/recurring-tasks", func(r chi.Router) {
			r.Post("/", h.CreateRecurring)
			r.Get("/", h.ListRecurring)
			r.Get("/{id}", h.GetRecurring)
			r.Patch("/{id}", h.UpdateRecurring)
			r.Post("/{id}/pause", h.PauseRecurring)
			r.Post("/{id}/resume", h.ResumeRecurring)
			r.Delete("/{id}", h.DeleteRecurring)
		})
		r.Get("/tasks/{id}/events", h.ListTaskEvents)
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func validCreateBody() CreateRecurringRequest {
	return CreateRecurringRequest{
		UserID:    "user-1",
		Title:     "weekly report",
		Kind:      "weekly",
		Interval:  1,
		StartDate: "2025-06-02",
	}
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestCreateRecurring_Success(t *testing.T) {
	router := newTestRouter(newFakeRecurringRepo(), &fakeEventLog{})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/recurring-tasks", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var rt domain.RecurringTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rt))
	assert.NotEmpty(t, rt.ID)
	assert.True(t, rt.IsActive)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), rt.NextDueAt)
}

func TestCreateRecurring_InvalidKind(t *testing.T) {
	router := newTestRouter(newFakeRecurringRepo(), &fakeEventLog{})

	body := validCreateBody()
	body.Kind = "hourly"
	rec := doJSON(t, router, http.MethodPost, "/api/v1/recurring-tasks", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRecurring_BadDateFormat(t *testing.T) {
	router := newTestRouter(newFakeRecurringRepo(), &fakeEventLog{})

	body := validCreateBody()
	body.StartDate = "06/02/2025"
	rec := doJSON(t, router, http.MethodPost, "/api/v1/recurring-tasks", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRecurring_NotFound(t *testing.T) {
	router := newTestRouter(newFakeRecurringRepo(), &fakeEventLog{})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/recurring-tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRecurring_RequiresUserID(t *testing.T) {
	router := newTestRouter(newFakeRecurringRepo(), &fakeEventLog{})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/recurring-tasks/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPauseAndResume(t *testing.T) {
	repo := newFakeRecurringRepo()
	router := newTestRouter(repo, &fakeEventLog{})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/recurring-tasks", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var rt domain.RecurringTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rt))

	rec = doJSON(t, router, http.MethodPost, "/api/v1/recurring-tasks/"+rt.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, repo.tasks[rt.ID].IsActive)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/recurring-tasks/"+rt.ID+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, repo.tasks[rt.ID].IsActive)
}

func TestResume_CatchUpExceeded_Conflict(t *testing.T) {
	repo := newFakeRecurringRepo()
	// A daily template years behind will blow through the default cap.
	repo.tasks["rt-1"] = &domain.RecurringTask{
		ID: "rt-1", UserID: "user-1", Title: "t",
		Kind: domain.KindDaily, Interval: 1,
		NextDueAt: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	router := newTestRouter(repo, &fakeEventLog{})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/recurring-tasks/rt-1/resume", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteRecurring(t *testing.T) {
	repo := newFakeRecurringRepo()
	router := newTestRouter(repo, &fakeEventLog{})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/recurring-tasks", validCreateBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var rt domain.RecurringTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rt))

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/recurring-tasks/"+rt.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, repo.tasks, rt.ID)
}

func TestListTaskEvents(t *testing.T) {
	eventLog := &fakeEventLog{entries: map[string][]*domain.EventLogEntry{
		"task-1": {
			{
				ID:        "log-1",
				TaskID:    "task-1",
				EventType: domain.EventTaskCreated,
				Payload:   []byte(`{"event_id":"evt-1"}`),
				CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			},
		},
	}}
	router := newTestRouter(newFakeRecurringRepo(), eventLog)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/tasks/task-1/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []EventLogResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "task-created", entries[0].EventType)
}

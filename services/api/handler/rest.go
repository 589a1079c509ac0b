package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/taskcycle/taskcycle/internal/domain"
	"github.com/taskcycle/taskcycle/internal/postgres"
	"github.com/taskcycle/taskcycle/internal/scheduling"
	"github.com/taskcycle/taskcycle/pkg/telemetry"
)

const defaultListLimit = 100

// REST handles HTTP requests for the recurring-task admin API.
type REST struct {
	svc      *scheduling.RecurringService
	eventLog postgres.EventLogRepository
	logger   *slog.Logger
}

// NewREST creates a new REST handler.
func NewREST(svc *scheduling.RecurringService, eventLog postgres.EventLogRepository, logger *slog.Logger) *REST {
	return &REST{svc: svc, eventLog: eventLog, logger: logger}
}

// CreateRecurringRequest is the JSON body for POST /api/v1/recurring-tasks.
type CreateRecurringRequest struct {
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    int     `json:"priority"`
	Kind        string  `json:"recurrence_kind"`
	Interval    int     `json:"recurrence_interval"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date,omitempty"`
}

// UpdateRecurringRequest is the JSON body for PATCH /api/v1/recurring-tasks/{id}.
type UpdateRecurringRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

// EventLogResponse is one entry of GET /api/v1/tasks/{id}/events.
type EventLogResponse struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"task_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateRecurring handles POST /api/v1/recurring-tasks.
func (h *REST) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("api").Start(r.Context(), "api.create_recurring")
	defer span.End()

	var req CreateRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	var end *time.Time
	if req.EndDate != nil {
		e, err := parseDate(*req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
			return
		}
		end = &e
	}

	rt, err := h.svc.Create(ctx, scheduling.CreateInput{
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Kind:        domain.RecurrenceKind(req.Kind),
		Interval:    req.Interval,
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	span.SetAttributes(attribute.String("recurring_task.id", rt.ID))
	telemetry.APIRecurringCreated.Inc()

	writeJSON(w, http.StatusCreated, rt)
}

// GetRecurring handles GET /api/v1/recurring-tasks/{id}.
func (h *REST) GetRecurring(w http.ResponseWriter, r *http.Request) {
	rt, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// ListRecurring handles GET /api/v1/recurring-tasks?user_id=...&limit=...
func (h *REST) ListRecurring(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'user_id' is required")
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	tasks, err := h.svc.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*domain.RecurringTask{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// UpdateRecurring handles PATCH /api/v1/recurring-tasks/{id}.
func (h *REST) UpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var req UpdateRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.svc.Update(r.Context(), id, req.Title, req.Description, req.Priority); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	rt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// PauseRecurring handles POST /api/v1/recurring-tasks/{id}/pause.
func (h *REST) PauseRecurring(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Pause(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// ResumeRecurring handles POST /api/v1/recurring-tasks/{id}/resume.
func (h *REST) ResumeRecurring(w http.ResponseWriter, r *http.Request) {
	rt, err := h.svc.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// DeleteRecurring handles DELETE /api/v1/recurring-tasks/{id}.
func (h *REST) DeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTaskEvents handles GET /api/v1/tasks/{id}/events.
func (h *REST) ListTaskEvents(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.eventLog.ListByTask(r.Context(), taskID, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	out := make([]EventLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EventLogResponse{
			ID:        e.ID,
			TaskID:    e.TaskID,
			EventType: string(e.EventType),
			Payload:   json.RawMessage(e.Payload),
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Healthz handles GET /healthz.
func (h *REST) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// writeDomainError maps domain errors to HTTP status codes.
func (h *REST) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation  *domain.ValidationError
		badKind     *domain.InvalidRecurrenceKindError
		badInterval *domain.InvalidIntervalError
		exceeded    *domain.RecurrenceCatchUpExceededError
		rtNotFound  *domain.RecurringTaskNotFoundError
		tNotFound   *domain.TaskNotFoundError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &badKind), errors.As(err, &badInterval):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &rtNotFound), errors.As(err, &tNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &exceeded):
		// Resuming would skip more occurrences than allowed; needs manual intervention.
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("internal error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

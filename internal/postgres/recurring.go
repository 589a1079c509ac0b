package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskcycle/taskcycle/internal/domain"
	"github.com/taskcycle/taskcycle/internal/events"
	"github.com/taskcycle/taskcycle/internal/recurrence"
)

// MaterializeResult reports what one materialization transaction did.
type MaterializeResult struct {
	// Task is the newly created instance, nil when creation was skipped
	// because an instance for (recurring_task_id, due_date) already existed.
	Task *domain.Task
	// Recurring is the template state after the cursor advance.
	Recurring *domain.RecurringTask
	// Created is false on the idempotent-skip path.
	Created bool
	// Events holds the envelopes appended to the event log inside the
	// transaction, for the caller to republish on the bus after commit.
	Events []domain.Envelope
}

// RecurringTaskRepository owns recurring_tasks rows and the materialization
// transaction that couples instance creation to cursor advancement.
type RecurringTaskRepository interface {
	Create(ctx context.Context, rt *domain.RecurringTask) error
	GetByID(ctx context.Context, id string) (*domain.RecurringTask, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.RecurringTask, error)
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]*domain.RecurringTask, error)
	UpdateDetails(ctx context.Context, id, title, description string, priority int) error
	SetActive(ctx context.Context, id string, active bool) error
	Reactivate(ctx context.Context, id string, nextDueAt time.Time) error
	Delete(ctx context.Context, id string) error
	Materialize(ctx context.Context, rt *domain.RecurringTask) (*MaterializeResult, error)
}

type recurringRepository struct {
	pool *pgxpool.Pool
}

// NewRecurringTaskRepository wraps a pgxpool with the RecurringTaskRepository interface.
func NewRecurringTaskRepository(pool *pgxpool.Pool) RecurringTaskRepository {
	return &recurringRepository{pool: pool}
}

func (r *recurringRepository) Create(ctx context.Context, rt *domain.RecurringTask) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO recurring_tasks
			(id, user_id, title, description, priority,
			 recurrence_type, recurrence_interval, start_date, end_date,
			 last_created_at, next_due_at, is_active, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		rt.ID, rt.UserID, rt.Title, rt.Description, rt.Priority,
		string(rt.Kind), rt.Interval, rt.StartDate, rt.EndDate,
		rt.LastCreatedAt, rt.NextDueAt, rt.IsActive, rt.CreatedAt, rt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create recurring task %s: %w", rt.ID, err)
	}
	return nil
}

const recurringColumns = `
	id, user_id, title, description, priority,
	recurrence_type, recurrence_interval, start_date, end_date,
	last_created_at, next_due_at, is_active, created_at, updated_at`

func (r *recurringRepository) GetByID(ctx context.Context, id string) (*domain.RecurringTask, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+recurringColumns+` FROM recurring_tasks WHERE id = $1`, id)
	rt, err := scanRecurring(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.RecurringTaskNotFoundError{ID: id}
		}
		return nil, err
	}
	return rt, nil
}

func (r *recurringRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.RecurringTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recurringColumns+`
		FROM recurring_tasks
		WHERE user_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recurring tasks for user %s: %w", userID, err)
	}
	return collectRecurring(rows)
}

// ListDue returns active templates whose cursor has arrived, ordered by
// next_due_at then id so concurrent worker runs see the same ordering.
func (r *recurringRepository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*domain.RecurringTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recurringColumns+`
		FROM recurring_tasks
		WHERE is_active AND next_due_at <= $1
		ORDER BY next_due_at ASC, id ASC
		LIMIT $2
	`, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("list due recurring tasks: %w", err)
	}
	return collectRecurring(rows)
}

func (r *recurringRepository) UpdateDetails(ctx context.Context, id, title, description string, priority int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE recurring_tasks
		SET title = $1, description = $2, priority = $3, updated_at = $4
		WHERE id = $5
	`, title, description, priority, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update recurring task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.RecurringTaskNotFoundError{ID: id}
	}
	return nil
}

func (r *recurringRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE recurring_tasks SET is_active = $1, updated_at = $2 WHERE id = $3
	`, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set recurring task %s active=%t: %w", id, active, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.RecurringTaskNotFoundError{ID: id}
	}
	return nil
}

// Reactivate resumes a paused template with an already caught-up cursor.
func (r *recurringRepository) Reactivate(ctx context.Context, id string, nextDueAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE recurring_tasks
		SET is_active = TRUE, next_due_at = $1, updated_at = $2
		WHERE id = $3
	`, nextDueAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("reactivate recurring task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.RecurringTaskNotFoundError{ID: id}
	}
	return nil
}

// Delete removes the template only. Materialized instances keep living; the
// schema sets their recurring_task_id reference to NULL.
func (r *recurringRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recurring_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recurring task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.RecurringTaskNotFoundError{ID: id}
	}
	return nil
}

// Materialize creates a task instance for the template's current due date and
// advances the cursor, atomically. Either both happen or neither does.
//
// Idempotency is keyed on (recurring_task_id, due_date): when an instance for
// the pair already exists, creation is skipped but the cursor still advances,
// which makes duplicate worker runs under at-least-once delivery harmless.
func (r *recurringRepository) Materialize(ctx context.Context, rt *domain.RecurringTask) (*MaterializeResult, error) {
	now := time.Now().UTC()
	due := rt.NextDueAt

	candidate, err := recurrence.Next(due, rt.Kind, rt.Interval)
	if err != nil {
		return nil, fmt.Errorf("advance recurring task %s: %w", rt.ID, err)
	}
	next, active := rt.AdvanceCursor(candidate)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin materialize tx for %s: %w", rt.ID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	res := &MaterializeResult{}

	var existingID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM tasks WHERE recurring_task_id = $1 AND due_date = $2
	`, rt.ID, due).Scan(&existingID)
	switch {
	case err == nil:
		// Already materialized by an earlier run; only the cursor moves.
	case errors.Is(err, pgx.ErrNoRows):
		task := &domain.Task{
			ID:              uuid.New().String(),
			UserID:          rt.UserID,
			Title:           rt.Title,
			Description:     rt.Description,
			Priority:        rt.Priority,
			DueDate:         &due,
			RecurringTaskID: &rt.ID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO tasks
				(id, user_id, title, description, priority, due_date,
				 completed, notified, recurring_task_id, created_at, updated_at)
			VALUES
				($1, $2, $3, $4, $5, $6, FALSE, FALSE, $7, $8, $9)
		`,
			task.ID, task.UserID, task.Title, task.Description, task.Priority,
			task.DueDate, rt.ID, task.CreatedAt, task.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("create instance for recurring task %s: %w", rt.ID, err)
		}

		created := events.New(domain.EventTaskCreated, events.TaskData(task))
		recDue := events.New(domain.EventRecurringTaskDue, events.TaskData(task))
		if err := appendEventLog(ctx, tx, created); err != nil {
			return nil, err
		}
		if err := appendEventLog(ctx, tx, recDue); err != nil {
			return nil, err
		}

		res.Task = task
		res.Created = true
		res.Events = []domain.Envelope{created, recDue}
	default:
		return nil, fmt.Errorf("check existing instance for %s: %w", rt.ID, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE recurring_tasks
		SET next_due_at = $1, is_active = $2, last_created_at = $3, updated_at = $3
		WHERE id = $4
	`, next, active, now, rt.ID); err != nil {
		return nil, fmt.Errorf("advance cursor for recurring task %s: %w", rt.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit materialize tx for %s: %w", rt.ID, err)
	}

	updated := *rt
	updated.NextDueAt = next
	updated.IsActive = active
	updated.LastCreatedAt = &now
	updated.UpdatedAt = now
	res.Recurring = &updated
	return res, nil
}

// scanRecurring reads a recurring task row from any pgx row type.
func scanRecurring(row interface {
	Scan(...any) error
}) (*domain.RecurringTask, error) {
	var rt domain.RecurringTask
	var kind string
	err := row.Scan(
		&rt.ID, &rt.UserID, &rt.Title, &rt.Description, &rt.Priority,
		&kind, &rt.Interval, &rt.StartDate, &rt.EndDate,
		&rt.LastCreatedAt, &rt.NextDueAt, &rt.IsActive, &rt.CreatedAt, &rt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rt.Kind = domain.RecurrenceKind(kind)
	return &rt, nil
}

func collectRecurring(rows pgx.Rows) ([]*domain.RecurringTask, error) {
	defer rows.Close()
	var out []*domain.RecurringTask
	for rows.Next() {
		rt, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring task: %w", err)
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

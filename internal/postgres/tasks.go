package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskcycle/taskcycle/internal/domain"
)

// TaskRepository is the collaborator interface over the external tasks table.
// The core only needs instance creation (via Materialize), due-soon scanning,
// and the notified flag.
type TaskRepository interface {
	Create(ctx context.Context, t *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	ListDueSoon(ctx context.Context, before time.Time, limit int) ([]*domain.Task, error)
	MarkNotified(ctx context.Context, taskID string, env domain.Envelope) error
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository wraps a pgxpool with the TaskRepository interface.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `
	id, user_id, title, description, priority, due_date,
	completed, notified, recurring_task_id, created_at, updated_at`

func (r *taskRepository) Create(ctx context.Context, t *domain.Task) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tasks
			(id, user_id, title, description, priority, due_date,
			 completed, notified, recurring_task_id, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		t.ID, t.UserID, t.Title, t.Description, t.Priority, t.DueDate,
		t.Completed, t.Notified, t.RecurringTaskID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.TaskNotFoundError{TaskID: id}
		}
		return nil, err
	}
	return t, nil
}

// ListDueSoon returns unnotified, incomplete tasks due on or before the
// horizon boundary, in deterministic order.
func (r *taskRepository) ListDueSoon(ctx context.Context, before time.Time, limit int) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE due_date IS NOT NULL
		  AND due_date <= $1
		  AND NOT notified
		  AND NOT completed
		ORDER BY due_date ASC, id ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list due-soon tasks: %w", err)
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkNotified flips the notified flag and appends the due-soon event to the
// audit log in one transaction. The flag only ever goes false→true here; a
// concurrent run that lost the race is a silent no-op, so redelivery never
// duplicates the audit row.
func (r *taskRepository) MarkNotified(ctx context.Context, taskID string, env domain.Envelope) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin notify tx for task %s: %w", taskID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE tasks SET notified = TRUE, updated_at = $1
		WHERE id = $2 AND NOT notified
	`, time.Now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("mark task %s notified: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		// Already notified (or deleted) — nothing to log.
		return tx.Commit(ctx)
	}

	if err := appendEventLog(ctx, tx, env); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit notify tx for task %s: %w", taskID, err)
	}
	return nil
}

// scanTask reads a task row from any pgx row type.
func scanTask(row interface {
	Scan(...any) error
}) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Priority, &t.DueDate,
		&t.Completed, &t.Notified, &t.RecurringTaskID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskcycle/taskcycle/internal/domain"
)

// EventLogRepository appends to and reads the append-only task_event_log
// table. Appends are durable synchronous writes: a failure must abort the
// caller's enclosing unit of work, which is why Append takes the caller's
// DBTX instead of opening its own transaction.
type EventLogRepository interface {
	Append(ctx context.Context, db DBTX, env domain.Envelope) error
	ListByTask(ctx context.Context, taskID string, limit int) ([]*domain.EventLogEntry, error)
}

type eventLogRepository struct {
	pool *pgxpool.Pool
}

// NewEventLogRepository wraps a pgxpool with the EventLogRepository interface.
func NewEventLogRepository(pool *pgxpool.Pool) EventLogRepository {
	return &eventLogRepository{pool: pool}
}

func (r *eventLogRepository) Append(ctx context.Context, db DBTX, env domain.Envelope) error {
	return appendEventLog(ctx, db, env)
}

// appendEventLog is shared with the task and recurring repositories so their
// transactions can log events without crossing repository boundaries.
func appendEventLog(ctx context.Context, db DBTX, env domain.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", env.EventID, err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO task_event_log (id, task_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		uuid.New().String(), env.Data.TaskID, string(env.EventType), payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append event log for task %s: %w", env.Data.TaskID, err)
	}
	return nil
}

func (r *eventLogRepository) ListByTask(ctx context.Context, taskID string, limit int) ([]*domain.EventLogEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task_id, event_type, payload, created_at
		FROM task_event_log
		WHERE task_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("list event log for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var entries []*domain.EventLogEntry
	for rows.Next() {
		var e domain.EventLogEntry
		var eventType string
		if err := rows.Scan(&e.ID, &e.TaskID, &eventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event log entry: %w", err)
		}
		e.EventType = domain.EventType(eventType)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

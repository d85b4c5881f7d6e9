package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clinicore/booking-api/internal/model"
)

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	return createOutboxEvent(ctx, r.db, event)
}

func createOutboxEvent(ctx context.Context, e sqlx.ExtContext, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	event.UpdatedAt = time.Now()

	_, err := e.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// ClaimPendingEvents flips a batch of pending rows to processing and returns
// them. Claim and fetch are one statement, so the rows are invisible to a
// concurrent poller the moment the statement commits; SKIP LOCKED keeps two
// pollers claiming simultaneously from blocking on each other. Rows stuck in
// processing longer than the stale window (a poller crashed mid-batch) are
// reclaimed too.
func (r *outboxRepository) ClaimPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = 'pending'
			   OR (status = 'processing' AND updated_at < NOW() - INTERVAL '5 minutes')
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, payload, status, error_message, retry_count, created_at, processed_at, updated_at
	`
	var events []*model.OutboxEvent
	err := r.db.SelectContext(ctx, &events, query, limit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return events, err
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = 'processed', processed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// MarkFailed requeues a claimed event as pending so the next poll retries it.
// Only after maxRetries publish failures does the event park as failed.
func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMessage string, maxRetries int) error {
	query := `
		UPDATE outbox_events
		SET retry_count = retry_count + 1,
			error_message = $2,
			status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, errMessage, maxRetries)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = 'processed'
		AND processed_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}

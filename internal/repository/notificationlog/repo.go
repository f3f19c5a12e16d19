// Package notificationlog is the insert-only store for per-notification
// status history. Grounded on the teacher's notification repository shape,
// generalized per SPEC_FULL §4.2: a single Append plus three read queries.
package notificationlog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/mksenin/notifyhub/internal/model"
)

// Repository provides methods to interact with the notification_logs table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new notification log repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts a log row. Most callers use notification.Repository's
// UpdateStatus instead, which appends the log row in the same transaction;
// this is for log-only events that have no corresponding status change
// (e.g. a stall-recovery note).
func (r *Repository) Append(ctx context.Context, log model.NotificationLog) error {
	query := `
		INSERT INTO notification_logs (notification_id, status, message, error_details, provider_response)
		VALUES ($1, $2, $3, $4, $5);
	`

	_, err := r.db.ExecContext(ctx, query,
		log.NotificationID, log.Status, log.Message, log.ErrorDetails, log.ProviderResponse,
	)
	if err != nil {
		return fmt.Errorf("failed to append notification log: %w", err)
	}
	return nil
}

// ListByNotification returns the full history for one notification, oldest first.
func (r *Repository) ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]model.NotificationLog, error) {
	query := `
		SELECT id, notification_id, status, message, error_details, provider_response, created_at
		FROM notification_logs
		WHERE notification_id = $1
		ORDER BY created_at ASC;
	`
	return r.scanMany(ctx, query, notificationID)
}

// ListRecent returns the most recent log rows across all notifications.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]model.NotificationLog, error) {
	query := `
		SELECT id, notification_id, status, message, error_details, provider_response, created_at
		FROM notification_logs
		ORDER BY created_at DESC
		LIMIT $1;
	`
	return r.scanMany(ctx, query, limit)
}

// ListErrors returns the most recent error-status log rows.
func (r *Repository) ListErrors(ctx context.Context, limit int) ([]model.NotificationLog, error) {
	query := `
		SELECT id, notification_id, status, message, error_details, provider_response, created_at
		FROM notification_logs
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2;
	`
	return r.scanMany(ctx, query, model.LogError, limit)
}

func (r *Repository) scanMany(ctx context.Context, query string, args ...interface{}) ([]model.NotificationLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification logs: %w", err)
	}
	defer rows.Close()

	var out []model.NotificationLog
	for rows.Next() {
		var l model.NotificationLog
		if err := rows.Scan(
			&l.ID, &l.NotificationID, &l.Status, &l.Message, &l.ErrorDetails, &l.ProviderResponse, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification log row: %w", err)
		}
		out = append(out, l)
	}

	return out, rows.Err()
}

// Package notification is the relational store for notification rows.
// Grounded on the teacher's internal/repository/notification/repo.go,
// generalized from the teacher's single status-string table to the full
// lifecycle surface SPEC_FULL §4.2 requires, including the retry bookkeeping
// and the atomic log append on every status transition.
package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/mksenin/notifyhub/internal/model"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// Repository provides methods to interact with the notifications table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new notification repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// CreateNotification inserts a new notification row and appends the initial
// "created" log entry in the same transaction, returning the row's ID.
func (r *Repository) CreateNotification(ctx context.Context, n model.Notification) (uuid.UUID, error) {
	query := `
		INSERT INTO notifications (
			user_id, channel, recipient, subject, content, status,
			priority, retry_count, max_retries, scheduled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id;
	`

	if n.Status == "" {
		n.Status = model.StatusPending
	}
	if n.ScheduledAt.IsZero() {
		n.ScheduledAt = time.Now()
	}

	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var id uuid.UUID
	err = tx.QueryRowContext(
		ctx, query,
		n.UserID, n.Channel, n.Recipient, n.Subject, n.Content, n.Status,
		n.Priority, n.RetryCount, n.MaxRetries, n.ScheduledAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create notification: %w", err)
	}

	logQuery := `
		INSERT INTO notification_logs (notification_id, status, message, error_details, provider_response)
		VALUES ($1, $2, $3, $4, $5);
	`
	if _, err := tx.ExecContext(ctx, logQuery, id, model.LogCreated, "notification created", nil, nil); err != nil {
		return uuid.Nil, fmt.Errorf("failed to append created log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit create: %w", err)
	}

	return id, nil
}

// FindByID retrieves a single notification row by its ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	query := `
		SELECT id, user_id, channel, recipient, subject, content, status,
		       priority, retry_count, max_retries, scheduled_at,
		       last_processed_at, sent_at, error_message, created_at, updated_at
		FROM notifications
		WHERE id = $1;
	`

	var n model.Notification
	err := r.db.Master.QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.UserID, &n.Channel, &n.Recipient, &n.Subject, &n.Content, &n.Status,
		&n.Priority, &n.RetryCount, &n.MaxRetries, &n.ScheduledAt,
		&n.LastProcessedAt, &n.SentAt, &n.LastErrorMessage, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, ErrNotificationNotFound
		}
		return model.Notification{}, fmt.Errorf("failed to find notification: %w", err)
	}

	return n, nil
}

// UpdateStatus transitions a notification's status and appends a log row
// tagged logStatus in the same transaction (SPEC_FULL §3 invariant 4).
// logStatus is distinct from newStatus: e.g. a successful send transitions
// the row to "sent" but tags the log "delivered". It also sets sent_at iff
// newStatus is "sent" and the row's sent_at is currently null.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus model.Status, logStatus model.LogStatus, logMessage string, errorDetails, providerResponse *string) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE notifications
		SET status = $1,
		    error_message = COALESCE($2, error_message),
		    sent_at = CASE WHEN $1 = 'sent' AND sent_at IS NULL THEN now() ELSE sent_at END,
		    updated_at = now()
		WHERE id = $3;
	`

	var errMsg interface{}
	if errorDetails != nil {
		errMsg = *errorDetails
	}

	res, err := tx.ExecContext(ctx, query, newStatus, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotificationNotFound
	}

	logQuery := `
		INSERT INTO notification_logs (notification_id, status, message, error_details, provider_response)
		VALUES ($1, $2, $3, $4, $5);
	`
	if _, err := tx.ExecContext(ctx, logQuery, id, logStatus, logMessage, errorDetails, providerResponse); err != nil {
		return fmt.Errorf("failed to append notification log: %w", err)
	}

	return tx.Commit()
}

// AppendLog inserts a standalone notification_logs row without transitioning
// the notification's own status, for events that aren't themselves a status
// change (e.g. the pre-decision "error" log SPEC_FULL §4.4 requires before
// the retry/fail policy decision).
func (r *Repository) AppendLog(ctx context.Context, id uuid.UUID, logStatus model.LogStatus, message string, errorDetails, providerResponse *string) error {
	query := `
		INSERT INTO notification_logs (notification_id, status, message, error_details, provider_response)
		VALUES ($1, $2, $3, $4, $5);
	`
	if _, err := r.db.ExecContext(ctx, query, id, logStatus, message, errorDetails, providerResponse); err != nil {
		return fmt.Errorf("failed to append notification log: %w", err)
	}
	return nil
}

// UpdateLastProcessed touches last_processed_at, used when a worker claims a job.
func (r *Repository) UpdateLastProcessed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE notifications SET last_processed_at = now(), updated_at = now() WHERE id = $1;`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to touch last_processed_at: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// IncrementRetryCount atomically increments retry_count.
func (r *Repository) IncrementRetryCount(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE notifications SET retry_count = retry_count + 1, updated_at = now() WHERE id = $1;`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// ListPending returns notifications eligible for first dispatch:
// status=pending AND scheduled_at <= now, oldest scheduled first.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]model.Notification, error) {
	query := `
		SELECT id, user_id, channel, recipient, subject, content, status,
		       priority, retry_count, max_retries, scheduled_at,
		       last_processed_at, sent_at, error_message, created_at, updated_at
		FROM notifications
		WHERE status = $1 AND scheduled_at <= now()
		ORDER BY scheduled_at ASC
		LIMIT $2;
	`

	return r.scanMany(ctx, query, model.StatusPending, limit)
}

// ListRetryable returns failed-but-retryable rows ordered by priority then
// creation time, per SPEC_FULL §4.2.
func (r *Repository) ListRetryable(ctx context.Context) ([]model.Notification, error) {
	query := `
		SELECT id, user_id, channel, recipient, subject, content, status,
		       priority, retry_count, max_retries, scheduled_at,
		       last_processed_at, sent_at, error_message, created_at, updated_at
		FROM notifications
		WHERE status = $1 AND retry_count < max_retries AND scheduled_at <= now()
		ORDER BY CASE priority
		             WHEN 'urgent' THEN 10
		             WHEN 'high' THEN 5
		             WHEN 'low' THEN -5
		             ELSE 0
		         END DESC, created_at ASC;
	`

	return r.scanMany(ctx, query, model.StatusFailed)
}

// ListStale returns rows stuck in "processing" for longer than the given
// number of minutes, for the stall sweeper to reclaim.
func (r *Repository) ListStale(ctx context.Context, minutes int) ([]model.Notification, error) {
	query := `
		SELECT id, user_id, channel, recipient, subject, content, status,
		       priority, retry_count, max_retries, scheduled_at,
		       last_processed_at, sent_at, error_message, created_at, updated_at
		FROM notifications
		WHERE status = $1 AND last_processed_at < now() - ($2 || ' minutes')::interval;
	`

	return r.scanMany(ctx, query, model.StatusProcessing, minutes)
}

// ListByUser returns one page of a user's notifications, newest first,
// along with the total matching row count for pagination.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	var total int
	if err := r.db.Master.QueryRowContext(ctx, `SELECT count(*) FROM notifications WHERE user_id = $1;`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count user notifications: %w", err)
	}

	query := `
		SELECT id, user_id, channel, recipient, subject, content, status,
		       priority, retry_count, max_retries, scheduled_at,
		       last_processed_at, sent_at, error_message, created_at, updated_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3;
	`

	list, err := r.scanMany(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *Repository) scanMany(ctx context.Context, query string, args ...interface{}) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.Channel, &n.Recipient, &n.Subject, &n.Content, &n.Status,
			&n.Priority, &n.RetryCount, &n.MaxRetries, &n.ScheduledAt,
			&n.LastProcessedAt, &n.SentAt, &n.LastErrorMessage, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		out = append(out, n)
	}

	return out, rows.Err()
}

// Stats is the grouped-count result of StatsLast24h.
type Stats struct {
	ByStatus  map[model.Status]int
	ByChannel map[model.Channel]int
	Hourly    []HourlyBucket
}

// HourlyBucket is one hour's created/sent/failed counts.
type HourlyBucket struct {
	Hour   time.Time
	Total  int
	Sent   int
	Failed int
}

// StatsLast24h aggregates the last 24 hours of notifications by status, by
// channel, and into hourly buckets.
func (r *Repository) StatsLast24h(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: map[model.Status]int{}, ByChannel: map[model.Channel]int{}}

	statusRows, err := r.db.QueryContext(ctx, `
		SELECT status, count(*)
		FROM notifications
		WHERE created_at >= now() - interval '24 hours'
		GROUP BY status;
	`)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate status stats: %w", err)
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var s model.Status
		var c int
		if err := statusRows.Scan(&s, &c); err != nil {
			return stats, err
		}
		stats.ByStatus[s] = c
	}

	channelRows, err := r.db.QueryContext(ctx, `
		SELECT channel, count(*)
		FROM notifications
		WHERE created_at >= now() - interval '24 hours'
		GROUP BY channel;
	`)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate channel stats: %w", err)
	}
	defer channelRows.Close()
	for channelRows.Next() {
		var c model.Channel
		var n int
		if err := channelRows.Scan(&c, &n); err != nil {
			return stats, err
		}
		stats.ByChannel[c] = n
	}

	hourlyRows, err := r.db.QueryContext(ctx, `
		SELECT date_trunc('hour', created_at) AS hr,
		       count(*),
		       count(*) FILTER (WHERE status = 'sent'),
		       count(*) FILTER (WHERE status = 'failed')
		FROM notifications
		WHERE created_at >= now() - interval '24 hours'
		GROUP BY hr
		ORDER BY hr ASC;
	`)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate hourly stats: %w", err)
	}
	defer hourlyRows.Close()
	for hourlyRows.Next() {
		var b HourlyBucket
		if err := hourlyRows.Scan(&b.Hour, &b.Total, &b.Sent, &b.Failed); err != nil {
			return stats, err
		}
		stats.Hourly = append(stats.Hourly, b)
	}

	return stats, nil
}

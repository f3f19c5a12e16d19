package notification

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/dbpg"

	"github.com/mksenin/notifyhub/internal/model"
)

func setupMockDB(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}

	repo := NewRepository(&dbpg.DB{Master: db})
	return repo, mock
}

func TestCreateNotification(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	n := model.Notification{
		Channel:     model.ChannelEmail,
		Recipient:   "user@example.com",
		Subject:     "hi",
		Content:     "hello",
		Priority:    model.PriorityNormal,
		MaxRetries:  3,
		ScheduledAt: time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO notifications (
			user_id, channel, recipient, subject, content, status,
			priority, retry_count, max_retries, scheduled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id;
	`)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO notification_logs (notification_id, status, message, error_details, provider_response)
		VALUES ($1, $2, $3, $4, $5);
	`)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	got, err := repo.CreateNotification(context.Background(), n)
	assert.NoError(t, err)
	assert.Equal(t, id, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock := setupMockDB(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, user_id, channel, recipient, subject, content, status,
		       priority, retry_count, max_retries, scheduled_at,
		       last_processed_at, sent_at, error_message, created_at, updated_at
		FROM notifications
		WHERE id = $1;
	`)).WithArgs(id).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo, mock := setupMockDB(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE notifications
		SET status = $1,
		    error_message = COALESCE($2, error_message),
		    sent_at = CASE WHEN $1 = 'sent' AND sent_at IS NULL THEN now() ELSE sent_at END,
		    updated_at = now()
		WHERE id = $3;
	`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), id, model.StatusSent, model.LogDelivered, "sent ok", nil, nil)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_AppendsLogInSameTx(t *testing.T) {
	repo, mock := setupMockDB(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`
		UPDATE notifications
		SET status = $1,
		    error_message = COALESCE($2, error_message),
		    sent_at = CASE WHEN $1 = 'sent' AND sent_at IS NULL THEN now() ELSE sent_at END,
		    updated_at = now()
		WHERE id = $3;
	`)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO notification_logs (notification_id, status, message, error_details, provider_response)
		VALUES ($1, $2, $3, $4, $5);
	`)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), id, model.StatusSent, model.LogDelivered, "sent ok", nil, nil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendLog(t *testing.T) {
	repo, mock := setupMockDB(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO notification_logs (notification_id, status, message, error_details, provider_response)
		VALUES ($1, $2, $3, $4, $5);
	`)).WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.AppendLog(context.Background(), id, model.LogError, "send failed", nil, nil)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementRetryCount_NotFound(t *testing.T) {
	repo, mock := setupMockDB(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notifications SET retry_count = retry_count + 1, updated_at = now() WHERE id = $1;`)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementRetryCount(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPending(t *testing.T) {
	repo, mock := setupMockDB(t)

	n1 := uuid.New()
	cols := []string{"id", "user_id", "channel", "recipient", "subject", "content", "status",
		"priority", "retry_count", "max_retries", "scheduled_at",
		"last_processed_at", "sent_at", "error_message", "created_at", "updated_at"}

	now := time.Now()
	rows := sqlmock.NewRows(cols).AddRow(
		n1, nil, model.ChannelEmail, "a@example.com", "s", "c", model.StatusPending,
		model.PriorityNormal, 0, 3, now,
		nil, nil, "", now, now,
	)

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, user_id, channel, recipient, subject, content, status,
		       priority, retry_count, max_retries, scheduled_at,
		       last_processed_at, sent_at, error_message, created_at, updated_at
		FROM notifications
		WHERE status = $1 AND scheduled_at <= now()
		ORDER BY scheduled_at ASC
		LIMIT $2;
	`)).WithArgs(model.StatusPending, 10).WillReturnRows(rows)

	list, err := repo.ListPending(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUser(t *testing.T) {
	repo, mock := setupMockDB(t)
	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM notifications WHERE user_id = $1;`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	cols := []string{"id", "user_id", "channel", "recipient", "subject", "content", "status",
		"priority", "retry_count", "max_retries", "scheduled_at",
		"last_processed_at", "sent_at", "error_message", "created_at", "updated_at"}
	now := time.Now()
	rows := sqlmock.NewRows(cols).AddRow(
		uuid.New(), userID, model.ChannelSMS, "+15551234567", "", "c", model.StatusSent,
		model.PriorityHigh, 0, 3, now,
		nil, now, "", now, now,
	)

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, user_id, channel, recipient, subject, content, status,
		       priority, retry_count, max_retries, scheduled_at,
		       last_processed_at, sent_at, error_message, created_at, updated_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3;
	`)).WithArgs(userID, 20, 0).WillReturnRows(rows)

	list, total, err := repo.ListByUser(context.Background(), userID, 1, 20)
	assert.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

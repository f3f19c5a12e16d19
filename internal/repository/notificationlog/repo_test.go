package notificationlog

import (
	"context"
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
	return NewRepository(&dbpg.DB{Master: db}), mock
}

func TestAppend(t *testing.T) {
	repo, mock := setupMockDB(t)

	log := model.NotificationLog{
		NotificationID: uuid.New(),
		Status:         model.LogStallRecovered,
		Message:        "reclaimed by sweeper",
	}

	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO notification_logs (notification_id, status, message, error_details, provider_response)
		VALUES ($1, $2, $3, $4, $5);
	`)).WithArgs(log.NotificationID, log.Status, log.Message, log.ErrorDetails, log.ProviderResponse).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Append(context.Background(), log)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByNotification(t *testing.T) {
	repo, mock := setupMockDB(t)

	notificationID := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "notification_id", "status", "message", "error_details", "provider_response", "created_at"}).
		AddRow(uuid.New(), notificationID, model.LogQueued, "queued", "", "", now).
		AddRow(uuid.New(), notificationID, model.LogProcessing, "processing", "", "", now)

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, notification_id, status, message, error_details, provider_response, created_at
		FROM notification_logs
		WHERE notification_id = $1
		ORDER BY created_at ASC;
	`)).WithArgs(notificationID).WillReturnRows(rows)

	list, err := repo.ListByNotification(context.Background(), notificationID)
	assert.NoError(t, err)
	assert.Len(t, list, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListErrors(t *testing.T) {
	repo, mock := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "notification_id", "status", "message", "error_details", "provider_response", "created_at"})

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, notification_id, status, message, error_details, provider_response, created_at
		FROM notification_logs
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2;
	`)).WithArgs(model.LogError, 20).WillReturnRows(rows)

	list, err := repo.ListErrors(context.Background(), 20)
	assert.NoError(t, err)
	assert.Len(t, list, 0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

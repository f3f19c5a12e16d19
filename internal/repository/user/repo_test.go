package user

import (
	"context"
	"database/sql"
	"encoding/json"
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

func TestCreate(t *testing.T) {
	repo, mock := setupMockDB(t)
	id := uuid.New()

	u := model.User{Email: "a@example.com", Name: "Ada"}

	mock.ExpectQuery(regexp.QuoteMeta(`
		INSERT INTO notification_users (
			email, name, phone, push_token, slack_webhook_url, telegram_chat_id, preferences
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id;
	`)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))

	got, err := repo.Create(context.Background(), u)
	assert.NoError(t, err)
	assert.Equal(t, id, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByEmail_NotFound(t *testing.T) {
	repo, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, email, name, phone, push_token, slack_webhook_url, telegram_chat_id,
		       preferences, created_at, updated_at
		FROM notification_users
		WHERE email = $1;
	`)).WithArgs("missing@example.com").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_UnmarshalsPreferences(t *testing.T) {
	repo, mock := setupMockDB(t)
	id := uuid.New()
	now := time.Now()

	prefs, _ := json.Marshal(model.ChannelPreferences{EmailEnabled: true, SMSEnabled: true})

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT id, email, name, phone, push_token, slack_webhook_url, telegram_chat_id,
		       preferences, created_at, updated_at
		FROM notification_users
		WHERE id = $1;
	`)).WithArgs(id).WillReturnRows(
		sqlmock.NewRows([]string{"id", "email", "name", "phone", "push_token", "slack_webhook_url", "telegram_chat_id", "preferences", "created_at", "updated_at"}).
			AddRow(id, "a@example.com", "Ada", "", "", "", "", prefs, now, now),
	)

	u, err := repo.FindByID(context.Background(), id)
	assert.NoError(t, err)
	assert.True(t, u.Preferences.EmailEnabled)
	assert.True(t, u.Preferences.SMSEnabled)
	assert.False(t, u.Preferences.PushEnabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePreferences_NotFound(t *testing.T) {
	repo, mock := setupMockDB(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notification_users SET preferences = $1, updated_at = now() WHERE id = $2;`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePreferences(context.Background(), id, model.ChannelPreferences{})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Package user is a thin CRUD repository over notification_users, used by
// the dispatch path only when a submission omits an explicit recipient.
// Grounded on the teacher's repository shape, generalized per SPEC_FULL
// §4.2/§4.8.
package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/mksenin/notifyhub/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

// Repository provides methods to interact with the notification_users table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new user repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user row and returns its ID.
func (r *Repository) Create(ctx context.Context, u model.User) (uuid.UUID, error) {
	prefs, err := json.Marshal(u.Preferences)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal preferences: %w", err)
	}

	query := `
		INSERT INTO notification_users (
			email, name, phone, push_token, slack_webhook_url, telegram_chat_id, preferences
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id;
	`

	var id uuid.UUID
	err = r.db.Master.QueryRowContext(ctx, query,
		u.Email, u.Name, u.Phone, u.PushToken, u.SlackWebhookURL, u.TelegramChatID, prefs,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create user: %w", err)
	}

	return id, nil
}

// FindByID retrieves a user by its ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `
		SELECT id, email, name, phone, push_token, slack_webhook_url, telegram_chat_id,
		       preferences, created_at, updated_at
		FROM notification_users
		WHERE id = $1;
	`
	return r.scanOne(ctx, query, id)
}

// FindByEmail retrieves a user by its unique email address.
func (r *Repository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	query := `
		SELECT id, email, name, phone, push_token, slack_webhook_url, telegram_chat_id,
		       preferences, created_at, updated_at
		FROM notification_users
		WHERE email = $1;
	`
	return r.scanOne(ctx, query, email)
}

func (r *Repository) scanOne(ctx context.Context, query string, arg interface{}) (model.User, error) {
	var u model.User
	var prefs []byte

	err := r.db.Master.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.Phone, &u.PushToken, &u.SlackWebhookURL, &u.TelegramChatID,
		&prefs, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to find user: %w", err)
	}

	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return model.User{}, fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
	}

	return u, nil
}

// UpdatePreferences replaces a user's channel preferences.
func (r *Repository) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs model.ChannelPreferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	query := `UPDATE notification_users SET preferences = $1, updated_at = now() WHERE id = $2;`

	res, err := r.db.ExecContext(ctx, query, raw, id)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

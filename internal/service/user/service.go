// Package user is a thin business layer over the user repository, backing
// SPEC_FULL §4.8's /api/users surface: registration and channel preference
// management. Grounded on the teacher's service layer shape, generalized to
// the richer user/preferences model this spec requires.
package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mksenin/notifyhub/internal/model"
)

type repository interface {
	Create(ctx context.Context, u model.User) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	UpdatePreferences(ctx context.Context, id uuid.UUID, prefs model.ChannelPreferences) error
}

// Service wraps the user repository for the HTTP handlers.
type Service struct {
	repo repository
}

// NewService builds a Service.
func NewService(repo repository) *Service {
	return &Service{repo: repo}
}

// Register creates a new user profile.
func (s *Service) Register(ctx context.Context, u model.User) (uuid.UUID, error) {
	id, err := s.repo.Create(ctx, u)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to register user: %w", err)
	}
	return id, nil
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByEmail returns a user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// UpdatePreferences replaces a user's per-channel opt-in preferences.
func (s *Service) UpdatePreferences(ctx context.Context, id uuid.UUID, prefs model.ChannelPreferences) error {
	if err := s.repo.UpdatePreferences(ctx, id, prefs); err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	return nil
}

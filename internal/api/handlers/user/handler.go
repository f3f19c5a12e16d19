// Package user exposes the user/preferences CRUD collaborator described in
// SPEC_FULL §4.8: register, fetch, and update per-channel preferences.
package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/mksenin/notifyhub/internal/api/dto"
	"github.com/mksenin/notifyhub/internal/api/respond"
	"github.com/mksenin/notifyhub/internal/model"
	"github.com/mksenin/notifyhub/internal/repository/user"
)

type service interface {
	Register(ctx context.Context, u model.User) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (model.User, error)
	UpdatePreferences(ctx context.Context, id uuid.UUID, prefs model.ChannelPreferences) error
}

// Handler handles HTTP requests for user registration and preferences.
type Handler struct {
	service   service
	validator *validator.Validate
}

// NewHandler creates a new Handler instance.
func NewHandler(s service, v *validator.Validate) *Handler {
	return &Handler{service: s, validator: v}
}

// Register handles POST /api/users.
func (h *Handler) Register(c *ginext.Context) {
	var req dto.RegisterUserRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		respond.FailWithDetails(c.Writer, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	id, err := h.service.Register(c.Request.Context(), model.User{
		Email:           req.Email,
		Name:            req.Name,
		Phone:           req.Phone,
		PushToken:       req.PushToken,
		SlackWebhookURL: req.SlackWebhookURL,
		TelegramChatID:  req.TelegramChatID,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to register user")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("failed to register user"))
		return
	}

	respond.Created(c.Writer, map[string]string{"id": id.String()})
}

// Get handles GET /api/users/:id.
func (h *Handler) Get(c *ginext.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return
	}

	u, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("user not found"))
			return
		}
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get user")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, u)
}

// UpdatePreferences handles PATCH /api/users/:id/preferences.
func (h *Handler) UpdatePreferences(c *ginext.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return
	}

	var req dto.UpdatePreferencesRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	prefs := model.ChannelPreferences{
		EmailEnabled:    req.EmailEnabled,
		SMSEnabled:      req.SMSEnabled,
		PushEnabled:     req.PushEnabled,
		SlackEnabled:    req.SlackEnabled,
		TelegramEnabled: req.TelegramEnabled,
	}

	if err := h.service.UpdatePreferences(c.Request.Context(), id, prefs); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("user not found"))
			return
		}
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to update preferences")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, map[string]string{"message": "preferences updated"})
}

// Package notification exposes the submission-facing HTTP surface of
// SPEC_FULL §6: multi-channel send, status lookup, per-user listing,
// cancel, and retry. Grounded on the teacher's
// internal/api/handlers/notification/handler.go, generalized from a
// single-channel CreateRequest to the fan-out SendRequest shape and from a
// bare status string to the full StatusResponse projection.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/mksenin/notifyhub/internal/api/dto"
	"github.com/mksenin/notifyhub/internal/api/respond"
	"github.com/mksenin/notifyhub/internal/model"
	"github.com/mksenin/notifyhub/internal/repository/notification"
	notificationsvc "github.com/mksenin/notifyhub/internal/service/notification"
)

// service defines the interface the Handler depends on.
type service interface {
	Submit(ctx context.Context, req notificationsvc.SubmitRequest) ([]uuid.UUID, error)
	GetStatus(ctx context.Context, id uuid.UUID) (model.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Notification, int, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	RetryNotification(ctx context.Context, id uuid.UUID, resetRetryCount bool) error
}

// Handler handles HTTP requests related to notifications.
type Handler struct {
	service   service
	validator *validator.Validate
}

// NewHandler creates a new Handler instance.
func NewHandler(s service, v *validator.Validate) *Handler {
	return &Handler{service: s, validator: v}
}

// Send handles HTTP POST requests to submit a notification across one or
// more channels.
func (h *Handler) Send(c *ginext.Context) {
	var req dto.SendRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode send request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate send request")
		respond.FailWithDetails(c.Writer, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	var userID *uuid.UUID
	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid userId"))
			return
		}
		userID = &id
	}

	var scheduledAt *time.Time
	if req.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid scheduledAt: expected ISO 8601"))
			return
		}
		scheduledAt = &t
	}

	channels := make([]notificationsvc.ChannelRequest, len(req.Channels))
	for i, ch := range req.Channels {
		channels[i] = notificationsvc.ChannelRequest{
			Channel:   model.Channel(ch.Type),
			Recipient: ch.Recipient,
		}
	}

	priority := model.Priority(req.Priority)
	if priority == "" {
		priority = model.PriorityNormal
	}

	ids, err := h.service.Submit(c.Request.Context(), notificationsvc.SubmitRequest{
		UserID:      userID,
		Subject:     req.Subject,
		Content:     req.Message,
		Channels:    channels,
		Priority:    priority,
		ScheduledAt: scheduledAt,
		Metadata:    req.Metadata,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to submit notification")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("failed to submit notification"))
		return
	}

	idStrs := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil {
			idStrs = append(idStrs, id.String())
		}
	}

	respond.Created(c.Writer, dto.SendResponse{
		Success:         true,
		NotificationIDs: idStrs,
		Message:         "notification submitted",
	})
}

// Status handles GET /api/notifications/:id/status.
func (h *Handler) Status(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	n, err := h.service.GetStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
			return
		}
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to get notification status")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	resp := dto.StatusResponse{
		ID:          n.ID.String(),
		Status:      string(n.Status),
		Channels:    []dto.ChannelStatus{{Type: string(n.Channel), Status: string(n.Status)}},
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
		ScheduledAt: n.ScheduledAt,
		RetryCount:  n.RetryCount,
	}
	if n.UserID != nil {
		resp.UserID = n.UserID.String()
	}

	respond.OK(c.Writer, resp)
}

// ListByUser handles GET /api/notifications/user/:userId?page&limit.
func (h *Handler) ListByUser(c *ginext.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid userId"))
		return
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	list, total, err := h.service.ListByUser(c.Request.Context(), userID, page, limit)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("userId", userID.String()).Msg("failed to list user notifications")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, map[string]any{
		"items": list,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// Retry handles POST /api/notifications/:id/retry.
func (h *Handler) Retry(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.RetryRequest
	if c.Request.ContentLength > 0 {
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
			respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
			return
		}
	}

	if err := h.service.RetryNotification(c.Request.Context(), id, req.ResetRetryCount); err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
			return
		}
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to retry notification")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, map[string]string{"message": "notification re-enqueued"})
}

// Cancel handles DELETE /api/notifications/:id.
func (h *Handler) Cancel(c *ginext.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Cancel(c.Request.Context(), id); err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("notification not found"))
			return
		}
		if errors.Is(err, notificationsvc.ErrCannotCancel) {
			respond.Fail(c.Writer, http.StatusConflict, err)
			return
		}
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cancel notification")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, map[string]string{"message": "notification cancelled"})
}

func parseID(c *ginext.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *ginext.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n <= 0 {
		return def
	}
	return n
}

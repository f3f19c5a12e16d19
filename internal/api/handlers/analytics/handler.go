// Package analytics exposes the reporting HTTP surface of SPEC_FULL §6:
// 24-hour delivery summary, recent errors, and recent activity feeds.
package analytics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/mksenin/notifyhub/internal/api/respond"
	"github.com/mksenin/notifyhub/internal/model"
	"github.com/mksenin/notifyhub/internal/repository/notification"
)

type service interface {
	Summary(ctx context.Context) (notification.Stats, error)
	RecentActivity(ctx context.Context, limit int) ([]model.NotificationLog, error)
	RecentErrors(ctx context.Context, limit int) ([]model.NotificationLog, error)
}

// Handler handles HTTP requests for delivery analytics.
type Handler struct {
	service service
}

// NewHandler creates a new Handler instance.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Summary handles GET /api/analytics.
func (h *Handler) Summary(c *ginext.Context) {
	stats, err := h.service.Summary(c.Request.Context())
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to compute analytics summary")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}
	respond.OK(c.Writer, stats)
}

// Errors handles GET /api/analytics/errors?limit.
func (h *Handler) Errors(c *ginext.Context) {
	limit := queryInt(c, "limit", 50)

	logs, err := h.service.RecentErrors(c.Request.Context(), limit)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list recent errors")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}
	respond.OK(c.Writer, logs)
}

// Logs handles GET /api/analytics/logs?limit.
func (h *Handler) Logs(c *ginext.Context) {
	limit := queryInt(c, "limit", 50)

	logs, err := h.service.RecentActivity(c.Request.Context(), limit)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list recent activity")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}
	respond.OK(c.Writer, logs)
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

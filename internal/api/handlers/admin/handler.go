// Package admin exposes the queue-control and health HTTP surface of
// SPEC_FULL §4.6/§6: stats, pause/resume, clear-failed, retry-failed, and
// aggregated channel health.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/mksenin/notifyhub/internal/admin"
	"github.com/mksenin/notifyhub/internal/api/dto"
	"github.com/mksenin/notifyhub/internal/api/respond"
	"github.com/mksenin/notifyhub/internal/rabbitmq/queue"
)

type service interface {
	QueueStats() (queue.Stats, error)
	SystemHealth(ctx context.Context) admin.SystemHealth
	Pause()
	Resume()
	ClearFailed(ctx context.Context, olderThan time.Duration) (int, error)
	RetryFailed(ctx context.Context, strategy retry.Strategy) (int, error)
}

// Handler handles HTTP requests for queue operations and system health.
type Handler struct {
	service     service
	retryPolicy retry.Strategy
}

// NewHandler creates a new Handler instance.
func NewHandler(s service, retryPolicy retry.Strategy) *Handler {
	return &Handler{service: s, retryPolicy: retryPolicy}
}

// Stats handles GET /api/queue/stats.
func (h *Handler) Stats(c *ginext.Context) {
	stats, err := h.service.QueueStats()
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to read queue stats")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}
	respond.OK(c.Writer, stats)
}

// Health handles GET /api/queue/health.
func (h *Handler) Health(c *ginext.Context) {
	respond.OK(c.Writer, h.service.SystemHealth(c.Request.Context()))
}

// Pause handles POST /api/queue/pause.
func (h *Handler) Pause(c *ginext.Context) {
	h.service.Pause()
	respond.OK(c.Writer, map[string]string{"message": "queue paused"})
}

// Resume handles POST /api/queue/resume.
func (h *Handler) Resume(c *ginext.Context) {
	h.service.Resume()
	respond.OK(c.Writer, map[string]string{"message": "queue resumed"})
}

// ClearFailed handles POST /api/queue/clear-failed.
func (h *Handler) ClearFailed(c *ginext.Context) {
	var req dto.ClearFailedRequest
	if c.Request.ContentLength > 0 {
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
			respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
			return
		}
	}

	olderThan := time.Duration(req.OlderThanMinutes) * time.Minute

	purged, err := h.service.ClearFailed(c.Request.Context(), olderThan)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to clear failed messages")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, map[string]any{"purged": purged})
}

// RetryFailed handles POST /api/queue/retry-failed, re-publishing every
// dead-lettered message back onto the main queue.
func (h *Handler) RetryFailed(c *ginext.Context) {
	requeued, err := h.service.RetryFailed(c.Request.Context(), h.retryPolicy)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to retry failed messages")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, map[string]any{"requeued": requeued})
}

// Package notification is the submission-facing business layer: fan-out of
// one request into one row per channel, status lookups (cache-through), and
// the cancel/retry operations. Grounded on the teacher's
// internal/service/notification/service.go, generalized from a
// single-channel create to multi-channel fan-out and from the teacher's
// bare status string to the model.Status state machine.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/mksenin/notifyhub/internal/cache"
	"github.com/mksenin/notifyhub/internal/model"
	"github.com/mksenin/notifyhub/internal/rabbitmq/queue"
	"github.com/mksenin/notifyhub/internal/retrypolicy"
)

// ErrCannotCancel is returned when a row is no longer pending/queued.
var ErrCannotCancel = errors.New("notification cannot be cancelled in its current state")

type notificationRepository interface {
	CreateNotification(ctx context.Context, n model.Notification) (uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus model.Status, logStatus model.LogStatus, logMessage string, errorDetails, providerResponse *string) error
	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Notification, int, error)
}

type userRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (model.User, error)
}

type publisher interface {
	Publish(ctx context.Context, msg queue.Message, delay time.Duration, strategy retry.Strategy) error
	PublishBulk(ctx context.Context, msgs []queue.Message, strategy retry.Strategy) error
}

type statusCache interface {
	Set(ctx context.Context, id string, status model.Status) error
	Get(ctx context.Context, id string) (model.Status, error)
}

// ChannelRequest is one requested channel within a submission.
type ChannelRequest struct {
	Channel   model.Channel
	Recipient string // if empty, resolved from the user's profile
}

// SubmitRequest fans out into one notification row per ChannelRequest.
type SubmitRequest struct {
	UserID      *uuid.UUID
	Subject     string
	Content     string
	Channels    []ChannelRequest
	Priority    model.Priority
	ScheduledAt *time.Time
	Metadata    map[string]string
}

// Service is the notification submission/status/cancel/retry business layer.
type Service struct {
	repo         notificationRepository
	users        userRepository
	queue        publisher
	cache        statusCache
	publishStrat retry.Strategy
}

// NewService builds a Service.
func NewService(repo notificationRepository, users userRepository, q publisher, c statusCache, publishStrategy retry.Strategy) *Service {
	return &Service{repo: repo, users: users, queue: q, cache: c, publishStrat: publishStrategy}
}

// Submit creates one row per requested channel and enqueues each, skipping
// channels a resolved user has opted out of. It returns the created
// notification IDs in request order (uuid.Nil entry for a skipped channel).
func (s *Service) Submit(ctx context.Context, req SubmitRequest) ([]uuid.UUID, error) {
	if len(req.Channels) == 0 {
		return nil, fmt.Errorf("at least one channel is required")
	}

	var user *model.User
	if req.UserID != nil {
		u, err := s.users.FindByID(ctx, *req.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user: %w", err)
		}
		user = &u
	}

	scheduledAt := time.Now()
	if req.ScheduledAt != nil {
		scheduledAt = *req.ScheduledAt
	}

	ids := make([]uuid.UUID, len(req.Channels))
	var msgs []queue.Message

	for i, chReq := range req.Channels {
		recipient := chReq.Recipient
		if recipient == "" && user != nil {
			addr, enabled := user.RecipientFor(chReq.Channel)
			if !enabled {
				zlog.Logger.Info().Str("channel", string(chReq.Channel)).Msg("user opted out of channel, skipping")
				continue
			}
			recipient = addr
		}
		if recipient == "" {
			zlog.Logger.Warn().Str("channel", string(chReq.Channel)).Msg("no recipient resolved, skipping")
			continue
		}

		n := model.Notification{
			UserID:      req.UserID,
			Channel:     chReq.Channel,
			Recipient:   recipient,
			Subject:     req.Subject,
			Content:     req.Content,
			Status:      model.StatusPending,
			Priority:    req.Priority,
			MaxRetries:  retrypolicy.NewEngine().MaxRetriesFor(chReq.Channel),
			ScheduledAt: scheduledAt,
		}

		id, err := s.repo.CreateNotification(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("failed to create notification for channel %s: %w", chReq.Channel, err)
		}
		ids[i] = id

		if err := s.cache.Set(ctx, id.String(), model.StatusPending); err != nil {
			zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
		}

		msgs = append(msgs, queue.Message{
			JobID:      id.String(),
			Channel:    chReq.Channel,
			Recipient:  recipient,
			Subject:    req.Subject,
			Content:    req.Content,
			Priority:   req.Priority,
			Metadata:   req.Metadata,
			EnqueuedAt: time.Now(),
		})
	}

	if len(msgs) == 0 {
		return ids, fmt.Errorf("no eligible recipients resolved for any requested channel")
	}

	// scheduled submissions delay at the broker; immediate ones go straight
	// to the main queue.
	var delay time.Duration
	if scheduledAt.After(time.Now()) {
		delay = time.Until(scheduledAt)
	}
	if delay > 0 {
		for _, m := range msgs {
			if err := s.queue.Publish(ctx, m, delay, s.publishStrat); err != nil {
				return ids, fmt.Errorf("failed to enqueue scheduled notification %s: %w", m.JobID, err)
			}
		}
	} else if err := s.queue.PublishBulk(ctx, msgs, s.publishStrat); err != nil {
		return ids, fmt.Errorf("failed to enqueue notifications: %w", err)
	}

	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if err := s.repo.UpdateStatus(ctx, id, model.StatusQueued, model.LogQueued, "enqueued", nil, nil); err != nil {
			zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to mark queued")
		}
		if err := s.cache.Set(ctx, id.String(), model.StatusQueued); err != nil {
			zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
		}
	}

	return ids, nil
}

// GetStatus loads a notification from the relational store and, when the
// cache holds a status for it, returns that cached status in place of the
// stored one. On a cache miss the stored status is written to the cache.
func (s *Service) GetStatus(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}

	cached, err := s.cache.Get(ctx, id.String())
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to read cached status")
		}
		if setErr := s.cache.Set(ctx, id.String(), n.Status); setErr != nil {
			zlog.Logger.Error().Err(setErr).Str("id", id.String()).Msg("failed to cache notification status")
		}
		return n, nil
	}

	n.Status = cached
	return n, nil
}

// ListByUser returns one page of a user's notifications.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]model.Notification, int, error) {
	return s.repo.ListByUser(ctx, userID, page, limit)
}

// Cancel transitions a pending/queued row to cancelled. It fails if the row
// has already moved past those states.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load notification: %w", err)
	}

	if n.Status != model.StatusPending && n.Status != model.StatusQueued {
		return ErrCannotCancel
	}

	if err := s.repo.UpdateStatus(ctx, id, model.StatusCancelled, model.LogCancelled, "cancelled by user", nil, nil); err != nil {
		return fmt.Errorf("failed to cancel notification: %w", err)
	}
	if err := s.cache.Set(ctx, id.String(), model.StatusCancelled); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
	}

	return nil
}

// RetryNotification re-enqueues a notification regardless of broker state.
// If resetRetryCount is true the retry budget reset is recorded in the log
// trail; the repository's retry_count column only ever increments, so a
// true reset is communicated to the dispatcher operator via the log entry
// rather than a column rewrite.
func (s *Service) RetryNotification(ctx context.Context, id uuid.UUID, resetRetryCount bool) error {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load notification: %w", err)
	}

	if n.Status == model.StatusSent || n.Status == model.StatusCancelled {
		return fmt.Errorf("notification %s is in terminal state %s and cannot be retried", id, n.Status)
	}

	logMsg := "manually retried"
	if resetRetryCount {
		logMsg = "manually retried with retry count reset"
	}

	if err := s.repo.UpdateStatus(ctx, id, model.StatusQueued, model.LogQueued, logMsg, nil, nil); err != nil {
		return fmt.Errorf("failed to mark queued: %w", err)
	}

	msg := queue.Message{
		JobID:      id.String(),
		Channel:    n.Channel,
		Recipient:  n.Recipient,
		Subject:    n.Subject,
		Content:    n.Content,
		Priority:   n.Priority,
		EnqueuedAt: time.Now(),
	}

	if err := s.queue.Publish(ctx, msg, 0, s.publishStrat); err != nil {
		return fmt.Errorf("failed to republish notification: %w", err)
	}

	if err := s.cache.Set(ctx, id.String(), model.StatusQueued); err != nil {
		zlog.Logger.Error().Err(err).Str("id", id.String()).Msg("failed to cache notification status")
	}

	return nil
}

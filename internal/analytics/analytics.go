// Package analytics backs SPEC_FULL §4.6: 24-hour delivery statistics
// grouped by status/channel/hour, plus recent activity and error feeds.
// Grounded on the teacher's read-side repository queries, generalized from
// the teacher's absent analytics surface into a thin service over
// notification.Repository.StatsLast24h and notificationlog.Repository's
// read queries.
package analytics

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mksenin/notifyhub/internal/model"
	"github.com/mksenin/notifyhub/internal/repository/notification"
)

type statsRepository interface {
	StatsLast24h(ctx context.Context) (notification.Stats, error)
}

type logRepository interface {
	ListRecent(ctx context.Context, limit int) ([]model.NotificationLog, error)
	ListErrors(ctx context.Context, limit int) ([]model.NotificationLog, error)
	ListByNotification(ctx context.Context, notificationID uuid.UUID) ([]model.NotificationLog, error)
}

// Service is the analytics/reporting business layer.
type Service struct {
	stats statsRepository
	logs  logRepository
}

// NewService builds an analytics Service.
func NewService(stats statsRepository, logs logRepository) *Service {
	return &Service{stats: stats, logs: logs}
}

// Summary returns the 24-hour delivery statistics.
func (s *Service) Summary(ctx context.Context) (notification.Stats, error) {
	stats, err := s.stats.StatsLast24h(ctx)
	if err != nil {
		return notification.Stats{}, fmt.Errorf("failed to compute summary: %w", err)
	}
	return stats, nil
}

// RecentActivity returns the most recent log rows across all notifications.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]model.NotificationLog, error) {
	logs, err := s.logs.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent activity: %w", err)
	}
	return logs, nil
}

// RecentErrors returns the most recent error-status log rows.
func (s *Service) RecentErrors(ctx context.Context, limit int) ([]model.NotificationLog, error) {
	logs, err := s.logs.ListErrors(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent errors: %w", err)
	}
	return logs, nil
}

// History returns the full log trail for one notification, oldest first.
func (s *Service) History(ctx context.Context, notificationID uuid.UUID) ([]model.NotificationLog, error) {
	logs, err := s.logs.ListByNotification(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification history: %w", err)
	}
	return logs, nil
}

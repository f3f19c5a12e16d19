// Package admin backs the operational surface of SPEC_FULL §4.6: queue
// depth introspection, adapter health aggregation, and the pause/resume/
// clear-failed/retry-failed queue controls. Grounded on the teacher's
// worker/notifier.go for adapter status aggregation and on
// internal/rabbitmq/queue for broker control, generalized from the
// teacher's single-notifier health check to a per-channel adapter registry.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/wb-go/wbf/retry"

	"github.com/mksenin/notifyhub/internal/adapter"
	"github.com/mksenin/notifyhub/internal/model"
	"github.com/mksenin/notifyhub/internal/rabbitmq/queue"
)

type queueController interface {
	Inspect() (queue.Stats, error)
	Pause()
	Resume()
	Clean(ctx context.Context, olderThan time.Duration) (int, error)
	RetryAll(ctx context.Context, strategy retry.Strategy) (int, error)
}

// ChannelHealth is one adapter's health-check outcome.
type ChannelHealth struct {
	Channel    model.Channel
	Configured bool
	Healthy    bool
	Error      string
}

// SystemHealth is the aggregated health snapshot returned by the admin
// health endpoint.
type SystemHealth struct {
	Queue    queue.Stats
	Channels []ChannelHealth
}

// Service is the admin/operational business layer.
type Service struct {
	queue    queueController
	adapters adapter.Registry
}

// NewService builds an admin Service.
func NewService(q queueController, adapters adapter.Registry) *Service {
	return &Service{queue: q, adapters: adapters}
}

// QueueStats returns the current queue depth/consumer/DLQ snapshot.
func (s *Service) QueueStats() (queue.Stats, error) {
	stats, err := s.queue.Inspect()
	if err != nil {
		return queue.Stats{}, fmt.Errorf("failed to inspect queue: %w", err)
	}
	return stats, nil
}

// SystemHealth probes every registered adapter and folds in queue stats.
// Adapter probes run sequentially since Verify calls are cheap and this
// endpoint is not on any hot path.
func (s *Service) SystemHealth(ctx context.Context) SystemHealth {
	health := SystemHealth{}

	if stats, err := s.queue.Inspect(); err == nil {
		health.Queue = stats
	}

	for ch, a := range s.adapters {
		status := a.Status()
		ch := ChannelHealth{Channel: ch, Configured: status.Configured, Healthy: true}
		if err := a.Verify(ctx); err != nil {
			ch.Healthy = false
			ch.Error = err.Error()
		}
		health.Channels = append(health.Channels, ch)
	}

	return health
}

// Pause stops the broker from handing out new deliveries.
func (s *Service) Pause() { s.queue.Pause() }

// Resume re-enables delivery.
func (s *Service) Resume() { s.queue.Resume() }

// ClearFailed drops dead-letter messages older than olderThan.
func (s *Service) ClearFailed(ctx context.Context, olderThan time.Duration) (int, error) {
	purged, err := s.queue.Clean(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to clear failed messages: %w", err)
	}
	return purged, nil
}

// RetryFailed republishes every dead-lettered message back onto the main
// queue via the broker's own retry primitive, per SPEC_FULL §4.4. It
// returns the number of messages requeued.
func (s *Service) RetryFailed(ctx context.Context, strategy retry.Strategy) (int, error) {
	requeued, err := s.queue.RetryAll(ctx, strategy)
	if err != nil {
		return requeued, fmt.Errorf("failed to retry failed messages: %w", err)
	}
	return requeued, nil
}

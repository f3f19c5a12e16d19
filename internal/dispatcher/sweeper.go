package dispatcher

import (
	"context"
	"time"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/mksenin/notifyhub/internal/model"
	"github.com/mksenin/notifyhub/internal/rabbitmq/queue"
)

// Sweeper reconciles rows a dead worker abandoned mid-processing: a
// "processing" row whose last_processed_at is older than staleAfter is
// reclaimed back to pending and its job is republished, per SPEC_FULL §4.4's
// stall recovery requirement. This reconciles the relational store (source
// of truth for "what needs to happen") against the broker (source of truth
// for "what's currently claimed").
type Sweeper struct {
	repo       repo
	queue      broker
	interval   time.Duration
	staleAfter time.Duration
}

// NewSweeper builds a Sweeper. interval is how often it scans; staleAfter is
// how long a row may sit in "processing" before being reclaimed.
func NewSweeper(r repo, q broker, interval, staleAfter time.Duration) *Sweeper {
	return &Sweeper{repo: r, queue: q, interval: interval, staleAfter: staleAfter}
}

// Run scans on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	minutes := int(s.staleAfter.Minutes())
	if minutes < 1 {
		minutes = 1
	}

	stale, err := s.repo.ListStale(ctx, minutes)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("stall sweeper: failed to list stale notifications")
		return
	}

	for _, n := range stale {
		zlog.Logger.Warn().Str("id", n.ID.String()).Msg("stall sweeper: reclaiming abandoned notification")

		if err := s.repo.UpdateStatus(ctx, n.ID, model.StatusPending, model.LogStallRecovered, "reclaimed by stall sweeper", nil, nil); err != nil {
			zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("stall sweeper: failed to reset status")
			continue
		}

		msg := queue.Message{
			JobID:      n.ID.String(),
			Channel:    n.Channel,
			Recipient:  n.Recipient,
			Subject:    n.Subject,
			Content:    n.Content,
			Priority:   n.Priority,
			EnqueuedAt: time.Now(),
		}
		if err := s.queue.Publish(ctx, msg, 0, retry.Strategy{Attempts: 1}); err != nil {
			zlog.Logger.Error().Err(err).Str("id", n.ID.String()).Msg("stall sweeper: failed to republish")
		}
	}
}

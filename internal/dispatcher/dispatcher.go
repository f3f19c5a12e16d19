// Package dispatcher is the worker pool that drives jobs off the queue
// through an adapter and back into the relational store, per SPEC_FULL
// §4.4. It unifies what the teacher split across internal/worker (the pool
// loop) and internal/rabbitmq/handlers/notification (the per-message send
// and status update) into one code path, per this project's resolution of
// the predecessor's "two code paths for one job" open question.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/time/rate"

	"github.com/mksenin/notifyhub/internal/adapter"
	"github.com/mksenin/notifyhub/internal/model"
	"github.com/mksenin/notifyhub/internal/rabbitmq/queue"
	"github.com/mksenin/notifyhub/internal/retrypolicy"
)

// repo is the subset of notification.Repository the dispatcher needs.
type repo interface {
	FindByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus model.Status, logStatus model.LogStatus, logMessage string, errorDetails, providerResponse *string) error
	AppendLog(ctx context.Context, id uuid.UUID, logStatus model.LogStatus, message string, errorDetails, providerResponse *string) error
	UpdateLastProcessed(ctx context.Context, id uuid.UUID) error
	IncrementRetryCount(ctx context.Context, id uuid.UUID) error
	ListStale(ctx context.Context, minutes int) ([]model.Notification, error)
}

// broker is the subset of queue.Queue the dispatcher needs.
type broker interface {
	Consume(ctx context.Context, consumerTag string, out chan<- queue.Delivery) error
	Publish(ctx context.Context, msg queue.Message, delay time.Duration, strategy retry.Strategy) error
	MarkCompleted()
	MarkFailed()
}

// Options configures a Pool.
type Options struct {
	Workers         int
	RateLimit       rate.Limit // jobs per second across the whole pool
	RateBurst       int
	AdapterTimeout  time.Duration
	PublishStrategy retry.Strategy
}

// DefaultOptions matches SPEC_FULL §4.4: N=10 workers, 100 jobs/60s pool-wide.
func DefaultOptions() Options {
	return Options{
		Workers:        10,
		RateLimit:      rate.Limit(100.0 / 60.0),
		RateBurst:      10,
		AdapterTimeout: 30 * time.Second,
	}
}

// Pool is the worker pool bound to one broker queue.
type Pool struct {
	queue    broker
	repo     repo
	adapters adapter.Registry
	retries  *retrypolicy.Engine
	limiter  *rate.Limiter
	opts     Options
}

// New builds a Pool.
func New(q broker, r repo, adapters adapter.Registry, retries *retrypolicy.Engine, opts Options) *Pool {
	return &Pool{
		queue:    q,
		repo:     r,
		adapters: adapters,
		retries:  retries,
		limiter:  rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		opts:     opts,
	}
}

// Run starts consuming and processing jobs until ctx is cancelled, then
// waits for in-flight jobs to drain.
func (p *Pool) Run(ctx context.Context) {
	deliveries := make(chan queue.Delivery, p.opts.Workers*4)

	if err := p.queue.Consume(ctx, "notifyhub-dispatcher", deliveries); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to start consuming")
		return
	}

	var wg sync.WaitGroup
	wg.Add(p.opts.Workers)
	for i := 0; i < p.opts.Workers; i++ {
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id, deliveries)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	zlog.Logger.Info().Msg("dispatcher pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int, deliveries <-chan queue.Delivery) {
	zlog.Logger.Info().Int("worker", id).Msg("dispatcher worker started")

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}

			if err := p.limiter.Wait(ctx); err != nil {
				_ = d.Nack(true)
				return
			}

			p.process(ctx, d)
		}
	}
}

// process implements the claim-and-process protocol of SPEC_FULL §4.4 for
// one job popped off the broker.
func (p *Pool) process(ctx context.Context, d queue.Delivery) {
	jobID, err := uuid.Parse(d.Message.JobID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", d.Message.JobID).Msg("invalid job id, dropping")
		_ = d.Nack(false)
		return
	}

	n, err := p.repo.FindByID(ctx, jobID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", jobID.String()).Msg("failed to load notification, dropping")
		_ = d.Nack(false)
		return
	}

	// Deduplicate replays: a terminal row should never be reprocessed.
	if n.Status.Terminal() {
		zlog.Logger.Info().Str("job_id", jobID.String()).Str("status", string(n.Status)).Msg("skipping terminal notification")
		_ = d.Ack()
		return
	}

	if err := p.repo.UpdateLastProcessed(ctx, jobID); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", jobID.String()).Msg("failed to touch last_processed_at")
	}
	if err := p.repo.UpdateStatus(ctx, jobID, model.StatusProcessing, model.LogProcessing, "claimed by worker", nil, nil); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", jobID.String()).Msg("failed to mark processing")
	}

	ad, err := p.adapters.Get(n.Channel)
	if err != nil {
		reason := err.Error()
		if logErr := p.repo.AppendLog(ctx, jobID, model.LogError, reason, &reason, nil); logErr != nil {
			zlog.Logger.Error().Err(logErr).Str("job_id", jobID.String()).Msg("failed to append error log")
		}
		p.fail(ctx, d, jobID, reason, nil)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.opts.AdapterTimeout)
	res, sendErr := ad.Send(sendCtx, n.Recipient, n.Subject, n.Content, adapterMetadata(d.Message.Metadata))
	cancel()

	if sendErr == nil {
		providerResp := res.ProviderResponse
		if err := p.repo.UpdateStatus(ctx, jobID, model.StatusSent, model.LogDelivered, "delivered via "+string(n.Channel), nil, &providerResp); err != nil {
			zlog.Logger.Error().Err(err).Str("job_id", jobID.String()).Msg("failed to mark sent")
		}
		p.queue.MarkCompleted()
		_ = d.Ack()
		return
	}

	// SPEC_FULL §4.4: every send failure appends an "error" log before the
	// retry/fail policy decision, independent of which way that decision goes.
	reason := sendErr.Error()
	if logErr := p.repo.AppendLog(ctx, jobID, model.LogError, reason, &reason, nil); logErr != nil {
		zlog.Logger.Error().Err(logErr).Str("job_id", jobID.String()).Msg("failed to append error log")
	}

	switch {
	case adapter.IsPermanent(sendErr), adapter.IsMisconfigured(sendErr):
		p.fail(ctx, d, jobID, reason, nil)
	default: // transient
		p.retry(ctx, d, jobID, n, reason)
	}
}

func (p *Pool) fail(ctx context.Context, d queue.Delivery, jobID uuid.UUID, reason string, providerResponse *string) {
	if err := p.repo.UpdateStatus(ctx, jobID, model.StatusFailed, model.LogFailed, reason, &reason, providerResponse); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", jobID.String()).Msg("failed to mark failed")
	}
	p.queue.MarkFailed()
	_ = d.Ack()
}

func (p *Pool) retry(ctx context.Context, d queue.Delivery, jobID uuid.UUID, n model.Notification, reason string) {
	nextAttempt := n.RetryCount + 1
	if nextAttempt > n.MaxRetries {
		p.fail(ctx, d, jobID, "retries exhausted: "+reason, nil)
		return
	}

	if err := p.repo.IncrementRetryCount(ctx, jobID); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", jobID.String()).Msg("failed to increment retry count")
	}

	if err := p.repo.UpdateStatus(ctx, jobID, model.StatusRetrying, model.LogRetryScheduled, reason, &reason, nil); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", jobID.String()).Msg("failed to mark retrying")
	}

	delay := p.retries.For(n.Channel).Delay(nextAttempt)
	msg := queue.Message{
		JobID:      jobID.String(),
		Channel:    n.Channel,
		Recipient:  n.Recipient,
		Subject:    n.Subject,
		Content:    n.Content,
		Priority:   n.Priority,
		Metadata:   d.Message.Metadata,
		EnqueuedAt: time.Now(),
	}

	if err := p.queue.Publish(ctx, msg, delay, p.opts.PublishStrategy); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", jobID.String()).Msg("failed to republish for retry")
		_ = d.Nack(true)
		return
	}

	_ = d.Ack()
}

func adapterMetadata(m map[string]string) adapter.Metadata {
	if m == nil {
		return nil
	}
	out := make(adapter.Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wb-go/wbf/retry"

	"github.com/mksenin/notifyhub/internal/adapter"
	"github.com/mksenin/notifyhub/internal/model"
	"github.com/mksenin/notifyhub/internal/rabbitmq/queue"
)

type fakeQueue struct {
	stats      queue.Stats
	inspectErr error
	paused     bool
	resumed    bool
	cleaned    int
	requeued   int
	retryErr   error
}

func (f *fakeQueue) Inspect() (queue.Stats, error) { return f.stats, f.inspectErr }
func (f *fakeQueue) Pause()                        { f.paused = true }
func (f *fakeQueue) Resume()                       { f.resumed = true }
func (f *fakeQueue) Clean(ctx context.Context, olderThan time.Duration) (int, error) {
	return f.cleaned, nil
}
func (f *fakeQueue) RetryAll(ctx context.Context, strategy retry.Strategy) (int, error) {
	return f.requeued, f.retryErr
}

type fakeAdapter struct {
	status adapter.Status
	verErr error
}

func (a *fakeAdapter) Send(ctx context.Context, recipient, subject, content string, meta adapter.Metadata) (adapter.SendResult, error) {
	return adapter.SendResult{}, nil
}
func (a *fakeAdapter) Verify(ctx context.Context) error { return a.verErr }
func (a *fakeAdapter) Status() adapter.Status           { return a.status }

func TestSystemHealth_AggregatesAdapters(t *testing.T) {
	q := &fakeQueue{stats: queue.Stats{Waiting: 3}}
	reg := adapter.Registry{
		model.ChannelEmail: &fakeAdapter{status: adapter.Status{Configured: true}},
		model.ChannelSMS:   &fakeAdapter{status: adapter.Status{Configured: false}, verErr: errors.New("missing credentials")},
	}

	svc := NewService(q, reg)
	health := svc.SystemHealth(context.Background())

	if health.Queue.Waiting != 3 {
		t.Fatalf("expected queue stats folded in, got %+v", health.Queue)
	}
	if len(health.Channels) != 2 {
		t.Fatalf("expected 2 channel health entries, got %d", len(health.Channels))
	}

	var sawUnhealthy bool
	for _, ch := range health.Channels {
		if ch.Channel == model.ChannelSMS {
			if ch.Healthy {
				t.Fatalf("expected sms channel unhealthy")
			}
			sawUnhealthy = true
		}
	}
	if !sawUnhealthy {
		t.Fatal("expected to see the sms channel in the health report")
	}
}

func TestPauseResume(t *testing.T) {
	q := &fakeQueue{}
	svc := NewService(q, adapter.Registry{})

	svc.Pause()
	if !q.paused {
		t.Fatal("expected queue paused")
	}

	svc.Resume()
	if !q.resumed {
		t.Fatal("expected queue resumed")
	}
}

func TestClearFailed(t *testing.T) {
	q := &fakeQueue{cleaned: 5}
	svc := NewService(q, adapter.Registry{})

	n, err := svc.ClearFailed(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 purged, got %d", n)
	}
}

func TestRetryFailed_RequeuesEverything(t *testing.T) {
	q := &fakeQueue{requeued: 7}
	svc := NewService(q, adapter.Registry{})

	n, err := svc.RetryFailed(context.Background(), retry.Strategy{Attempts: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7 requeued, got %d", n)
	}
}

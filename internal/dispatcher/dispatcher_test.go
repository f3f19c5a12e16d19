package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/retry"

	"github.com/mksenin/notifyhub/internal/adapter"
	"github.com/mksenin/notifyhub/internal/model"
	"github.com/mksenin/notifyhub/internal/rabbitmq/queue"
	"github.com/mksenin/notifyhub/internal/retrypolicy"
)

type fakeRepo struct {
	notifications map[uuid.UUID]model.Notification
	statusUpdates []model.Status
	logsAppended  []model.LogStatus
}

func newFakeRepo(n model.Notification) *fakeRepo {
	return &fakeRepo{notifications: map[uuid.UUID]model.Notification{n.ID: n}}
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	n, ok := f.notifications[id]
	if !ok {
		return model.Notification{}, fakeNotFound{}
	}
	return n, nil
}

type fakeNotFound struct{}

func (fakeNotFound) Error() string { return "not found" }

func (f *fakeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus model.Status, logStatus model.LogStatus, logMessage string, errorDetails, providerResponse *string) error {
	f.statusUpdates = append(f.statusUpdates, newStatus)
	f.logsAppended = append(f.logsAppended, logStatus)
	n := f.notifications[id]
	n.Status = newStatus
	f.notifications[id] = n
	return nil
}

func (f *fakeRepo) AppendLog(ctx context.Context, id uuid.UUID, logStatus model.LogStatus, message string, errorDetails, providerResponse *string) error {
	f.logsAppended = append(f.logsAppended, logStatus)
	return nil
}

func (f *fakeRepo) UpdateLastProcessed(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeRepo) IncrementRetryCount(ctx context.Context, id uuid.UUID) error {
	n := f.notifications[id]
	n.RetryCount++
	f.notifications[id] = n
	return nil
}

func (f *fakeRepo) ListStale(ctx context.Context, minutes int) ([]model.Notification, error) {
	return nil, nil
}

type fakeBroker struct {
	completed  int
	failed     int
	published  []queue.Message
	publishErr error
}

func (f *fakeBroker) Consume(ctx context.Context, consumerTag string, out chan<- queue.Delivery) error {
	close(out)
	return nil
}

func (f *fakeBroker) Publish(ctx context.Context, msg queue.Message, delay time.Duration, strategy retry.Strategy) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeBroker) MarkCompleted() { f.completed++ }
func (f *fakeBroker) MarkFailed()    { f.failed++ }

type fakeAdapter struct {
	err    error
	result adapter.SendResult
}

func (a *fakeAdapter) Send(ctx context.Context, recipient, subject, content string, meta adapter.Metadata) (adapter.SendResult, error) {
	return a.result, a.err
}
func (a *fakeAdapter) Verify(ctx context.Context) error { return nil }
func (a *fakeAdapter) Status() adapter.Status           { return adapter.Status{Configured: true} }

func testDelivery(jobID string) queue.Delivery {
	raw := amqp.Delivery{Acknowledger: ackRecorder{}}
	return queue.NewDelivery(queue.Message{JobID: jobID}, raw)
}

// ackRecorder is a no-op amqp.Acknowledger so Ack/Nack don't panic outside a
// real channel.
type ackRecorder struct{}

func (ackRecorder) Ack(tag uint64, multiple bool) error               { return nil }
func (ackRecorder) Nack(tag uint64, multiple bool, requeue bool) error { return nil }
func (ackRecorder) Reject(tag uint64, requeue bool) error              { return nil }

func TestPool_Process_Success(t *testing.T) {
	id := uuid.New()
	n := model.Notification{ID: id, Channel: model.ChannelEmail, Status: model.StatusQueued, MaxRetries: 3}

	r := newFakeRepo(n)
	b := &fakeBroker{}
	reg := adapter.Registry{model.ChannelEmail: &fakeAdapter{result: adapter.SendResult{MessageID: "m-1"}}}

	p := New(b, r, reg, nil, DefaultOptions())
	p.process(context.Background(), testDelivery(id.String()))

	if r.notifications[id].Status != model.StatusSent {
		t.Fatalf("expected sent, got %s", r.notifications[id].Status)
	}
	if b.completed != 1 {
		t.Fatalf("expected MarkCompleted to be called once, got %d", b.completed)
	}
}

func TestPool_Process_PermanentFailure(t *testing.T) {
	id := uuid.New()
	n := model.Notification{ID: id, Channel: model.ChannelEmail, Status: model.StatusQueued, MaxRetries: 3}

	r := newFakeRepo(n)
	b := &fakeBroker{}
	reg := adapter.Registry{model.ChannelEmail: &fakeAdapter{err: adapter.Permanent("bad recipient", nil)}}

	p := New(b, r, reg, nil, DefaultOptions())
	p.process(context.Background(), testDelivery(id.String()))

	if r.notifications[id].Status != model.StatusFailed {
		t.Fatalf("expected failed, got %s", r.notifications[id].Status)
	}
	if b.failed != 1 {
		t.Fatalf("expected MarkFailed to be called once, got %d", b.failed)
	}
}

func TestPool_Process_TransientRetriesThenGivesUp(t *testing.T) {
	id := uuid.New()
	n := model.Notification{ID: id, Channel: model.ChannelEmail, Status: model.StatusQueued, RetryCount: 3, MaxRetries: 3}

	r := newFakeRepo(n)
	b := &fakeBroker{}
	reg := adapter.Registry{model.ChannelEmail: &fakeAdapter{err: adapter.Transient("timeout", nil)}}

	p := New(b, r, reg, nil, DefaultOptions())
	p.process(context.Background(), testDelivery(id.String()))

	// retry_count (3) + 1 exceeds max_retries (3) -> exhausted -> failed; retry_count stays 3.
	if r.notifications[id].Status != model.StatusFailed {
		t.Fatalf("expected failed after exhausting retries, got %s", r.notifications[id].Status)
	}
}

func TestPool_Process_TransientSchedulesRetry(t *testing.T) {
	id := uuid.New()
	n := model.Notification{ID: id, Channel: model.ChannelEmail, Status: model.StatusQueued, RetryCount: 0, MaxRetries: 5}

	r := newFakeRepo(n)
	b := &fakeBroker{}
	reg := adapter.Registry{model.ChannelEmail: &fakeAdapter{err: adapter.Transient("timeout", nil)}}

	p := New(b, r, reg, retrypolicy.NewEngine(), DefaultOptions())
	p.process(context.Background(), testDelivery(id.String()))

	if r.notifications[id].Status != model.StatusRetrying {
		t.Fatalf("expected retrying, got %s", r.notifications[id].Status)
	}
	if len(b.published) != 1 {
		t.Fatalf("expected one republish, got %d", len(b.published))
	}
	if r.notifications[id].RetryCount != 1 {
		t.Fatalf("expected retry count incremented to 1, got %d", r.notifications[id].RetryCount)
	}
}

func TestPool_Process_SkipsTerminalNotification(t *testing.T) {
	id := uuid.New()
	n := model.Notification{ID: id, Channel: model.ChannelEmail, Status: model.StatusSent}

	r := newFakeRepo(n)
	b := &fakeBroker{}
	reg := adapter.Registry{model.ChannelEmail: &fakeAdapter{}}

	p := New(b, r, reg, nil, DefaultOptions())
	p.process(context.Background(), testDelivery(id.String()))

	if len(r.statusUpdates) != 0 {
		t.Fatalf("expected no status updates for a terminal row, got %v", r.statusUpdates)
	}
}

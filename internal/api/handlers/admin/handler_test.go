package admin

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"

	"github.com/mksenin/notifyhub/internal/admin"
	"github.com/mksenin/notifyhub/internal/rabbitmq/queue"
)

type fakeService struct {
	stats    queue.Stats
	statsErr error
	health   admin.SystemHealth
	paused   bool
	resumed  bool
	purged   int
	clearErr error
	requeued int
	retryErr error
}

func (f *fakeService) QueueStats() (queue.Stats, error)                    { return f.stats, f.statsErr }
func (f *fakeService) SystemHealth(ctx context.Context) admin.SystemHealth { return f.health }
func (f *fakeService) Pause()                                              { f.paused = true }
func (f *fakeService) Resume()                                             { f.resumed = true }
func (f *fakeService) ClearFailed(ctx context.Context, olderThan time.Duration) (int, error) {
	return f.purged, f.clearErr
}
func (f *fakeService) RetryFailed(ctx context.Context, strategy retry.Strategy) (int, error) {
	return f.requeued, f.retryErr
}

func newTestContext(method, path string, body []byte) (*ginext.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	if body != nil {
		c.Request = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		c.Request = httptest.NewRequest(method, path, nil)
	}

	return c, w
}

func TestHandler_Stats(t *testing.T) {
	svc := &fakeService{stats: queue.Stats{Waiting: 3}}
	h := NewHandler(svc, retry.Strategy{Attempts: 3})

	c, w := newTestContext(http.MethodGet, "/api/queue/stats", nil)
	h.Stats(c)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Result().StatusCode)
	}
}

func TestHandler_PauseResume(t *testing.T) {
	svc := &fakeService{}
	h := NewHandler(svc, retry.Strategy{})

	c, w := newTestContext(http.MethodPost, "/api/queue/pause", nil)
	h.Pause(c)
	if !svc.paused || w.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected pause to be recorded and 200, got paused=%v status=%d", svc.paused, w.Result().StatusCode)
	}

	c, w = newTestContext(http.MethodPost, "/api/queue/resume", nil)
	h.Resume(c)
	if !svc.resumed || w.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected resume to be recorded and 200, got resumed=%v status=%d", svc.resumed, w.Result().StatusCode)
	}
}

func TestHandler_RetryFailed_RequeuesEverything(t *testing.T) {
	svc := &fakeService{requeued: 4}
	h := NewHandler(svc, retry.Strategy{})

	c, w := newTestContext(http.MethodPost, "/api/queue/retry-failed", nil)
	h.RetryFailed(c)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Result().StatusCode)
	}
}

func TestHandler_RetryFailed_ServiceError(t *testing.T) {
	svc := &fakeService{retryErr: errors.New("broker unavailable")}
	h := NewHandler(svc, retry.Strategy{})

	c, w := newTestContext(http.MethodPost, "/api/queue/retry-failed", nil)
	h.RetryFailed(c)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Result().StatusCode)
	}
}

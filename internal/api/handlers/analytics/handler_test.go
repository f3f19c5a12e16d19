package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"

	"github.com/mksenin/notifyhub/internal/model"
	"github.com/mksenin/notifyhub/internal/repository/notification"
)

type fakeService struct {
	stats  notification.Stats
	logs   []model.NotificationLog
	errs   []model.NotificationLog
	failed error
}

func (f *fakeService) Summary(ctx context.Context) (notification.Stats, error) {
	return f.stats, f.failed
}

func (f *fakeService) RecentActivity(ctx context.Context, limit int) ([]model.NotificationLog, error) {
	return f.logs, f.failed
}

func (f *fakeService) RecentErrors(ctx context.Context, limit int) ([]model.NotificationLog, error) {
	return f.errs, f.failed
}

func newTestContext(method, path string) (*ginext.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, nil)
	return c, w
}

func TestHandler_Summary(t *testing.T) {
	svc := &fakeService{stats: notification.Stats{}}
	h := NewHandler(svc)

	c, w := newTestContext(http.MethodGet, "/api/analytics")
	h.Summary(c)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Result().StatusCode)
	}
}

func TestHandler_Logs(t *testing.T) {
	svc := &fakeService{logs: []model.NotificationLog{{}}}
	h := NewHandler(svc)

	c, w := newTestContext(http.MethodGet, "/api/analytics/logs?limit=10")
	h.Logs(c)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Result().StatusCode)
	}
}

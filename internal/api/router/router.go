// Package router wires the control plane's HTTP surface per SPEC_FULL §6:
// multi-channel submission, queue administration, analytics, per-user
// preferences and the synchronous direct-send channel endpoints. Grounded
// on the teacher's internal/api/router/router.go, generalized from its
// single /api/notify group to the full route table.
package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/mksenin/notifyhub/internal/api/handlers/admin"
	"github.com/mksenin/notifyhub/internal/api/handlers/analytics"
	"github.com/mksenin/notifyhub/internal/api/handlers/channel"
	"github.com/mksenin/notifyhub/internal/api/handlers/notification"
	"github.com/mksenin/notifyhub/internal/api/handlers/user"
	"github.com/mksenin/notifyhub/internal/middlewares"
	"github.com/mksenin/notifyhub/internal/model"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Notification *notification.Handler
	User         *user.Handler
	Admin        *admin.Handler
	Analytics    *analytics.Handler
	Channel      *channel.Handler
}

// New builds the control plane's gin engine.
func New(h Handlers, frontendURL string) *ginext.Engine {
	e := ginext.New()
	e.Use(middlewares.CORSMiddleware(frontendURL))
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	api := e.Group("/api")

	notifications := api.Group("/notifications")
	{
		notifications.POST("/send", h.Notification.Send)
		notifications.GET("/:id/status", h.Notification.Status)
		notifications.GET("/user/:userId", h.Notification.ListByUser)
		notifications.POST("/:id/retry", h.Notification.Retry)
		notifications.DELETE("/:id", h.Notification.Cancel)
	}

	queue := api.Group("/queue")
	{
		queue.GET("/stats", h.Admin.Stats)
		queue.GET("/health", h.Admin.Health)
		queue.POST("/pause", h.Admin.Pause)
		queue.POST("/resume", h.Admin.Resume)
		queue.POST("/clear-failed", h.Admin.ClearFailed)
		queue.POST("/retry-failed", h.Admin.RetryFailed)
	}

	analyticsGroup := api.Group("/analytics")
	{
		analyticsGroup.GET("", h.Analytics.Summary)
		analyticsGroup.GET("/errors", h.Analytics.Errors)
		analyticsGroup.GET("/logs", h.Analytics.Logs)
	}

	users := api.Group("/users")
	{
		users.POST("", h.User.Register)
		users.GET("/:id", h.User.Get)
		users.PATCH("/:id/preferences", h.User.UpdatePreferences)
	}

	email := api.Group("/email")
	{
		email.POST("/send", h.Channel.EmailSend)
		email.GET("/verify", h.Channel.Verify(model.ChannelEmail))
	}

	sms := api.Group("/sms")
	{
		sms.POST("/send", h.Channel.SMSSend)
		sms.GET("/verify", h.Channel.Verify(model.ChannelSMS))
	}

	push := api.Group("/push")
	{
		push.POST("/send-multicast", h.Channel.PushSendMulticast)
		push.POST("/send-topic", h.Channel.PushSendTopic)
		push.POST("/subscribe-topic", h.Channel.PushSubscribeTopic)
		push.POST("/unsubscribe-topic", h.Channel.PushUnsubscribeTopic)
		push.GET("/verify", h.Channel.Verify(model.ChannelPush))
	}

	slack := api.Group("/slack")
	{
		slack.GET("/verify", h.Channel.Verify(model.ChannelSlack))
	}

	telegram := api.Group("/telegram")
	{
		telegram.GET("/verify", h.Channel.Verify(model.ChannelTelegram))
	}

	return e
}

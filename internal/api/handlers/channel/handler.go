// Package channel exposes the synchronous, queue-bypassing per-channel
// send/verify HTTP surface of SPEC_FULL §6 (/api/email/send,
// /api/sms/send, /api/push/*, /api/*/verify). Unlike the notification
// handler, these calls hit the adapter directly and return the provider's
// outcome inline instead of enqueuing a durable job.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/mksenin/notifyhub/internal/adapter"
	"github.com/mksenin/notifyhub/internal/api/dto"
	"github.com/mksenin/notifyhub/internal/api/respond"
	"github.com/mksenin/notifyhub/internal/model"
)

// Handler handles HTTP requests that talk to a channel adapter directly.
type Handler struct {
	adapters adapter.Registry
	push     *adapter.PushAdapter
}

// NewHandler creates a new Handler instance. push may be nil if the push
// channel is not configured; multicast/topic endpoints then respond 503.
func NewHandler(adapters adapter.Registry, push *adapter.PushAdapter) *Handler {
	return &Handler{adapters: adapters, push: push}
}

func (h *Handler) sendVia(c *ginext.Context, ch model.Channel, recipient, subject, body string, meta adapter.Metadata) {
	a, err := h.adapters.Get(ch)
	if err != nil {
		respond.Fail(c.Writer, http.StatusServiceUnavailable, fmt.Errorf("%s channel is not configured", ch))
		return
	}

	res, err := a.Send(c.Request.Context(), recipient, subject, body, meta)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("channel", string(ch)).Msg("direct send failed")
		respond.FailWithDetails(c.Writer, http.StatusBadGateway, "delivery failed", err.Error())
		return
	}

	respond.OK(c.Writer, map[string]string{
		"messageId":        res.MessageID,
		"providerResponse": res.ProviderResponse,
	})
}

// EmailSend handles POST /api/email/send.
func (h *Handler) EmailSend(c *ginext.Context) {
	var req dto.EmailSendRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}
	if req.To == "" || req.Body == "" {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("to and body are required"))
		return
	}

	meta := adapter.Metadata{}
	if req.HTML != "" {
		meta["html"] = req.HTML
	}
	h.sendVia(c, model.ChannelEmail, req.To, req.Subject, req.Body, meta)
}

// SMSSend handles POST /api/sms/send.
func (h *Handler) SMSSend(c *ginext.Context) {
	var req dto.SMSSendRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}
	if req.To == "" || req.Body == "" {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("to and body are required"))
		return
	}

	h.sendVia(c, model.ChannelSMS, req.To, "", req.Body, nil)
}

// PushSendMulticast handles POST /api/push/send-multicast.
func (h *Handler) PushSendMulticast(c *ginext.Context) {
	if h.push == nil {
		respond.Fail(c.Writer, http.StatusServiceUnavailable, fmt.Errorf("push channel is not configured"))
		return
	}

	var req dto.PushMulticastRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}
	if len(req.Tokens) == 0 || req.Body == "" {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("tokens and body are required"))
		return
	}

	results, err := h.push.SendMulticast(c.Request.Context(), req.Tokens, req.Subject, req.Body, nil)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("push multicast send failed")
		respond.FailWithDetails(c.Writer, http.StatusBadGateway, "delivery failed", err.Error())
		return
	}

	respond.OK(c.Writer, map[string]any{"sent": len(results), "results": results})
}

// PushSendTopic handles POST /api/push/send-topic.
func (h *Handler) PushSendTopic(c *ginext.Context) {
	if h.push == nil {
		respond.Fail(c.Writer, http.StatusServiceUnavailable, fmt.Errorf("push channel is not configured"))
		return
	}

	var req dto.PushTopicRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}
	if req.Topic == "" {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("topic is required"))
		return
	}

	res, err := h.push.SendTopic(c.Request.Context(), req.Topic, req.Subject, req.Body, nil)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("topic", req.Topic).Msg("push topic send failed")
		respond.FailWithDetails(c.Writer, http.StatusBadGateway, "delivery failed", err.Error())
		return
	}

	respond.OK(c.Writer, map[string]string{"providerResponse": res.ProviderResponse})
}

// PushSubscribeTopic handles POST /api/push/subscribe-topic.
func (h *Handler) PushSubscribeTopic(c *ginext.Context) {
	h.manageTopic(c, "subscribe", h.push.SubscribeTopic)
}

// PushUnsubscribeTopic handles POST /api/push/unsubscribe-topic.
func (h *Handler) PushUnsubscribeTopic(c *ginext.Context) {
	h.manageTopic(c, "unsubscribe", h.push.UnsubscribeTopic)
}

func (h *Handler) manageTopic(c *ginext.Context, action string, fn func(ctx context.Context, topic string, tokens []string) error) {
	if h.push == nil {
		respond.Fail(c.Writer, http.StatusServiceUnavailable, fmt.Errorf("push channel is not configured"))
		return
	}

	var req struct {
		Topic  string   `json:"topic" validate:"required"`
		Tokens []string `json:"tokens" validate:"required,min=1"`
	}
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}
	if req.Topic == "" || len(req.Tokens) == 0 {
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("topic and tokens are required"))
		return
	}

	if err := fn(c.Request.Context(), req.Topic, req.Tokens); err != nil {
		zlog.Logger.Warn().Err(err).Str("topic", req.Topic).Str("action", action).Msg("push topic management failed")
		respond.FailWithDetails(c.Writer, http.StatusBadGateway, "topic management failed", err.Error())
		return
	}

	respond.OK(c.Writer, map[string]string{"message": action + " succeeded"})
}

// Verify handles GET /api/:channel/verify.
func (h *Handler) Verify(ch model.Channel) ginext.HandlerFunc {
	return func(c *ginext.Context) {
		a, err := h.adapters.Get(ch)
		if err != nil {
			respond.Fail(c.Writer, http.StatusServiceUnavailable, fmt.Errorf("%s channel is not configured", ch))
			return
		}

		if err := a.Verify(c.Request.Context()); err != nil {
			respond.FailWithDetails(c.Writer, http.StatusBadGateway, "verification failed", err.Error())
			return
		}

		respond.OK(c.Writer, a.Status())
	}
}

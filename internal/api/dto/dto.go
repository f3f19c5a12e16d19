// Package dto holds the JSON request/response shapes for the HTTP control
// plane, generalized from the teacher's single-channel CreateRequest to the
// multi-channel fan-out and admin/analytics surfaces SPEC_FULL §6 requires.
package dto

import "time"

// ChannelTarget is one requested delivery channel within a SendRequest.
type ChannelTarget struct {
	Type      string `json:"type" validate:"required,oneof=email sms push slack telegram"`
	Recipient string `json:"recipient"`
}

// SendRequest is the body of POST /api/notifications/send.
type SendRequest struct {
	UserID      string            `json:"userId"`
	Subject     string            `json:"subject"`
	Message     string            `json:"message" validate:"required"`
	Channels    []ChannelTarget   `json:"channels" validate:"required,min=1,dive"`
	Priority    string            `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ScheduledAt string            `json:"scheduledAt" validate:"omitempty"`
	Metadata    map[string]string `json:"metadata"`
}

// ChannelStatus is one channel's projected status within a notification's
// status response.
type ChannelStatus struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// SendResponse is returned by POST /api/notifications/send.
type SendResponse struct {
	Success         bool     `json:"success"`
	NotificationIDs []string `json:"notificationIds"`
	Message         string   `json:"message"`
}

// StatusResponse is returned by GET /api/notifications/:id/status.
type StatusResponse struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId,omitempty"`
	Status      string          `json:"status"`
	Channels    []ChannelStatus `json:"channels"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	ScheduledAt time.Time       `json:"scheduledAt,omitempty"`
	RetryCount  int             `json:"retryCount"`
}

// RetryRequest is the body of POST /api/notifications/:id/retry.
type RetryRequest struct {
	ResetRetryCount bool `json:"resetRetryCount"`
}

// RegisterUserRequest is the body of POST /api/users.
type RegisterUserRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	PushToken       string `json:"pushToken"`
	SlackWebhookURL string `json:"slackWebhookUrl"`
	TelegramChatID  string `json:"telegramChatId"`
}

// UpdatePreferencesRequest is the body of PATCH /api/users/:id/preferences.
type UpdatePreferencesRequest struct {
	EmailEnabled    bool `json:"emailEnabled"`
	SMSEnabled      bool `json:"smsEnabled"`
	PushEnabled     bool `json:"pushEnabled"`
	SlackEnabled    bool `json:"slackEnabled"`
	TelegramEnabled bool `json:"telegramEnabled"`
}

// EmailSendRequest is the body of POST /api/email/send.
type EmailSendRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject"`
	Body    string `json:"body" validate:"required"`
	HTML    string `json:"html"`
}

// SMSSendRequest is the body of POST /api/sms/send.
type SMSSendRequest struct {
	To   string `json:"to" validate:"required"`
	Body string `json:"body" validate:"required"`
}

// PushMulticastRequest is the body of POST /api/push/send-multicast.
type PushMulticastRequest struct {
	Tokens  []string `json:"tokens" validate:"required,min=1"`
	Subject string   `json:"subject"`
	Body    string   `json:"body" validate:"required"`
}

// PushTopicRequest is the body of POST /api/push/send-topic and the
// subscribe/unsubscribe-topic endpoints.
type PushTopicRequest struct {
	Topic   string `json:"topic" validate:"required"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ClearFailedRequest is the body of POST /api/queue/clear-failed.
type ClearFailedRequest struct {
	OlderThanMinutes int `json:"olderThanMinutes"`
}

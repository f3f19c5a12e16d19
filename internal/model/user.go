package model

import (
	"time"

	"github.com/google/uuid"
)

// ChannelPreferences records which channels a user has opted into. The
// contact address for each channel is held on User (see User.RecipientFor).
type ChannelPreferences struct {
	EmailEnabled    bool `json:"email_enabled"`
	SMSEnabled      bool `json:"sms_enabled"`
	PushEnabled     bool `json:"push_enabled"`
	SlackEnabled    bool `json:"slack_enabled"`
	TelegramEnabled bool `json:"telegram_enabled"`
}

// User is the owning principal of notifications. Dispatch only reads it
// when a submission does not carry an explicit recipient for a channel.
type User struct {
	ID               uuid.UUID
	Email            string
	Name             string
	Phone            string
	PushToken        string
	SlackWebhookURL  string
	TelegramChatID   string
	Preferences      ChannelPreferences
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RecipientFor returns the contact address this user has on file for the
// given channel, and whether the user has opted into receiving it.
func (u User) RecipientFor(ch Channel) (recipient string, enabled bool) {
	switch ch {
	case ChannelEmail:
		return u.Email, u.Preferences.EmailEnabled
	case ChannelSMS:
		return u.Phone, u.Preferences.SMSEnabled
	case ChannelPush:
		return u.PushToken, u.Preferences.PushEnabled
	case ChannelSlack:
		return u.SlackWebhookURL, u.Preferences.SlackEnabled
	case ChannelTelegram:
		return u.TelegramChatID, u.Preferences.TelegramEnabled
	default:
		return "", false
	}
}

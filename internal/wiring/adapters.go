// Package wiring builds the shared adapter registry from configuration, so
// both cmd/notifier and cmd/worker assemble channels identically.
package wiring

import (
	"strconv"

	"github.com/wb-go/wbf/zlog"

	"github.com/mksenin/notifyhub/internal/adapter"
	"github.com/mksenin/notifyhub/internal/config"
	"github.com/mksenin/notifyhub/internal/model"
)

// BuildAdapters constructs every channel adapter from cfg and returns the
// registry alongside the concrete push adapter (needed for the
// multicast/topic direct-send endpoints, which are not part of the Adapter
// interface).
func BuildAdapters(cfg *config.Config) (adapter.Registry, *adapter.PushAdapter) {
	smtpPort, err := strconv.Atoi(cfg.Email.SMTPPort)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("invalid smtp port, email adapter will be misconfigured")
	}

	emailAdapter := adapter.NewEmailAdapter(
		cfg.Email.SMTPHost, smtpPort, cfg.Email.Username, cfg.Email.Password, cfg.Email.From,
	)
	smsAdapter := adapter.NewSMSAdapter(
		cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber, cfg.SMS.BaseURL,
	)
	pushAdapter := adapter.NewPushAdapter(
		cfg.Push.ProjectID, cfg.Push.ServiceAccountKey, cfg.Push.BaseURL,
	)
	slackAdapter := adapter.NewSlackAdapter()
	telegramAdapter := adapter.NewTelegramAdapter(cfg.Telegram.Token)

	registry := adapter.Registry{
		model.ChannelEmail:    emailAdapter,
		model.ChannelSMS:      smsAdapter,
		model.ChannelPush:     pushAdapter,
		model.ChannelSlack:    slackAdapter,
		model.ChannelTelegram: telegramAdapter,
	}

	return registry, pushAdapter
}

// Telegram adapter posts to the Bot API's sendMessage method. Grounded on
// pkg/telegram/client.go in the teacher repo, generalized to the Adapter
// contract and the mandatory error classification.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TelegramAdapter sends messages via a Telegram bot token.
type TelegramAdapter struct {
	token   string
	baseURL string // defaults to https://api.telegram.org, overridable for tests
	client  *http.Client
}

// NewTelegramAdapter builds a TelegramAdapter with the given bot token.
func NewTelegramAdapter(token string) *TelegramAdapter {
	return &TelegramAdapter{
		token:   token,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramSendRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramSendResponse struct {
	OK          bool `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int `json:"message_id"`
	} `json:"result"`
}

// Send posts content to the given chat id. subject is ignored; Telegram
// messages have no separate subject field.
func (a *TelegramAdapter) Send(ctx context.Context, recipient, _ string, content string, meta Metadata) (SendResult, error) {
	if a.token == "" {
		return SendResult{}, Misconfigured("telegram adapter has no bot token", nil)
	}

	reqBody := telegramSendRequest{
		ChatID:    recipient,
		Text:      content,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return SendResult{}, Permanent("failed to encode telegram request", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", a.baseURL, a.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, Transient("failed to build telegram request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return SendResult{}, Transient("telegram api request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return SendResult{}, Transient("failed to read telegram response", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return SendResult{}, Transient(fmt.Sprintf("telegram api returned %d", resp.StatusCode), nil)
	}

	var out telegramSendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return SendResult{}, Transient("failed to decode telegram response", err)
	}

	if !out.OK {
		return SendResult{}, Permanent("telegram api error: "+out.Description, nil)
	}

	return SendResult{
		MessageID:        fmt.Sprintf("%d", out.Result.MessageID),
		ProviderResponse: string(raw),
	}, nil
}

func (a *TelegramAdapter) Verify(ctx context.Context) error {
	if a.token == "" {
		return Misconfigured("telegram adapter has no bot token", nil)
	}

	url := fmt.Sprintf("%s/bot%s/getMe", a.baseURL, a.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Transient("failed to build telegram verify request", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return Transient("telegram api unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Permanent(fmt.Sprintf("telegram bot token rejected: %d", resp.StatusCode), nil)
	}
	return nil
}

func (a *TelegramAdapter) Status() Status {
	return Status{Configured: a.token != "", Channel: "telegram"}
}

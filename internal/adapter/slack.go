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

// SlackAdapter posts a message to an incoming-webhook URL. The webhook URL
// itself is the per-notification recipient, not adapter-level config.
type SlackAdapter struct {
	client *http.Client
}

// NewSlackAdapter builds a SlackAdapter.
func NewSlackAdapter() *SlackAdapter {
	return &SlackAdapter{client: &http.Client{Timeout: 10 * time.Second}}
}

func (a *SlackAdapter) Send(ctx context.Context, recipient, _ string, content string, meta Metadata) (SendResult, error) {
	if recipient == "" {
		return SendResult{}, Permanent("slack webhook url is empty", nil)
	}

	payload := map[string]any{"text": content}
	for k, v := range meta {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{}, Permanent("failed to encode slack payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, recipient, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, Permanent("invalid slack webhook url", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return SendResult{}, Transient("slack webhook request failed", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{}, Transient(fmt.Sprintf("slack webhook returned %d", resp.StatusCode), nil)
	}

	return SendResult{ProviderResponse: string(raw)}, nil
}

// Verify has nothing to probe without a per-recipient webhook URL; Slack
// adapter configuration is always considered present.
func (a *SlackAdapter) Verify(ctx context.Context) error {
	return nil
}

func (a *SlackAdapter) Status() Status {
	return Status{Configured: true, Channel: "slack"}
}

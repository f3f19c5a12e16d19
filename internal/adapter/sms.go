package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SMSAdapter posts messages to an HTTPS SMS gateway (Twilio-shaped API).
type SMSAdapter struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *http.Client
}

// NewSMSAdapter builds an SMSAdapter. baseURL defaults to the gateway's
// production endpoint when empty.
func NewSMSAdapter(accountSID, authToken, fromNumber, baseURL string) *SMSAdapter {
	if baseURL == "" {
		baseURL = "https://api.sms-gateway.example.com"
	}
	return &SMSAdapter{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// NormalizePhoneNumber normalizes a recipient to E.164. Numbers that are
// exactly 10 digits are assumed domestic US/CA and get a "+1" prefix;
// anything else just gets a leading "+" if missing. The function is
// idempotent: NormalizePhoneNumber(NormalizePhoneNumber(x)) == NormalizePhoneNumber(x).
func NormalizePhoneNumber(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	if len(digits) == 10 {
		return "+1" + digits
	}
	if strings.HasPrefix(raw, "+") {
		return "+" + digits
	}
	return "+" + digits
}

type smsSendRequest struct {
	To          string  `json:"to"`
	From        string  `json:"from"`
	Body        string  `json:"body"`
	MediaURL    string  `json:"media_url,omitempty"`
	StatusCB    string  `json:"status_callback,omitempty"`
	MaxPrice    float64 `json:"max_price,omitempty"`
	ProvideFeed bool    `json:"provide_feedback,omitempty"`
}

type smsSendResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (a *SMSAdapter) Send(ctx context.Context, recipient, _ string, content string, meta Metadata) (SendResult, error) {
	if a.accountSID == "" || a.authToken == "" {
		return SendResult{}, Misconfigured("sms adapter has no gateway credentials", nil)
	}

	req := smsSendRequest{
		To:   NormalizePhoneNumber(recipient),
		From: a.fromNumber,
		Body: content,
	}
	if mmsURL, ok := meta["mms_url"].(string); ok {
		req.MediaURL = mmsURL
	}
	if cb, ok := meta["status_callback"].(string); ok {
		req.StatusCB = cb
	}
	if maxPrice, ok := meta["max_price"].(float64); ok {
		req.MaxPrice = maxPrice
	}
	if feedback, ok := meta["feedback"].(bool); ok {
		req.ProvideFeed = feedback
	}

	body, err := json.Marshal(req)
	if err != nil {
		return SendResult{}, Permanent("failed to encode sms request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return SendResult{}, Transient("failed to build sms request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(a.accountSID, a.authToken)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return SendResult{}, Transient("sms gateway request failed", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return SendResult{}, Transient(fmt.Sprintf("sms gateway returned %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return SendResult{}, Permanent(fmt.Sprintf("sms gateway rejected message: %d %s", resp.StatusCode, string(raw)), nil)
	}

	var out smsSendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return SendResult{MessageID: "", ProviderResponse: string(raw)}, nil
	}

	return SendResult{MessageID: out.SID, ProviderResponse: string(raw)}, nil
}

func (a *SMSAdapter) Verify(ctx context.Context) error {
	if a.accountSID == "" || a.authToken == "" {
		return Misconfigured("sms adapter has no gateway credentials", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/accounts/"+a.accountSID, nil)
	if err != nil {
		return Transient("failed to build sms verify request", err)
	}
	req.SetBasicAuth(a.accountSID, a.authToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return Transient("sms gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Permanent(fmt.Sprintf("sms gateway credentials rejected: %d", resp.StatusCode), nil)
	}
	return nil
}

func (a *SMSAdapter) Status() Status {
	return Status{
		Configured: a.accountSID != "" && a.authToken != "",
		Channel:    "sms",
		Extra:      map[string]string{"from_number": a.fromNumber},
	}
}

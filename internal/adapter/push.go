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

// PushAdapter sends mobile/web push notifications through a service-account
// authenticated HTTPS push service (FCM-shaped API).
type PushAdapter struct {
	projectID         string
	serviceAccountKey string // JSON credential blob; presence is what "configured" means here
	baseURL           string
	client            *http.Client
}

// NewPushAdapter builds a PushAdapter.
func NewPushAdapter(projectID, serviceAccountKey, baseURL string) *PushAdapter {
	if baseURL == "" {
		baseURL = "https://push.googleapis.com/v1"
	}
	return &PushAdapter{
		projectID:         projectID,
		serviceAccountKey: serviceAccountKey,
		baseURL:           baseURL,
		client:            &http.Client{Timeout: 10 * time.Second},
	}
}

type androidConfig struct {
	Priority    string `json:"priority,omitempty"`
	TTL         string `json:"ttl,omitempty"`
	CollapseKey string `json:"collapse_key,omitempty"`
}

type apnsPayload struct {
	Badge    int    `json:"badge,omitempty"`
	Sound    string `json:"sound,omitempty"`
	Category string `json:"category,omitempty"`
}

type webConfig struct {
	Icon string `json:"icon,omitempty"`
}

type pushMessage struct {
	Token        string            `json:"token,omitempty"`
	Topic        string            `json:"topic,omitempty"`
	Notification map[string]string `json:"notification"`
	Android      *androidConfig    `json:"android,omitempty"`
	APNS         *apnsPayload      `json:"apns,omitempty"`
	Web          *webConfig        `json:"webpush,omitempty"`
}

func (a *PushAdapter) buildMessage(subject, content string, meta Metadata) pushMessage {
	msg := pushMessage{
		Notification: map[string]string{"title": subject, "body": content},
	}

	android := &androidConfig{}
	if p, ok := meta["android_priority"].(string); ok {
		android.Priority = p
	}
	if ttl, ok := meta["android_ttl"].(string); ok {
		android.TTL = ttl
	}
	if ck, ok := meta["android_collapse_key"].(string); ok {
		android.CollapseKey = ck
	}
	if *android != (androidConfig{}) {
		msg.Android = android
	}

	apns := &apnsPayload{}
	if badge, ok := meta["ios_badge"].(int); ok {
		apns.Badge = badge
	}
	if sound, ok := meta["ios_sound"].(string); ok {
		apns.Sound = sound
	}
	if category, ok := meta["ios_category"].(string); ok {
		apns.Category = category
	}
	if *apns != (apnsPayload{}) {
		msg.APNS = apns
	}

	if icon, ok := meta["web_icon"].(string); ok && icon != "" {
		msg.Web = &webConfig{Icon: icon}
	}

	return msg
}

func (a *PushAdapter) Send(ctx context.Context, recipient, subject, content string, meta Metadata) (SendResult, error) {
	if a.projectID == "" || a.serviceAccountKey == "" {
		return SendResult{}, Misconfigured("push adapter has no service account credentials", nil)
	}

	msg := a.buildMessage(subject, content, meta)
	msg.Token = recipient

	return a.send(ctx, msg)
}

// SendMulticast delivers the same message to each device token in turn, one
// request per token. It stops at the first failed send and returns the
// results gathered so far with that error. Used by the admin API, not by the
// dispatch worker.
func (a *PushAdapter) SendMulticast(ctx context.Context, tokens []string, subject, content string, meta Metadata) ([]SendResult, error) {
	results := make([]SendResult, 0, len(tokens))
	for _, token := range tokens {
		msg := a.buildMessage(subject, content, meta)
		msg.Token = token
		res, err := a.send(ctx, msg)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// SendTopic delivers a message to every subscriber of a topic. Used by the
// admin API, not by the dispatch worker.
func (a *PushAdapter) SendTopic(ctx context.Context, topic, subject, content string, meta Metadata) (SendResult, error) {
	if a.projectID == "" || a.serviceAccountKey == "" {
		return SendResult{}, Misconfigured("push adapter has no service account credentials", nil)
	}
	msg := a.buildMessage(subject, content, meta)
	msg.Topic = topic
	return a.send(ctx, msg)
}

func (a *PushAdapter) send(ctx context.Context, msg pushMessage) (SendResult, error) {
	body, err := json.Marshal(struct {
		Message pushMessage `json:"message"`
	}{Message: msg})
	if err != nil {
		return SendResult{}, Permanent("failed to encode push message", err)
	}

	url := fmt.Sprintf("%s/projects/%s/messages:send", a.baseURL, a.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, Transient("failed to build push request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.serviceAccountKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return SendResult{}, Transient("push service request failed", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return SendResult{}, Transient(fmt.Sprintf("push service returned %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusNotFound:
		// Unregistered/invalid device token: provider will never accept it.
		return SendResult{}, Permanent("push service reports unregistered device token", nil)
	case resp.StatusCode >= 400:
		return SendResult{}, Permanent(fmt.Sprintf("push service rejected message: %d %s", resp.StatusCode, string(raw)), nil)
	}

	return SendResult{ProviderResponse: string(raw)}, nil
}

func (a *PushAdapter) manageTopic(ctx context.Context, action, topic string, tokens []string) error {
	if a.projectID == "" || a.serviceAccountKey == "" {
		return Misconfigured("push adapter has no service account credentials", nil)
	}

	body, err := json.Marshal(struct {
		To                 string   `json:"to"`
		RegistrationTokens []string `json:"registration_tokens"`
	}{To: "/topics/" + topic, RegistrationTokens: tokens})
	if err != nil {
		return Permanent("failed to encode topic management request", err)
	}

	url := fmt.Sprintf("%s/%s", a.baseURL, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Transient("failed to build topic management request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.serviceAccountKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return Transient("push service request failed", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Transient(fmt.Sprintf("push service returned %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return Permanent(fmt.Sprintf("push service rejected topic request: %d %s", resp.StatusCode, string(raw)), nil)
	}

	return nil
}

// SubscribeTopic subscribes device tokens to topic. Used by the admin API.
func (a *PushAdapter) SubscribeTopic(ctx context.Context, topic string, tokens []string) error {
	return a.manageTopic(ctx, "iid/v1:batchAdd", topic, tokens)
}

// UnsubscribeTopic removes device tokens from topic. Used by the admin API.
func (a *PushAdapter) UnsubscribeTopic(ctx context.Context, topic string, tokens []string) error {
	return a.manageTopic(ctx, "iid/v1:batchRemove", topic, tokens)
}

func (a *PushAdapter) Verify(ctx context.Context) error {
	if a.projectID == "" || a.serviceAccountKey == "" {
		return Misconfigured("push adapter has no service account credentials", nil)
	}
	return nil
}

func (a *PushAdapter) Status() Status {
	return Status{
		Configured: a.projectID != "" && a.serviceAccountKey != "",
		Channel:    "push",
		Extra:      map[string]string{"project_id": a.projectID},
	}
}

package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestTelegramAdapter(baseURL string) *TelegramAdapter {
	a := NewTelegramAdapter("fake-token")
	a.baseURL = baseURL
	return a
}

func TestTelegramAdapter_Send_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req telegramSendRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ChatID != "123" || req.ParseMode != "HTML" {
			t.Errorf("unexpected request: %+v", req)
		}
		resp := telegramSendResponse{OK: true}
		resp.Result.MessageID = 42
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := newTestTelegramAdapter(srv.URL)
	res, err := a.Send(context.Background(), "123", "", "hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MessageID != "42" {
		t.Fatalf("unexpected message id: %q", res.MessageID)
	}
}

func TestTelegramAdapter_Send_PermanentOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(telegramSendResponse{OK: false, Description: "chat not found"})
	}))
	defer srv.Close()

	a := newTestTelegramAdapter(srv.URL)
	_, err := a.Send(context.Background(), "123", "", "hi", nil)
	if !IsPermanent(err) {
		t.Fatalf("expected permanent classification, got %v", err)
	}
}

func TestTelegramAdapter_Send_TransientOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := newTestTelegramAdapter(srv.URL)
	_, err := a.Send(context.Background(), "123", "", "hi", nil)
	if !IsTransient(err) {
		t.Fatalf("expected transient classification, got %v", err)
	}
}

func TestTelegramAdapter_Send_Misconfigured(t *testing.T) {
	a := NewTelegramAdapter("")

	_, err := a.Send(context.Background(), "123", "", "hi", nil)
	if !IsMisconfigured(err) {
		t.Fatalf("expected misconfigured error, got %v", err)
	}
}

func TestTelegramAdapter_Status(t *testing.T) {
	a := NewTelegramAdapter("tok")
	st := a.Status()
	if !st.Configured || st.Channel != "telegram" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mailflow/config"
)

func TestResendClientSend(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer re_test_123" {
			t.Errorf("unexpected auth header: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "email_1"})
	}))
	defer srv.Close()

	c := NewResendClient(config.ResendConfig{BaseURL: srv.URL, APIKey: "re_test_123"})

	err := c.Send(context.Background(), Message{
		From:    "alice@resend.dev",
		To:      "bob@example.com",
		Subject: "hi",
		HTML:    "<p>hello</p>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.From != "alice@resend.dev" {
		t.Errorf("from = %q", got.From)
	}
	if len(got.To) != 1 || got.To[0] != "bob@example.com" {
		t.Errorf("to = %v, want single recipient", got.To)
	}
	if got.Subject != "hi" || got.HTML != "<p>hello</p>" {
		t.Errorf("payload mismatch: %+v", got)
	}
}

func TestResendClientSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"statusCode": 422,
			"message":    "The 'to' field is required.",
			"name":       "validation_error",
		})
	}))
	defer srv.Close()

	c := NewResendClient(config.ResendConfig{BaseURL: srv.URL, APIKey: "re_test_123"})

	err := c.Send(context.Background(), Message{From: "a@b.c", To: "bad", Subject: "s"})
	if err == nil {
		t.Fatal("expected error from provider, got nil")
	}
	if want := "validation_error"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q should mention %q", err, want)
	}
}

func TestResendClientCircuitOpensAfterFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewResendClient(config.ResendConfig{BaseURL: srv.URL, APIKey: "k"})
	msg := Message{From: "a@b.c", To: "x@y.z", Subject: "s"}

	// Breaker opens after 3 consecutive failures; the 4th call must fail
	// fast without reaching the server.
	for i := 0; i < 3; i++ {
		if err := c.Send(context.Background(), msg); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if err := c.Send(context.Background(), msg); err == nil {
		t.Fatal("expected fast failure while breaker open")
	}
	if calls != 3 {
		t.Errorf("server saw %d calls, want 3", calls)
	}
}

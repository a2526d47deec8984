package wpp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	return New(Config{
		BaseURL:    baseURL,
		APIToken:   "token",
		Timeout:    2 * time.Second,
		RetryDelay: time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestSendTextSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/send/text" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("authorization = %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if !testClient(srv.URL).SendText(context.Background(), "5511999999999", "oi") {
		t.Fatal("SendText = false, want true")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestSendTextRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if testClient(srv.URL).SendText(context.Background(), "5511999999999", "oi") {
		t.Fatal("SendText = true, want false")
	}
	if calls.Load() != maxAttempts {
		t.Fatalf("calls = %d, want %d", calls.Load(), maxAttempts)
	}
}

func TestSendTextRecoversWithinRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if !testClient(srv.URL).SendText(context.Background(), "5511999999999", "oi") {
		t.Fatal("SendText = false, want true")
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestSendTextStopsOnPermanentError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	if testClient(srv.URL).SendText(context.Background(), "5511999999999", "oi") {
		t.Fatal("SendText = true, want false")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1 (no retries on permanent failure)", calls.Load())
	}
}

func TestSendTextStopsOnDisconnectedSession(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "session disconnected"}`))
	}))
	defer srv.Close()

	if testClient(srv.URL).SendText(context.Background(), "5511999999999", "oi") {
		t.Fatal("SendText = true, want false")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestConnectionStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"connected": true, "session": "main"}`))
	}))
	defer srv.Close()

	status, err := testClient(srv.URL).ConnectionStatus(context.Background())
	if err != nil {
		t.Fatalf("ConnectionStatus: %v", err)
	}
	if status["connected"] != true {
		t.Fatalf("connected = %v", status["connected"])
	}
}

func TestClassifySendError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		permanent bool
	}{
		{"bad request", 400, `{"error": "invalid number"}`, true},
		{"unprocessable", 422, "", true},
		{"disconnected body", 500, "client disconnected", true},
		{"logged out body", 503, "session logged out", true},
		{"plain server error", 500, "boom", false},
		{"rate limited", 429, "slow down", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifySendError(tt.status, tt.body)
			if got := errors.Is(err, ErrPermanent); got != tt.permanent {
				t.Errorf("permanent = %v, want %v", got, tt.permanent)
			}
		})
	}
}

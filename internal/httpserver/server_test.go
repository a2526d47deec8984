package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pixzen-bot/internal/repo"
)

type fakeStore struct {
	repo.Store
	redeemPhone string
	redeemErr   error
	pingErr     error
}

func (f *fakeStore) RedeemLinkCode(context.Context, string, string) (string, error) {
	return f.redeemPhone, f.redeemErr
}

func (f *fakeStore) Ping(context.Context) error {
	return f.pingErr
}

type fakeQueue struct {
	payloads [][]byte
}

func (f *fakeQueue) Enqueue(raw []byte) bool {
	f.payloads = append(f.payloads, raw)
	return true
}

type fakeStatus struct {
	status map[string]any
	err    error
}

func (f *fakeStatus) ConnectionStatus(context.Context) (map[string]any, error) {
	return f.status, f.err
}

func testServer(store *fakeStore, queue *fakeQueue, status StatusClient, invalidators ...func()) *Server {
	return New(Config{
		ListenAddr:     ":0",
		WebhookSecret:  "hook-secret",
		InternalAPIKey: "internal-key",
	}, store, queue, status, slog.New(slog.NewTextHandler(io.Discard, nil)), invalidators...)
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRequiresSecret(t *testing.T) {
	queue := &fakeQueue{}
	s := testServer(&fakeStore{}, queue, nil)

	rec := do(t, s, http.MethodPost, "/webhook", `{"event":"messages.upsert"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(queue.payloads) != 0 {
		t.Fatal("unauthorized payload was enqueued")
	}
}

func TestWebhookAcceptsSecretHeader(t *testing.T) {
	queue := &fakeQueue{}
	s := testServer(&fakeStore{}, queue, nil)

	rec := do(t, s, http.MethodPost, "/webhook", `{"event":"messages.upsert"}`, map[string]string{
		"x-webhook-secret": "hook-secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["received"] != true {
		t.Fatalf("response = %v", resp)
	}
	if len(queue.payloads) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(queue.payloads))
	}
}

func TestWebhookAcceptsBearerToken(t *testing.T) {
	queue := &fakeQueue{}
	s := testServer(&fakeStore{}, queue, nil)

	rec := do(t, s, http.MethodPost, "/webhook", `{}`, map[string]string{
		"Authorization": "Bearer hook-secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestWebhookRejectsBareSecretAuthorization(t *testing.T) {
	queue := &fakeQueue{}
	s := testServer(&fakeStore{}, queue, nil)

	// The secret must arrive as a Bearer credential, not as the raw header value.
	rec := do(t, s, http.MethodPost, "/webhook", `{}`, map[string]string{
		"Authorization": "hook-secret",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(queue.payloads) != 0 {
		t.Fatal("unauthorized payload was enqueued")
	}
}

func TestLinkRedeemsCode(t *testing.T) {
	s := testServer(&fakeStore{redeemPhone: "5511999999999"}, &fakeQueue{}, nil)

	rec := do(t, s, http.MethodPost, "/link", `{"code":"ab12cd","userId":"user-1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["success"] != true || resp["phone"] != "5511999999999" {
		t.Fatalf("response = %v", resp)
	}
}

func TestLinkRejectsInvalidCode(t *testing.T) {
	s := testServer(&fakeStore{redeemErr: repo.ErrLinkCodeInvalid}, &fakeQueue{}, nil)

	rec := do(t, s, http.MethodPost, "/link", `{"code":"XXXXXX","userId":"user-1"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLinkValidatesBody(t *testing.T) {
	s := testServer(&fakeStore{}, &fakeQueue{}, nil)

	for _, body := range []string{`not json`, `{"code":"","userId":"u"}`, `{"code":"ABC123","userId":""}`} {
		rec := do(t, s, http.MethodPost, "/link", body, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	s := testServer(&fakeStore{}, &fakeQueue{}, nil)
	rec := do(t, s, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	s = testServer(&fakeStore{pingErr: context.DeadlineExceeded}, &fakeQueue{}, nil)
	rec = do(t, s, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestAdminEndpointsRequireInternalKey(t *testing.T) {
	cleared := false
	s := testServer(&fakeStore{}, &fakeQueue{}, &fakeStatus{status: map[string]any{"connected": true}}, func() { cleared = true })

	rec := do(t, s, http.MethodPost, "/admin/cache/clear", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if cleared {
		t.Fatal("cache cleared without auth")
	}

	rec = do(t, s, http.MethodPost, "/admin/cache/clear", "", map[string]string{"x-internal-key": "internal-key"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !cleared {
		t.Fatal("cache not cleared")
	}

	rec = do(t, s, http.MethodGet, "/admin/connection-status", "", map[string]string{"x-internal-key": "internal-key"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["connected"] != true {
		t.Fatalf("response = %v", resp)
	}
}

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pixzen-bot/internal/repo"
)

// maxWebhookBody bounds a single webhook payload read.
const maxWebhookBody = 4 << 20

// Enqueuer hands raw webhook payloads to the background workers.
type Enqueuer interface {
	Enqueue(raw []byte) bool
}

// StatusClient reports the provider session state.
type StatusClient interface {
	ConnectionStatus(ctx context.Context) (map[string]any, error)
}

// Config holds the HTTP surface configuration.
type Config struct {
	ListenAddr     string
	BasePath       string
	WebhookSecret  string
	InternalAPIKey string
}

// Server exposes the webhook, linking, health and admin endpoints.
type Server struct {
	cfg          Config
	logger       *slog.Logger
	store        repo.Store
	queue        Enqueuer
	status       StatusClient
	invalidators []func()
	http         *http.Server
}

// New builds the Server and its routes. invalidators are cache-clear hooks
// run by the admin endpoint.
func New(cfg Config, store repo.Store, queue Enqueuer, status StatusClient, logger *slog.Logger, invalidators ...func()) *Server {
	s := &Server{
		cfg:          cfg,
		logger:       logger.With("component", "http"),
		store:        store,
		queue:        queue,
		status:       status,
		invalidators: invalidators,
	}

	base := strings.TrimRight(cfg.BasePath, "/")
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+base+"/webhook", s.handleWebhook)
	mux.HandleFunc("POST "+base+"/link", s.handleLink)
	mux.HandleFunc("GET "+base+"/healthz", s.handleHealth)
	mux.Handle("GET "+base+"/metrics", promhttp.Handler())
	mux.HandleFunc("POST "+base+"/admin/cache/clear", s.requireInternalKey(s.handleCacheClear))
	mux.HandleFunc("GET "+base+"/admin/connection-status", s.requireInternalKey(s.handleConnectionStatus))

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.cfg.ListenAddr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleWebhook authenticates the provider, acknowledges immediately and
// defers all processing to the queue. The provider resends on non-200, so
// anything past auth answers 200 even when the payload is unusable.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.webhookAuthorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}

	deliveryID := uuid.NewString()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.logger.Warn("webhook body read failed", "delivery_id", deliveryID, "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	if len(body) > 0 {
		s.logger.Debug("webhook received", "delivery_id", deliveryID, "bytes", len(body))
		s.queue.Enqueue(body)
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

func (s *Server) webhookAuthorized(r *http.Request) bool {
	if s.cfg.WebhookSecret == "" {
		return true
	}
	if r.Header.Get("x-webhook-secret") == s.cfg.WebhookSecret {
		return true
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	return strings.HasPrefix(auth, prefix) && auth[len(prefix):] == s.cfg.WebhookSecret
}

type linkRequest struct {
	Code   string `json:"code"`
	UserID string `json:"userId"`
}

// handleLink redeems a pairing code on behalf of the application backend.
func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid json"})
		return
	}
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.UserID = strings.TrimSpace(req.UserID)
	if req.Code == "" || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "code and userId are required"})
		return
	}

	phone, err := s.store.RedeemLinkCode(r.Context(), req.Code, req.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrLinkCodeInvalid) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid or expired code"})
			return
		}
		s.logger.Error("link code redemption failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "phone": phone})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	for _, invalidate := range s.invalidators {
		invalidate()
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

func (s *Server) handleConnectionStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "provider client not configured"})
		return
	}
	status, err := s.status.ConnectionStatus(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) requireInternalKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.InternalAPIKey == "" || r.Header.Get("x-internal-key") != s.cfg.InternalAPIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package wpp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pixzen-bot/internal/metrics"
)

const (
	maxAttempts       = 3
	defaultRetryDelay = 2 * time.Second
)

// ErrPermanent indicates the provider rejected the send in a way no retry
// can fix (bad request, or the session is disconnected).
var ErrPermanent = errors.New("wpp permanent delivery failure")

// Client talks to the WhatsApp provider's HTTP gateway.
type Client struct {
	logger     *slog.Logger
	baseURL    string
	apiToken   string
	http       *http.Client
	metrics    *metrics.Metrics
	retryDelay time.Duration
}

// Config holds provider gateway configuration.
type Config struct {
	BaseURL    string
	APIToken   string
	Timeout    time.Duration
	RetryDelay time.Duration
}

// New creates a provider gateway client.
func New(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Client{
		logger:     logger.With("component", "wpp"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:   cfg.APIToken,
		http:       &http.Client{Timeout: timeout},
		metrics:    metricRegistry,
		retryDelay: retryDelay,
	}
}

// SendText delivers a text message. Returns false when best-effort delivery
// failed; callers must not treat that as fatal for the pipeline.
func (c *Client) SendText(ctx context.Context, phone, text string) bool {
	payload := map[string]string{
		"number": phone,
		"text":   text,
	}
	return c.sendWithRetry(ctx, "/send/text", "text", payload)
}

// SendImage delivers an image by URL with an optional caption.
func (c *Client) SendImage(ctx context.Context, phone, imageURL, caption string) bool {
	payload := map[string]string{
		"number":  phone,
		"image":   imageURL,
		"caption": caption,
	}
	return c.sendWithRetry(ctx, "/send/image", "image", payload)
}

// ConnectionStatus fetches the live session state from the provider.
func (c *Client) ConnectionStatus(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("status error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var status map[string]any
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}

// sendWithRetry applies the delivery retry policy: up to 3 attempts with a
// linearly increasing delay, short-circuiting on permanent failures.
func (c *Client) sendWithRetry(ctx context.Context, endpoint, kind string, payload map[string]string) bool {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := c.post(ctx, endpoint, payload)
		if err == nil {
			if c.metrics != nil {
				c.metrics.OutboundMessages.WithLabelValues(kind, "ok").Inc()
			}
			return true
		}

		if errors.Is(err, ErrPermanent) {
			c.logger.Error("permanent delivery failure", "endpoint", endpoint, "error", err)
			if c.metrics != nil {
				c.metrics.OutboundMessages.WithLabelValues(kind, "permanent").Inc()
			}
			return false
		}

		c.logger.Warn("delivery attempt failed", "endpoint", endpoint, "attempt", attempt, "error", err)
		if attempt < maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			case <-ctx.Done():
				return false
			}
		}
	}

	if c.metrics != nil {
		c.metrics.OutboundMessages.WithLabelValues(kind, "failed").Inc()
	}
	return false
}

func (c *Client) post(ctx context.Context, endpoint string, payload map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	c.setHeaders(req)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("wpp request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode >= 400 {
		return classifySendError(res.StatusCode, string(body))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
}

func classifySendError(status int, body string) error {
	snippet := strings.TrimSpace(body)
	lower := strings.ToLower(snippet)

	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		return fmt.Errorf("%w: status=%d body=%s", ErrPermanent, status, snippet)
	}
	if strings.Contains(lower, "disconnected") ||
		strings.Contains(lower, "logged out") ||
		strings.Contains(lower, "not connected") ||
		strings.Contains(lower, "session closed") {
		return fmt.Errorf("%w: %s", ErrPermanent, snippet)
	}
	return fmt.Errorf("wpp error: status=%d body=%s", status, snippet)
}

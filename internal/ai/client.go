package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"pixzen-bot/internal/metrics"
)

// Client provides typed access to an OpenAI-compatible API over HTTP.
type Client struct {
	logger  *slog.Logger
	baseURL string
	apiKey  string
	http    *http.Client
	metrics *metrics.Metrics
}

// ClientConfig holds AI endpoint configuration.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient creates a new AI API client.
func NewClient(cfg ClientConfig, logger *slog.Logger, metricRegistry *metrics.Metrics) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		logger:  logger.With("component", "ai"),
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		metrics: metricRegistry,
	}
}

// ChatMessage is one message in a completion request. Content is either a
// plain string or a slice of ContentPart for multimodal requests.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one part of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an image as a data URL.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatRequest is a chat-completion request body.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat requests a constrained output shape.
type ResponseFormat struct {
	Type string `json:"type"`
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the completion response body.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Content returns the first choice's text, or "".
func (r *ChatResponse) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Message.Content)
}

// ChatCompletion calls the completions endpoint.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	operation := "chat"
	if hasImagePart(req.Messages) {
		operation = "vision"
	}

	var resp ChatResponse
	if err := c.do(httpReq, operation, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// transcriptionResponse is the transcription endpoint's reply.
type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe sends audio bytes to the speech-to-text endpoint. The filename
// extension tells the endpoint the container format.
func (c *Client) Transcribe(ctx context.Context, model string, audio []byte, filename string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := writer.WriteField("model", model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	var resp transcriptionResponse
	if err := c.do(httpReq, "transcription", &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *Client) do(req *http.Request, operation string, dest any) error {
	start := time.Now()
	res, err := c.http.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		c.observe(operation, "error", duration)
		return fmt.Errorf("ai request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		c.observe(operation, "error", duration)
		return fmt.Errorf("read ai response: %w", err)
	}

	statusLabel := fmt.Sprintf("%d", res.StatusCode)
	c.observe(operation, statusLabel, duration)

	if res.StatusCode >= 400 {
		return fmt.Errorf("ai error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode ai response: %w", err)
	}
	return nil
}

func (c *Client) observe(operation, status string, duration float64) {
	if c.metrics == nil {
		return
	}
	c.metrics.AIRequests.WithLabelValues(operation, status).Inc()
	c.metrics.AILatency.WithLabelValues(operation, status).Observe(duration)
}

func hasImagePart(messages []ChatMessage) bool {
	for _, msg := range messages {
		if parts, ok := msg.Content.([]ContentPart); ok {
			for _, part := range parts {
				if part.ImageURL != nil {
					return true
				}
			}
		}
	}
	return false
}

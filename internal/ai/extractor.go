package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"pixzen-bot/internal/cache"
	"pixzen-bot/internal/repo"
)

const configCacheTTL = 5 * time.Minute

// TransactionData is the structured extraction result before persistence.
// An Amount <= 0 means the model found no transaction.
type TransactionData struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Confidence  float64 `json:"confidence"`
}

// Found reports whether the extraction yielded a usable transaction.
func (t *TransactionData) Found() bool {
	return t != nil && t.Amount > 0
}

// ModelConfig holds the tunable extraction parameters. Values come from the
// ai_config table and fall back to these defaults on any read failure.
type ModelConfig struct {
	Model              string
	VisionModel        string
	TranscriptionModel string
	Temperature        float64
	MaxTokens          int
	SystemPrompt       string
}

func defaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:              "gpt-4o-mini",
		VisionModel:        "gpt-4o",
		TranscriptionModel: "whisper-1",
		Temperature:        0.2,
		MaxTokens:          500,
		SystemPrompt:       defaultSystemPrompt,
	}
}

const defaultSystemPrompt = `Você é um assistente financeiro que extrai transações de mensagens em português.
Responda SOMENTE com um objeto JSON no formato:
{"type":"income"|"expense","amount":number,"category":string,"description":string,"date":"YYYY-MM-DD","confidence":number}
Categorias de despesa: alimentacao, mercado, transporte, moradia, contas, saude, farmacia, educacao, lazer, vestuario, assinaturas, pets, viagem, presentes, impostos, cuidados_pessoais, manutencao, investimento, doacao, outros.
Categorias de receita: salario, freelance, vendas, investimentos, aluguel, reembolso, premio, presente, aposentadoria, beneficio, outros.
Se a mensagem não descrever uma transação financeira, responda {"amount":0}.
Se nenhuma data for mencionada, use a data atual informada.`

// costRates prices model usage in USD. Token rates are per million tokens;
// the transcription rate is per minute of audio.
var costRates = map[string]struct {
	Input  float64
	Output float64
}{
	"gpt-4o-mini": {Input: 0.15, Output: 0.60},
	"gpt-4o":      {Input: 2.50, Output: 10.00},
}

const transcriptionRatePerMinute = 0.006

// Extractor turns free-form text, audio and receipt images into structured
// transactions using the AI endpoint.
type Extractor struct {
	client *Client
	store  repo.Store
	logger *slog.Logger
	config *cache.TTL[ModelConfig]
	loc    *time.Location
}

// NewExtractor builds an Extractor. The civil timezone feeds the current
// date into prompts so the model can default transaction dates.
func NewExtractor(client *Client, store repo.Store, logger *slog.Logger, timezone string) *Extractor {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	e := &Extractor{
		client: client,
		store:  store,
		logger: logger.With("component", "extractor"),
		loc:    loc,
	}
	e.config = cache.NewTTL(configCacheTTL, func(ctx context.Context) (ModelConfig, error) {
		values, err := store.GetAIConfigValues(ctx)
		if err != nil {
			return ModelConfig{}, err
		}
		return mergeConfig(defaultModelConfig(), values), nil
	})
	return e
}

// Config returns the current model configuration, substituting hardcoded
// defaults when the config store is unreachable.
func (e *Extractor) Config(ctx context.Context) ModelConfig {
	cfg, err := e.config.Get(ctx)
	if err != nil {
		e.logger.Warn("ai config load failed, using defaults", "error", err)
		return defaultModelConfig()
	}
	return cfg
}

// InvalidateConfig clears the config cache.
func (e *Extractor) InvalidateConfig() {
	e.config.Invalidate()
}

// AnalyzeText classifies a free-form financial statement. Returns nil when
// the model found no transaction.
func (e *Extractor) AnalyzeText(ctx context.Context, text string, userID *string) (*TransactionData, error) {
	cfg := e.Config(ctx)

	resp, err := e.client.ChatCompletion(ctx, ChatRequest{
		Model: cfg.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: cfg.SystemPrompt + "\n\n" + e.dateContext()},
			{Role: "user", Content: text},
		},
		Temperature:    cfg.Temperature,
		MaxTokens:      cfg.MaxTokens,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	e.meter(ctx, userID, "analyze_text", cfg.Model, resp.Usage)
	return parseTransaction(resp.Content()), nil
}

// AnalyzeImage extracts a transaction from a receipt photo. The model is
// instructed to prefer a date printed on the receipt over the current date.
func (e *Extractor) AnalyzeImage(ctx context.Context, image []byte, caption, mimeType string, userID *string) (*TransactionData, error) {
	cfg := e.Config(ctx)

	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	prompt := "Analise este comprovante e extraia a transação financeira. " +
		"Prefira a data impressa no comprovante; use a data atual apenas se nenhuma aparecer."
	if caption != "" {
		prompt += "\nLegenda enviada pelo usuário: " + caption
	}

	resp, err := e.client.ChatCompletion(ctx, ChatRequest{
		Model: cfg.VisionModel,
		Messages: []ChatMessage{
			{Role: "system", Content: cfg.SystemPrompt + "\n\n" + e.dateContext()},
			{Role: "user", Content: []ContentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}},
			}},
		},
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	e.meter(ctx, userID, "analyze_image", cfg.VisionModel, resp.Usage)

	// Vision replies are not guaranteed to be pure JSON.
	return parseTransaction(extractJSONBlock(resp.Content())), nil
}

// TranscribeAudio converts a voice note into text.
func (e *Extractor) TranscribeAudio(ctx context.Context, audio []byte, filename string, userID *string) (string, error) {
	cfg := e.Config(ctx)

	text, err := e.client.Transcribe(ctx, cfg.TranscriptionModel, audio, filename)
	if err != nil {
		return "", err
	}

	e.meterTranscription(ctx, userID, cfg.TranscriptionModel, len(audio))
	return text, nil
}

func (e *Extractor) dateContext() string {
	now := time.Now().In(e.loc)
	return fmt.Sprintf("Data e hora atual: %s", now.Format("02/01/2006 15:04"))
}

// meter prices and logs one completion. Logging failures are swallowed so
// cost observability never aborts the user-facing flow.
func (e *Extractor) meter(ctx context.Context, userID *string, operation, model string, usage Usage) {
	rate, ok := costRates[model]
	cost := 0.0
	if ok {
		cost = float64(usage.PromptTokens)*rate.Input/1e6 + float64(usage.CompletionTokens)*rate.Output/1e6
	}
	entry := repo.AIUsageEntry{
		UserID:       userID,
		Operation:    operation,
		Model:        model,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		CostUSD:      cost,
	}
	if err := e.store.LogAIUsage(ctx, entry); err != nil {
		e.logger.Warn("ai usage log failed", "error", err)
	}
}

// meterTranscription estimates audio duration from the byte size of the
// compressed stream (~2000 bytes/second for voice-note opus) as a pricing
// proxy, since the endpoint does not report duration.
func (e *Extractor) meterTranscription(ctx context.Context, userID *string, model string, audioBytes int) {
	seconds := float64(audioBytes) / 2000.0
	entry := repo.AIUsageEntry{
		UserID:    userID,
		Operation: "transcribe_audio",
		Model:     model,
		CostUSD:   seconds / 60.0 * transcriptionRatePerMinute,
	}
	if err := e.store.LogAIUsage(ctx, entry); err != nil {
		e.logger.Warn("ai usage log failed", "error", err)
	}
}

// parseTransaction decodes the model's JSON reply. Unparseable content or a
// non-positive amount both mean "no transaction found" and yield nil.
func parseTransaction(content string) *TransactionData {
	if content == "" {
		return nil
	}
	var tx TransactionData
	if err := json.Unmarshal([]byte(content), &tx); err != nil {
		return nil
	}
	if !tx.Found() {
		return nil
	}
	tx.Type = strings.ToLower(strings.TrimSpace(tx.Type))
	if tx.Type != "income" {
		tx.Type = "expense"
	}
	tx.Category = strings.ToLower(strings.TrimSpace(tx.Category))
	return &tx
}

// extractJSONBlock returns the widest brace-matched substring, so prose
// around a JSON object does not break parsing.
func extractJSONBlock(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

// ParseDate resolves the model's date string against the extractor's
// timezone, defaulting to now on any parse failure.
func (e *Extractor) ParseDate(value string) time.Time {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "02/01/2006"} {
		if parsed, err := time.ParseInLocation(layout, value, e.loc); err == nil {
			return parsed
		}
	}
	return time.Now().In(e.loc)
}

func mergeConfig(base ModelConfig, values map[string]string) ModelConfig {
	if v := values["model"]; v != "" {
		base.Model = v
	}
	if v := values["vision_model"]; v != "" {
		base.VisionModel = v
	}
	if v := values["transcription_model"]; v != "" {
		base.TranscriptionModel = v
	}
	if v := values["temperature"]; v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			base.Temperature = parsed
		}
	}
	if v := values["max_tokens"]; v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			base.MaxTokens = parsed
		}
	}
	if v := values["system_prompt"]; v != "" {
		base.SystemPrompt = v
	}
	return base
}

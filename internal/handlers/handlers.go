package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pixzen-bot/internal/ai"
	"pixzen-bot/internal/metrics"
	"pixzen-bot/internal/repo"
	"pixzen-bot/internal/templates"
	"pixzen-bot/internal/webhook"
)

// Sender delivers outbound messages to the chat provider.
type Sender interface {
	SendText(ctx context.Context, phone, text string) bool
}

// Analyzer extracts transactions from text, audio and images.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string, userID *string) (*ai.TransactionData, error)
	AnalyzeImage(ctx context.Context, image []byte, caption, mimeType string, userID *string) (*ai.TransactionData, error)
	TranscribeAudio(ctx context.Context, audio []byte, filename string, userID *string) (string, error)
	ParseDate(value string) time.Time
}

// MediaFetcher retrieves provider media blobs.
type MediaFetcher interface {
	FetchEncrypted(ctx context.Context, url, mediaKey, mediaType string) []byte
	Download(ctx context.Context, url string) ([]byte, error)
}

// Renderer resolves user-facing message templates.
type Renderer interface {
	Render(ctx context.Context, key string, vars map[string]string) string
}

// Handler runs the per-content-type message pipelines for a linked user.
type Handler struct {
	store     repo.Store
	analyzer  Analyzer
	sender    Sender
	media     MediaFetcher
	templates Renderer
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New wires a Handler.
func New(store repo.Store, analyzer Analyzer, sender Sender, media MediaFetcher, renderer Renderer, logger *slog.Logger, metricRegistry *metrics.Metrics) *Handler {
	return &Handler{
		store:     store,
		analyzer:  analyzer,
		sender:    sender,
		media:     media,
		templates: renderer,
		logger:    logger.With("component", "handlers"),
		metrics:   metricRegistry,
	}
}

// helpAliases trigger the usage help reply instead of extraction.
var helpAliases = []string{"ajuda", "help", "menu", "comandos", "?"}

// balanceAliases trigger the monthly summary reply.
var balanceAliases = []string{"saldo", "resumo", "extrato", "balanco", "balanço"}

// HandleText runs the text pipeline: commands first, then AI extraction.
func (h *Handler) HandleText(ctx context.Context, user *repo.WhatsAppUser, msg *webhook.InboundMessage) {
	text := strings.TrimSpace(msg.Data.Message.Conversation)
	phone := user.Phone
	normalized := strings.ToLower(text)

	if matchesAlias(normalized, helpAliases) {
		h.reply(ctx, phone, templates.KeyHelp, nil)
		return
	}
	if matchesAlias(normalized, balanceAliases) {
		h.sendBalance(ctx, user)
		return
	}

	h.reply(ctx, phone, templates.KeyProcessing, nil)
	h.extractAndSave(ctx, user, text, repo.UsageMessage)
}

// extractAndSave is the shared tail of every pipeline once usable text
// exists: analyze, persist, confirm.
func (h *Handler) extractAndSave(ctx context.Context, user *repo.WhatsAppUser, text string, kind repo.UsageKind) {
	tx, err := h.analyzer.AnalyzeText(ctx, text, user.UserID)
	if err != nil {
		h.logger.Error("text analysis failed", "phone", user.Phone, "error", err)
		h.reply(ctx, user.Phone, templates.KeyNotUnderstood, nil)
		return
	}
	h.saveAndConfirm(ctx, user, tx, kind)
}

// saveAndConfirm persists an extracted transaction and replies. A nil
// extraction means nothing is persisted and no usage is counted.
func (h *Handler) saveAndConfirm(ctx context.Context, user *repo.WhatsAppUser, tx *ai.TransactionData, kind repo.UsageKind) {
	if !tx.Found() {
		h.reply(ctx, user.Phone, templates.KeyNotUnderstood, nil)
		return
	}

	date := h.analyzer.ParseDate(tx.Date)
	saved, err := h.store.InsertTransaction(ctx, repo.Transaction{
		UserID:      *user.UserID,
		Description: tx.Description,
		Amount:      tx.Amount,
		Type:        tx.Type,
		CategoryID:  repo.TranslateCategory(tx.Type, tx.Category),
		Date:        date,
	})
	if err != nil {
		h.logger.Error("transaction insert failed", "phone", user.Phone, "error", err)
		h.reply(ctx, user.Phone, templates.KeySaveFailed, nil)
		return
	}

	h.countUsage(ctx, *user.UserID, kind)
	h.countUsage(ctx, *user.UserID, repo.UsageTransaction)
	if h.metrics != nil {
		h.metrics.TransactionsSaved.WithLabelValues(saved.Type).Inc()
	}

	emoji, tipo := "💸", "Despesa"
	if saved.Type == "income" {
		emoji, tipo = "💰", "Receita"
	}
	h.reply(ctx, user.Phone, templates.KeyTransactionSaved, map[string]string{
		"emoji":     emoji,
		"tipo":      tipo,
		"valor":     formatAmount(saved.Amount),
		"categoria": tx.Category,
		"descricao": saved.Description,
		"data":      date.Format("02/01/2006"),
	})
}

func (h *Handler) sendBalance(ctx context.Context, user *repo.WhatsAppUser) {
	month := repo.CurrentMonth()
	summary, err := h.store.GetMonthlySummary(ctx, *user.UserID, month)
	if err != nil {
		h.logger.Error("monthly summary failed", "phone", user.Phone, "error", err)
		h.reply(ctx, user.Phone, templates.KeySaveFailed, nil)
		return
	}
	h.reply(ctx, user.Phone, templates.KeyBalanceSummary, map[string]string{
		"mes":      monthLabel(month),
		"receitas": formatAmount(summary.Income),
		"despesas": formatAmount(summary.Expense),
		"saldo":    formatAmount(summary.Balance()),
	})
}

func (h *Handler) reply(ctx context.Context, phone, key string, vars map[string]string) {
	text := h.templates.Render(ctx, key, vars)
	if text == "" {
		return
	}
	h.sender.SendText(ctx, phone, text)
}

// countUsage increments a monthly counter; failures are logged and swallowed
// so accounting never breaks the user-facing flow.
func (h *Handler) countUsage(ctx context.Context, userID string, kind repo.UsageKind) {
	if err := h.store.IncrementUsage(ctx, userID, kind); err != nil {
		h.logger.Warn("usage increment failed", "user_id", userID, "kind", kind, "error", err)
	}
}

func matchesAlias(text string, aliases []string) bool {
	for _, alias := range aliases {
		if text == alias || strings.HasPrefix(text, alias+" ") {
			return true
		}
	}
	return false
}

// formatAmount renders a BRL value with a comma decimal separator.
func formatAmount(value float64) string {
	return strings.Replace(fmt.Sprintf("%.2f", value), ".", ",", 1)
}

var monthNames = map[string]string{
	"01": "janeiro", "02": "fevereiro", "03": "março", "04": "abril",
	"05": "maio", "06": "junho", "07": "julho", "08": "agosto",
	"09": "setembro", "10": "outubro", "11": "novembro", "12": "dezembro",
}

// monthLabel turns "2026-09" into "setembro/2026".
func monthLabel(month string) string {
	parts := strings.SplitN(month, "-", 2)
	if len(parts) != 2 {
		return month
	}
	name, ok := monthNames[parts[1]]
	if !ok {
		return month
	}
	return name + "/" + parts[0]
}

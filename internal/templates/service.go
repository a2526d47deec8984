package templates

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"pixzen-bot/internal/cache"
	"pixzen-bot/internal/repo"
)

const cacheTTL = 5 * time.Minute

// Template keys used by the message pipeline.
const (
	KeyWelcome          = "welcome"
	KeyLinkCode         = "link_code"
	KeyTrialExpired     = "trial_expired"
	KeyLimitReached     = "limit_reached"
	KeyProcessing       = "processing"
	KeyPremiumFeature   = "premium_feature"
	KeyUnsupportedType  = "unsupported_type"
	KeyNotUnderstood    = "not_understood"
	KeySaveFailed       = "save_failed"
	KeyDownloadFailed   = "download_failed"
	KeyTransactionSaved = "transaction_saved"
	KeyBalanceSummary   = "balance_summary"
	KeyHelp             = "help"
	KeyScannedPDF       = "scanned_pdf"
)

// fallbacks keep the bot talking when the template table is unreachable or
// a key is missing.
var fallbacks = map[string]string{
	KeyWelcome:          "👋 Olá! Eu sou o assistente financeiro do PixZen.\nMe conte seus gastos e receitas que eu registro tudo pra você.",
	KeyLinkCode:         "🔗 Para vincular sua conta, digite este código no aplicativo PixZen:\n\n*{{code}}*\n\nEle expira em 10 minutos.",
	KeyTrialExpired:     "⏰ Seu período de teste de 7 dias terminou.\nAssine um plano no aplicativo para continuar registrando transações.",
	KeyLimitReached:     "🚫 Você atingiu o limite de {{limit}} mensagens deste mês.\nFaça upgrade de plano para continuar.",
	KeyProcessing:       "⏳ Processando sua mensagem...",
	KeyPremiumFeature:   "⭐ Esse tipo de mensagem está disponível apenas nos planos pagos.\nEnvie sua transação em texto ou faça upgrade no aplicativo.",
	KeyUnsupportedType:  "🤔 Ainda não sei processar esse tipo de mensagem.\nEnvie texto, áudio, foto ou PDF.",
	KeyNotUnderstood:    "🤔 Não consegui identificar uma transação.\nTente algo como:\n• \"gastei 50 no mercado\"\n• \"recebi 1500 de salário\"",
	KeySaveFailed:       "😕 Não consegui salvar sua transação agora. Tente novamente em instantes.",
	KeyDownloadFailed:   "😕 Não consegui baixar seu arquivo. Pode enviar de novo?",
	KeyTransactionSaved: "{{emoji}} *{{tipo}} registrada!*\n💰 Valor: R$ {{valor}}\n📂 Categoria: {{categoria}}\n📝 {{descricao}}\n📅 {{data}}",
	KeyBalanceSummary:   "📊 *Resumo de {{mes}}*\n📈 Receitas: R$ {{receitas}}\n📉 Despesas: R$ {{despesas}}\n💰 Saldo: R$ {{saldo}}",
	KeyHelp:             "ℹ️ *Como usar o PixZen*\n• Envie \"gastei 35 no uber\"\n• Mande um áudio contando o gasto\n• Fotografe um recibo\n• Digite *saldo* para ver o resumo do mês",
	KeyScannedPDF:       "📄 Esse PDF parece ser digitalizado. Envie uma foto do recibo para eu analisar.",
}

// Service resolves message templates from the database with a read-through
// cache, falling back to hardcoded defaults.
type Service struct {
	store  repo.Store
	logger *slog.Logger
	cache  *cache.TTL[map[string]repo.MessageTemplate]
}

// New builds a template service around the store.
func New(store repo.Store, logger *slog.Logger) *Service {
	s := &Service{
		store:  store,
		logger: logger.With("component", "templates"),
	}
	s.cache = cache.NewTTL(cacheTTL, func(ctx context.Context) (map[string]repo.MessageTemplate, error) {
		return store.ListActiveTemplates(ctx)
	})
	return s
}

// Render resolves a template by key and substitutes {{name}} placeholders.
// Store failures and unknown keys fall back to the hardcoded default; an
// empty string is returned only when no fallback exists either.
func (s *Service) Render(ctx context.Context, key string, vars map[string]string) string {
	content := fallbacks[key]

	templates, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Warn("template load failed, using fallback", "key", key, "error", err)
	} else if tpl, ok := templates[key]; ok && tpl.TemplateContent != "" {
		content = tpl.TemplateContent
	}

	return Substitute(content, vars)
}

// Invalidate clears the cache so the next Render refetches from the store.
func (s *Service) Invalidate() {
	s.cache.Invalidate()
}

// Substitute replaces {{name}} placeholders with the provided values.
// Unknown placeholders are left untouched.
func Substitute(content string, vars map[string]string) string {
	for name, value := range vars {
		content = strings.ReplaceAll(content, "{{"+name+"}}", value)
	}
	return content
}

package processor

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"pixzen-bot/internal/metrics"
	"pixzen-bot/internal/repo"
	"pixzen-bot/internal/templates"
	"pixzen-bot/internal/webhook"
)

// dedupTTL bounds how long a message ID is remembered for webhook retries.
const dedupTTL = 24 * time.Hour

// trialMessageLimit is the synthetic cap applied while the 7-day trial
// window is open; high enough to be effectively unlimited.
const trialMessageLimit = 999

// MessageHandler routes one content type of a gated, linked-user message.
type MessageHandler interface {
	HandleText(ctx context.Context, user *repo.WhatsAppUser, msg *webhook.InboundMessage)
	HandleAudio(ctx context.Context, user *repo.WhatsAppUser, msg *webhook.InboundMessage)
	HandleImage(ctx context.Context, user *repo.WhatsAppUser, msg *webhook.InboundMessage)
	HandleDocument(ctx context.Context, user *repo.WhatsAppUser, msg *webhook.InboundMessage)
}

// Sender delivers outbound gating replies.
type Sender interface {
	SendText(ctx context.Context, phone, text string) bool
}

// Renderer resolves user-facing message templates.
type Renderer interface {
	Render(ctx context.Context, key string, vars map[string]string) string
}

// Deduper suppresses reprocessing of redelivered webhook events.
type Deduper interface {
	MarkSeen(ctx context.Context, messageID string, ttl time.Duration) bool
}

// PlanLimits describes what one subscription plan may do in a month.
// MessageLimit of -1 means unlimited.
type PlanLimits struct {
	MessageLimit int
	Audio        bool
	Image        bool
	Document     bool
}

// planLimits maps a plan name to its feature set. Unknown plans get the
// free tier.
func planLimits(plan string) PlanLimits {
	switch plan {
	case "starter":
		return PlanLimits{MessageLimit: 0}
	case "basic":
		return PlanLimits{MessageLimit: 200, Audio: true, Image: true, Document: true}
	case "premium":
		return PlanLimits{MessageLimit: -1, Audio: true, Image: true, Document: true}
	default:
		return PlanLimits{MessageLimit: 30}
	}
}

// trialLimits is the feature set synthesized while the trial window is open.
func trialLimits() PlanLimits {
	return PlanLimits{MessageLimit: trialMessageLimit, Audio: true, Image: true, Document: true}
}

// Processor is the inbound state machine: identity resolution, account
// linking, trial and plan gating, then routing to content handlers.
type Processor struct {
	store      repo.Store
	normalizer *webhook.Normalizer
	handler    MessageHandler
	sender     Sender
	templates  Renderer
	deduper    Deduper
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New wires a Processor. deduper may be nil when no redis is configured.
func New(store repo.Store, normalizer *webhook.Normalizer, handler MessageHandler, sender Sender, renderer Renderer, deduper Deduper, logger *slog.Logger, metricRegistry *metrics.Metrics) *Processor {
	return &Processor{
		store:      store,
		normalizer: normalizer,
		handler:    handler,
		sender:     sender,
		templates:  renderer,
		deduper:    deduper,
		logger:     logger.With("component", "processor"),
		metrics:    metricRegistry,
	}
}

// ProcessRaw runs one raw webhook payload through the full pipeline. It
// never panics outward; a recovered panic is logged and the message dropped.
func (p *Processor) ProcessRaw(ctx context.Context, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("message processing panicked", "panic", r)
			p.count("panic")
		}
	}()

	if !p.normalizer.ShouldProcess(raw) {
		p.count("filtered")
		return
	}

	msg := p.normalizer.Normalize(raw)
	if id := msg.Data.Key.ID; id != "" && p.deduper != nil {
		if !p.deduper.MarkSeen(ctx, id, dedupTTL) {
			p.count("duplicate")
			return
		}
	}

	p.Process(ctx, &msg)
}

// Process runs a normalized message through gating and routing.
func (p *Processor) Process(ctx context.Context, msg *webhook.InboundMessage) {
	phone := msg.Phone()
	if phone == "" {
		p.logger.Warn("message without usable phone", "remote_jid", msg.Data.Key.RemoteJid)
		p.count("no_phone")
		return
	}

	user, created, err := p.resolveUser(ctx, phone, msg.Data.PushName)
	if err != nil {
		p.logger.Error("user resolution failed", "phone", phone, "error", err)
		p.count("user_error")
		return
	}
	if created {
		// First contact gets the welcome only; the linking flow starts
		// with the next message.
		p.count("first_contact")
		return
	}

	if !user.IsLinked || user.UserID == nil {
		p.sendLinkCode(ctx, user)
		p.count("unlinked")
		return
	}

	if !p.passesTrialGate(ctx, user) {
		p.count("trial_expired")
		return
	}

	limits, inTrial := p.resolveLimits(ctx, *user.UserID)
	if !inTrial && !p.passesUsageGate(ctx, user, limits) {
		p.count("limit_reached")
		return
	}

	p.route(ctx, user, msg, limits)
}

// resolveUser finds or creates the chat identity. A brand-new identity gets
// the welcome message and created=true so the caller stops there; the
// linking flow only starts on the following message.
func (p *Processor) resolveUser(ctx context.Context, phone, name string) (user *repo.WhatsAppUser, created bool, err error) {
	user, err = p.store.GetWhatsAppUserByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}

	user, err = p.store.CreateWhatsAppUser(ctx, phone, name)
	if err != nil {
		return nil, false, err
	}
	p.reply(ctx, phone, templates.KeyWelcome, nil)
	return user, true, nil
}

func (p *Processor) sendLinkCode(ctx context.Context, user *repo.WhatsAppUser) {
	code, err := p.store.CreateLinkCode(ctx, user.ID)
	if err != nil {
		p.logger.Error("link code creation failed", "phone", user.Phone, "error", err)
		return
	}
	p.reply(ctx, user.Phone, templates.KeyLinkCode, map[string]string{"code": code.Code})
}

// passesTrialGate blocks users whose trial window closed without an active
// subscription.
func (p *Processor) passesTrialGate(ctx context.Context, user *repo.WhatsAppUser) bool {
	trial, err := p.store.GetTrialStatus(ctx, *user.UserID, user.CreatedAt)
	if err != nil {
		p.logger.Error("trial status lookup failed", "user_id", *user.UserID, "error", err)
		// Fail open: a gating outage must not silence paying users.
		return true
	}
	if trial.IsExpired && !trial.IsActive {
		p.reply(ctx, user.Phone, templates.KeyTrialExpired, nil)
		return false
	}
	return true
}

// resolveLimits picks the effective feature set. While the trial window is
// open and no paid plan is active, trial limits apply and the monthly cap
// is skipped.
func (p *Processor) resolveLimits(ctx context.Context, userID string) (PlanLimits, bool) {
	sub, err := p.store.GetSubscription(ctx, userID)
	if err != nil {
		p.logger.Error("subscription lookup failed", "user_id", userID, "error", err)
		return trialLimits(), true
	}
	if sub == nil || sub.Status != "ativo" {
		return trialLimits(), true
	}
	return planLimits(sub.Plano), false
}

func (p *Processor) passesUsageGate(ctx context.Context, user *repo.WhatsAppUser, limits PlanLimits) bool {
	if limits.MessageLimit < 0 {
		return true
	}
	usage, err := p.store.GetMonthlyUsage(ctx, *user.UserID, repo.CurrentMonth())
	if err != nil {
		p.logger.Error("usage lookup failed", "user_id", *user.UserID, "error", err)
		return true
	}
	if usage.MessagesCount >= limits.MessageLimit {
		p.reply(ctx, user.Phone, templates.KeyLimitReached, map[string]string{
			"limit": strconv.Itoa(limits.MessageLimit),
		})
		return false
	}
	return true
}

func (p *Processor) route(ctx context.Context, user *repo.WhatsAppUser, msg *webhook.InboundMessage, limits PlanLimits) {
	contentType := msg.ContentType()
	p.countInbound(contentType)

	switch contentType {
	case webhook.TypeText:
		p.handler.HandleText(ctx, user, msg)
	case webhook.TypeAudio:
		if !limits.Audio {
			p.reply(ctx, user.Phone, templates.KeyPremiumFeature, nil)
			return
		}
		p.handler.HandleAudio(ctx, user, msg)
	case webhook.TypeImage:
		if !limits.Image {
			p.reply(ctx, user.Phone, templates.KeyPremiumFeature, nil)
			return
		}
		p.handler.HandleImage(ctx, user, msg)
	case webhook.TypeDocument:
		if !limits.Document {
			p.reply(ctx, user.Phone, templates.KeyPremiumFeature, nil)
			return
		}
		p.handler.HandleDocument(ctx, user, msg)
	default:
		p.reply(ctx, user.Phone, templates.KeyUnsupportedType, nil)
	}
}

func (p *Processor) reply(ctx context.Context, phone, key string, vars map[string]string) {
	text := p.templates.Render(ctx, key, vars)
	if text == "" {
		return
	}
	p.sender.SendText(ctx, phone, text)
}

func (p *Processor) count(outcome string) {
	if p.metrics != nil {
		p.metrics.WebhookEvents.WithLabelValues(outcome).Inc()
	}
}

func (p *Processor) countInbound(contentType string) {
	if p.metrics == nil {
		return
	}
	if contentType == "" {
		contentType = "unknown"
	}
	p.metrics.InboundMessages.WithLabelValues(contentType).Inc()
}

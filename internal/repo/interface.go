package repo

import (
	"context"
	"io/fs"
	"time"
)

// Store defines the interface for data persistence.
type Store interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// WhatsApp users & account linking
	GetWhatsAppUserByPhone(ctx context.Context, phone string) (*WhatsAppUser, error)
	CreateWhatsAppUser(ctx context.Context, phone, name string) (*WhatsAppUser, error)
	CreateLinkCode(ctx context.Context, whatsappUserID string) (*LinkCode, error)
	RedeemLinkCode(ctx context.Context, code, userID string) (string, error)

	// Subscriptions & trial gating
	GetSubscription(ctx context.Context, userID string) (*Subscription, error)
	GetTrialStatus(ctx context.Context, userID string, fallbackStart time.Time) (TrialStatus, error)

	// Usage accounting
	GetMonthlyUsage(ctx context.Context, userID, month string) (UsageRecord, error)
	IncrementUsage(ctx context.Context, userID string, kind UsageKind) error

	// Transactions
	InsertTransaction(ctx context.Context, tx Transaction) (*Transaction, error)
	GetMonthlySummary(ctx context.Context, userID, month string) (MonthlySummary, error)

	// Templates & AI configuration
	ListActiveTemplates(ctx context.Context) (map[string]MessageTemplate, error)
	GetAIConfigValues(ctx context.Context) (map[string]string, error)
	LogAIUsage(ctx context.Context, entry AIUsageEntry) error
}

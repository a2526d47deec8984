package repo

import "time"

// WhatsAppUser represents the whatsapp_users table row. A row is created on
// the first-ever contact from an unseen phone and is never deleted here.
type WhatsAppUser struct {
	ID        string
	Phone     string
	UserID    *string
	Name      string
	IsLinked  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LinkCode is a short-lived single-use code pairing a chat identity with an
// application account.
type LinkCode struct {
	ID             string
	WhatsAppUserID string
	Code           string
	ExpiresAt      time.Time
	Used           bool
	CreatedAt      time.Time
}

// Subscription represents the assinantes table row.
type Subscription struct {
	UserID      string
	Status      string
	Plano       string
	CriadoEm    time.Time
	AtualizadoEm time.Time
}

// TrialStatus describes where a user stands inside the trial window.
type TrialStatus struct {
	IsExpired     bool
	IsActive      bool
	DaysRemaining int
}

// UsageKind selects which monthly counter to increment.
type UsageKind string

const (
	UsageMessage     UsageKind = "message"
	UsageAudio       UsageKind = "audio"
	UsageImage       UsageKind = "image"
	UsageTransaction UsageKind = "transaction"
)

// UsageRecord holds one user's counters for a calendar month (YYYY-MM).
type UsageRecord struct {
	UserID            string
	Month             string
	MessagesCount     int
	AudioCount        int
	ImageCount        int
	TransactionsCount int
}

// Transaction is a persisted financial transaction row.
type Transaction struct {
	ID          string
	UserID      string
	Description string
	Amount      float64
	Type        string
	CategoryID  string
	Date        time.Time
	AccountType string
	Source      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MonthlySummary aggregates a user's transactions for one month.
type MonthlySummary struct {
	Income  float64
	Expense float64
}

// Balance returns income minus expense.
func (s MonthlySummary) Balance() float64 {
	return s.Income - s.Expense
}

// MessageTemplate represents a row of message_templates.
type MessageTemplate struct {
	TemplateKey     string
	TemplateContent string
	Variables       []string
	IsActive        bool
}

// AIUsageEntry logs one metered AI invocation for cost observability.
type AIUsageEntry struct {
	UserID       *string
	Operation    string
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

package repo

import (
	"context"
	"fmt"
	"time"
)

// expenseCategories translates the Portuguese vocabulary the model answers
// with into English storage keys.
var expenseCategories = map[string]string{
	"alimentacao":      "food",
	"mercado":          "groceries",
	"transporte":       "transport",
	"moradia":          "housing",
	"contas":           "utilities",
	"saude":            "health",
	"farmacia":         "pharmacy",
	"educacao":         "education",
	"lazer":            "entertainment",
	"vestuario":        "clothing",
	"assinaturas":      "subscriptions",
	"pets":             "pets",
	"viagem":           "travel",
	"presentes":        "gifts",
	"impostos":         "taxes",
	"cuidados_pessoais": "personal_care",
	"manutencao":       "maintenance",
	"investimento":     "investment",
	"doacao":           "donation",
	"outros":           "other_expense",
}

var incomeCategories = map[string]string{
	"salario":       "salary",
	"freelance":     "freelance",
	"vendas":        "sales",
	"investimentos": "investment_income",
	"aluguel":       "rental",
	"reembolso":     "refund",
	"premio":        "bonus",
	"presente":      "gift_income",
	"aposentadoria": "pension",
	"beneficio":     "benefit",
	"outros":        "other_income",
}

// TranslateCategory maps a model-provided category to its storage key.
// Unknown categories fall back to the type's catch-all bucket.
func TranslateCategory(txType, category string) string {
	if txType == "income" {
		if key, ok := incomeCategories[category]; ok {
			return key
		}
		return "other_income"
	}
	if key, ok := expenseCategories[category]; ok {
		return key
	}
	return "other_expense"
}

// InsertTransaction persists an extracted financial transaction.
func (r *Repository) InsertTransaction(ctx context.Context, tx Transaction) (*Transaction, error) {
	const q = `
INSERT INTO transactions (user_id, description, amount, type, category_id, date, account_type, source)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE(NULLIF($7, ''), 'personal'), COALESCE(NULLIF($8, ''), 'whatsapp'))
RETURNING id, created_at, updated_at;
`
	err := r.pool.QueryRow(ctx, q,
		tx.UserID,
		tx.Description,
		tx.Amount,
		tx.Type,
		tx.CategoryID,
		tx.Date,
		tx.AccountType,
		tx.Source,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return &tx, nil
}

// GetMonthlySummary aggregates income and expense totals for a month.
func (r *Repository) GetMonthlySummary(ctx context.Context, userID, month string) (MonthlySummary, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return MonthlySummary{}, fmt.Errorf("parse month %q: %w", month, err)
	}
	end := start.AddDate(0, 1, 0)

	const q = `
SELECT
    COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0),
    COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0)
FROM transactions
WHERE user_id = $1 AND date >= $2 AND date < $3;
`
	var s MonthlySummary
	if err := r.pool.QueryRow(ctx, q, userID, start, end).Scan(&s.Income, &s.Expense); err != nil {
		return MonthlySummary{}, fmt.Errorf("monthly summary: %w", err)
	}
	return s, nil
}

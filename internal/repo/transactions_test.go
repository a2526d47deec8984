package repo

import "testing"

func TestTranslateCategory(t *testing.T) {
	tests := []struct {
		txType   string
		category string
		want     string
	}{
		{"expense", "alimentacao", "food"},
		{"expense", "mercado", "groceries"},
		{"expense", "transporte", "transport"},
		{"expense", "outros", "other_expense"},
		{"expense", "categoria_inventada", "other_expense"},
		{"expense", "", "other_expense"},
		{"income", "salario", "salary"},
		{"income", "freelance", "freelance"},
		{"income", "outros", "other_income"},
		{"income", "categoria_inventada", "other_income"},
		// Income vocabulary does not leak into expenses and vice versa.
		{"expense", "salario", "other_expense"},
		{"income", "mercado", "other_income"},
	}
	for _, tt := range tests {
		if got := TranslateCategory(tt.txType, tt.category); got != tt.want {
			t.Errorf("TranslateCategory(%q, %q) = %q, want %q", tt.txType, tt.category, got, tt.want)
		}
	}
}

func TestMonthlySummaryBalance(t *testing.T) {
	s := MonthlySummary{Income: 3200.50, Expense: 1200.25}
	if got := s.Balance(); got != 2000.25 {
		t.Fatalf("Balance = %v, want 2000.25", got)
	}
}

package ai

import (
	"testing"
)

func TestParseTransaction(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantNil bool
		want    TransactionData
	}{
		{
			name:    "valid expense",
			content: `{"type":"expense","amount":50,"category":"mercado","description":"compras no mercado","date":"2026-09-01","confidence":0.95}`,
			want:    TransactionData{Type: "expense", Amount: 50, Category: "mercado"},
		},
		{
			name:    "valid income normalizes casing",
			content: `{"type":"Income","amount":1500,"category":" Salario ","description":"salário de setembro"}`,
			want:    TransactionData{Type: "income", Amount: 1500, Category: "salario"},
		},
		{
			name:    "unknown type coerced to expense",
			content: `{"type":"transfer","amount":10,"category":"outros"}`,
			want:    TransactionData{Type: "expense", Amount: 10, Category: "outros"},
		},
		{name: "zero amount", content: `{"amount":0}`, wantNil: true},
		{name: "negative amount", content: `{"type":"expense","amount":-5,"category":"outros"}`, wantNil: true},
		{name: "missing amount", content: `{"type":"expense","category":"outros"}`, wantNil: true},
		{name: "not json", content: "nenhuma transação encontrada", wantNil: true},
		{name: "empty", content: "", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTransaction(tt.content)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("parseTransaction = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("parseTransaction = nil, want transaction")
			}
			if got.Type != tt.want.Type || got.Amount != tt.want.Amount || got.Category != tt.want.Category {
				t.Fatalf("got %+v, want type=%q amount=%v category=%q", got, tt.want.Type, tt.want.Amount, tt.want.Category)
			}
		})
	}
}

func TestExtractJSONBlock(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "pure json untouched",
			content: `{"amount":10}`,
			want:    `{"amount":10}`,
		},
		{
			name:    "prose around json",
			content: "Aqui está a análise: {\"type\":\"expense\",\"amount\":42} espero ter ajudado!",
			want:    `{"type":"expense","amount":42}`,
		},
		{
			name:    "markdown fence",
			content: "```json\n{\"amount\":7}\n```",
			want:    `{"amount":7}`,
		},
		{name: "no braces", content: "não encontrei nada", want: ""},
		{name: "reversed braces", content: "} {", want: ""},
		{name: "empty", content: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSONBlock(tt.content); got != tt.want {
				t.Errorf("extractJSONBlock = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeConfig(t *testing.T) {
	base := defaultModelConfig()

	merged := mergeConfig(base, map[string]string{
		"model":       "gpt-4.1-mini",
		"temperature": "0.7",
		"max_tokens":  "800",
	})
	if merged.Model != "gpt-4.1-mini" {
		t.Errorf("model = %q", merged.Model)
	}
	if merged.Temperature != 0.7 {
		t.Errorf("temperature = %v", merged.Temperature)
	}
	if merged.MaxTokens != 800 {
		t.Errorf("max_tokens = %d", merged.MaxTokens)
	}
	if merged.VisionModel != base.VisionModel {
		t.Errorf("vision model changed unexpectedly: %q", merged.VisionModel)
	}

	// Malformed and empty values keep defaults.
	merged = mergeConfig(defaultModelConfig(), map[string]string{
		"temperature": "quente",
		"max_tokens":  "-1",
		"model":       "",
	})
	if merged.Temperature != base.Temperature {
		t.Errorf("temperature = %v, want default %v", merged.Temperature, base.Temperature)
	}
	if merged.MaxTokens != base.MaxTokens {
		t.Errorf("max_tokens = %d, want default %d", merged.MaxTokens, base.MaxTokens)
	}
	if merged.Model != base.Model {
		t.Errorf("model = %q, want default %q", merged.Model, base.Model)
	}
}

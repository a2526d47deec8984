package repo

import (
	"context"
	"fmt"
)

// GetAIConfigValues loads the ai_config key/value table. The AI extraction
// module caches the result and substitutes hardcoded defaults when this
// fails, so a config-store outage never blocks message processing.
func (r *Repository) GetAIConfigValues(ctx context.Context) (map[string]string, error) {
	const q = `SELECT config_key, config_value FROM ai_config;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load ai config: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan ai config: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ai config: %w", err)
	}
	return values, nil
}

// LogAIUsage records one metered AI invocation. Callers swallow errors; cost
// logging must never abort the user-facing flow.
func (r *Repository) LogAIUsage(ctx context.Context, entry AIUsageEntry) error {
	const q = `
INSERT INTO ai_usage_log (user_id, operation, model, input_tokens, output_tokens, cost_usd)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.pool.Exec(ctx, q,
		entry.UserID,
		entry.Operation,
		entry.Model,
		entry.InputTokens,
		entry.OutputTokens,
		entry.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("log ai usage: %w", err)
	}
	return nil
}

package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// CurrentMonth returns the YYYY-MM bucket for usage accounting.
func CurrentMonth() string {
	return time.Now().Format("2006-01")
}

// GetMonthlyUsage returns the usage counters for a user and month. A missing
// row means zero usage.
func (r *Repository) GetMonthlyUsage(ctx context.Context, userID, month string) (UsageRecord, error) {
	const q = `
SELECT messages_count, audio_count, image_count, transactions_count
FROM usage_records
WHERE user_id = $1 AND month = $2
LIMIT 1;
`
	rec := UsageRecord{UserID: userID, Month: month}
	err := r.pool.QueryRow(ctx, q, userID, month).
		Scan(&rec.MessagesCount, &rec.AudioCount, &rec.ImageCount, &rec.TransactionsCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, nil
		}
		return rec, fmt.Errorf("get monthly usage: %w", err)
	}
	return rec, nil
}

// IncrementUsage bumps one counter for the user's current month, creating
// the row on first use.
func (r *Repository) IncrementUsage(ctx context.Context, userID string, kind UsageKind) error {
	var column string
	switch kind {
	case UsageMessage:
		column = "messages_count"
	case UsageAudio:
		column = "audio_count"
	case UsageImage:
		column = "image_count"
	case UsageTransaction:
		column = "transactions_count"
	default:
		return fmt.Errorf("unknown usage kind: %s", kind)
	}

	q := fmt.Sprintf(`
INSERT INTO usage_records (user_id, month, %[1]s)
VALUES ($1, $2, 1)
ON CONFLICT (user_id, month)
DO UPDATE SET %[1]s = usage_records.%[1]s + 1, updated_at = NOW();
`, column)
	if _, err := r.pool.Exec(ctx, q, userID, CurrentMonth()); err != nil {
		return fmt.Errorf("increment usage %s: %w", kind, err)
	}
	return nil
}

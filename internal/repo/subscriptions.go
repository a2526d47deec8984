package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// TrialDays is the fixed unrestricted-usage window measured from the
// subscription row's creation.
const TrialDays = 7

// GetSubscription returns the assinantes row for a user, or nil when absent.
func (r *Repository) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	const q = `
SELECT user_id, status, plano, criado_em, atualizado_em
FROM assinantes
WHERE user_id = $1
LIMIT 1;
`
	row := r.pool.QueryRow(ctx, q, userID)
	var s Subscription
	if err := row.Scan(&s.UserID, &s.Status, &s.Plano, &s.CriadoEm, &s.AtualizadoEm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &s, nil
}

// GetTrialStatus computes the trial window for a user. When no subscription
// row exists it is backfilled from the WhatsApp user's own creation time, so
// a user predating the assinantes table never gets an incorrectly-expired
// trial.
func (r *Repository) GetTrialStatus(ctx context.Context, userID string, fallbackStart time.Time) (TrialStatus, error) {
	sub, err := r.GetSubscription(ctx, userID)
	if err != nil {
		return TrialStatus{}, err
	}

	if sub == nil {
		const ins = `
INSERT INTO assinantes (user_id, status, plano, criado_em)
VALUES ($1, 'trial', 'starter', $2)
ON CONFLICT (user_id) DO NOTHING
RETURNING user_id, status, plano, criado_em, atualizado_em;
`
		var s Subscription
		err := r.pool.QueryRow(ctx, ins, userID, fallbackStart).
			Scan(&s.UserID, &s.Status, &s.Plano, &s.CriadoEm, &s.AtualizadoEm)
		switch {
		case err == nil:
			sub = &s
		case errors.Is(err, pgx.ErrNoRows):
			// Lost a concurrent backfill race; read the winner's row.
			if sub, err = r.GetSubscription(ctx, userID); err != nil {
				return TrialStatus{}, err
			}
		default:
			return TrialStatus{}, fmt.Errorf("backfill subscription: %w", err)
		}
	}
	if sub == nil {
		return ComputeTrialStatus(fallbackStart, "trial", time.Now()), nil
	}

	return ComputeTrialStatus(sub.CriadoEm, sub.Status, time.Now()), nil
}

// ComputeTrialStatus derives trial expiry from the subscription start.
// Given a start exactly N days ago: expired iff N >= TrialDays and
// daysRemaining == max(0, TrialDays-N). A subscription with status 'ativo'
// is active regardless of the window.
func ComputeTrialStatus(createdAt time.Time, status string, now time.Time) TrialStatus {
	elapsedDays := int(now.Sub(createdAt).Hours() / 24)
	remaining := TrialDays - elapsedDays
	if remaining < 0 {
		remaining = 0
	}
	return TrialStatus{
		IsExpired:     elapsedDays >= TrialDays,
		IsActive:      status == "ativo",
		DaysRemaining: remaining,
	}
}

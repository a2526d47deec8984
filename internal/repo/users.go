package repo

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrLinkCodeInvalid is returned when a link code is unknown, already used
// or past its expiry.
var ErrLinkCodeInvalid = errors.New("link code invalid or expired")

const linkCodeTTL = 10 * time.Minute

// GetWhatsAppUserByPhone returns the user for a phone, or nil when unseen.
func (r *Repository) GetWhatsAppUserByPhone(ctx context.Context, phone string) (*WhatsAppUser, error) {
	const q = `
SELECT id, phone, user_id, name, is_linked, created_at, updated_at
FROM whatsapp_users
WHERE phone = $1
LIMIT 1;
`
	row := r.pool.QueryRow(ctx, q, phone)
	var u WhatsAppUser
	if err := row.Scan(&u.ID, &u.Phone, &u.UserID, &u.Name, &u.IsLinked, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get whatsapp user: %w", err)
	}
	return &u, nil
}

// CreateWhatsAppUser registers a first-contact phone as an unlinked user.
func (r *Repository) CreateWhatsAppUser(ctx context.Context, phone, name string) (*WhatsAppUser, error) {
	const q = `
INSERT INTO whatsapp_users (phone, name, is_linked)
VALUES ($1, $2, FALSE)
ON CONFLICT (phone) DO UPDATE SET
    name = COALESCE(NULLIF(EXCLUDED.name, ''), whatsapp_users.name),
    updated_at = NOW()
RETURNING id, phone, user_id, name, is_linked, created_at, updated_at;
`
	row := r.pool.QueryRow(ctx, q, phone, name)
	var u WhatsAppUser
	if err := row.Scan(&u.ID, &u.Phone, &u.UserID, &u.Name, &u.IsLinked, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create whatsapp user: %w", err)
	}
	return &u, nil
}

// CreateLinkCode issues a fresh single-use code for an unlinked user.
func (r *Repository) CreateLinkCode(ctx context.Context, whatsappUserID string) (*LinkCode, error) {
	code, err := generateLinkCode()
	if err != nil {
		return nil, fmt.Errorf("generate link code: %w", err)
	}

	const q = `
INSERT INTO link_codes (whatsapp_user_id, code, expires_at, used)
VALUES ($1, $2, $3, FALSE)
RETURNING id, whatsapp_user_id, code, expires_at, used, created_at;
`
	row := r.pool.QueryRow(ctx, q, whatsappUserID, code, time.Now().Add(linkCodeTTL))
	var lc LinkCode
	if err := row.Scan(&lc.ID, &lc.WhatsAppUserID, &lc.Code, &lc.ExpiresAt, &lc.Used, &lc.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert link code: %w", err)
	}
	return &lc, nil
}

// RedeemLinkCode atomically verifies a code, marks the WhatsApp user linked,
// consumes the code and upserts a trial subscription row. Everything rolls
// back together on failure. Returns the linked phone number.
func (r *Repository) RedeemLinkCode(ctx context.Context, code, userID string) (string, error) {
	var phone string
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		const sel = `
SELECT lc.id, lc.whatsapp_user_id, lc.expires_at, lc.used, wu.phone
FROM link_codes lc
JOIN whatsapp_users wu ON wu.id = lc.whatsapp_user_id
WHERE lc.code = $1
ORDER BY lc.created_at DESC
LIMIT 1
FOR UPDATE OF lc;
`
		var (
			codeID    string
			waUserID  string
			expiresAt time.Time
			used      bool
		)
		if err := tx.QueryRow(ctx, sel, code).Scan(&codeID, &waUserID, &expiresAt, &used, &phone); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLinkCodeInvalid
			}
			return fmt.Errorf("select link code: %w", err)
		}
		if used || time.Now().After(expiresAt) {
			return ErrLinkCodeInvalid
		}

		if _, err := tx.Exec(ctx, `
UPDATE whatsapp_users SET user_id = $1, is_linked = TRUE, updated_at = NOW() WHERE id = $2;
`, userID, waUserID); err != nil {
			return fmt.Errorf("link whatsapp user: %w", err)
		}

		if _, err := tx.Exec(ctx, `
UPDATE link_codes SET used = TRUE WHERE id = $1;
`, codeID); err != nil {
			return fmt.Errorf("consume link code: %w", err)
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO assinantes (user_id, status, plano)
VALUES ($1, 'trial', 'starter')
ON CONFLICT (user_id) DO NOTHING;
`, userID); err != nil {
			return fmt.Errorf("upsert subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return phone, nil
}

const linkCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateLinkCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = linkCodeCharset[int(b)%len(linkCodeCharset)]
	}
	return string(buf), nil
}

// LinkCodeUsable reports whether a code can still be redeemed at the given
// instant.
func LinkCodeUsable(lc LinkCode, now time.Time) bool {
	return !lc.Used && now.Before(lc.ExpiresAt)
}

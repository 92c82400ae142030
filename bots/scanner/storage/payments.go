package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/scanbot/core/logger"
)

// Payment is a provider-confirmed purchase waiting to be claimed by the bot.
type Payment struct {
	ID          int64  `db:"id"`
	Provider    string `db:"provider"`
	ProviderRef string `db:"provider_ref"`
	UserID      int64  `db:"user_id"`
	Tariff      string `db:"tariff"`
	Credits     int    `db:"credits"`
	AmountCents int64  `db:"amount_cents"`
	Currency    string `db:"currency"`
}

// RecordPayment stores a confirmed payment. It reports false when the
// provider reference was already recorded.
func (r *Repository) RecordPayment(ctx context.Context, p Payment) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (provider, provider_ref, user_id, tariff, credits, amount_cents, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider_ref) DO NOTHING
	`, p.Provider, p.ProviderRef, p.UserID, p.Tariff, p.Credits, p.AmountCents, p.Currency)
	if err != nil {
		return false, fmt.Errorf("record payment %s: %w", p.ProviderRef, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record payment %s: %w", p.ProviderRef, err)
	}
	return n == 1, nil
}

// ClaimPayment marks the user's oldest unclaimed payment as claimed and
// returns it. ErrNoPayment is returned when nothing is waiting.
func (r *Repository) ClaimPayment(ctx context.Context, userID int64) (Payment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Payment{}, fmt.Errorf("claim payment: begin: %w", err)
	}
	defer tx.Rollback()

	var p Payment
	err = tx.GetContext(ctx, &p, `
		SELECT id, provider, provider_ref, user_id, tariff, credits, amount_cents, currency
		FROM payments
		WHERE user_id = $1 AND claimed_at IS NULL
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Payment{}, ErrNoPayment
	}
	if err != nil {
		return Payment{}, fmt.Errorf("claim payment: select: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE payments SET claimed_at = NOW() WHERE id = $1`, p.ID); err != nil {
		return Payment{}, fmt.Errorf("claim payment: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Payment{}, fmt.Errorf("claim payment: commit: %w", err)
	}
	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "payment.claimed",
		slog.Int64("user_id", userID),
		slog.String("tariff", p.Tariff),
		slog.Int("credits", p.Credits),
	)
	return p, nil
}

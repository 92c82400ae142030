// Package payment verifies purchases before credits are granted.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/scanbot/bots/scanner/storage"
	"github.com/m3rciful/scanbot/core/logger"
)

// ErrNotPaid is returned when no confirmed payment exists for the user.
var ErrNotPaid = errors.New("payment: not found")

// Result describes a verified purchase.
type Result struct {
	Tariff  string
	Credits int
}

// Verifier confirms that the user has paid.
type Verifier interface {
	Verify(ctx context.Context, userID int64) (Result, error)
}

// Stub accepts every check. It is meant for staging where no payment
// provider is connected.
type Stub struct {
	Credits int
}

// Verify always succeeds with the configured default credits.
func (s Stub) Verify(ctx context.Context, userID int64) (Result, error) {
	credits := s.Credits
	if credits <= 0 {
		credits = 1
	}
	logger.LogEvent(ctx, logger.SVCPayments, slog.LevelWarn, "payment.stub_accept",
		slog.Int64("user_id", userID),
		slog.Int("credits", credits),
	)
	return Result{Tariff: "stub", Credits: credits}, nil
}

// Claimer hands out webhook-confirmed payments exactly once.
type Claimer interface {
	ClaimPayment(ctx context.Context, userID int64) (storage.Payment, error)
}

// Ledger verifies against payments recorded by the provider webhook.
type Ledger struct {
	claims Claimer
}

// NewLedger returns a Verifier backed by claims.
func NewLedger(claims Claimer) *Ledger {
	return &Ledger{claims: claims}
}

// Verify claims the oldest unclaimed payment of the user.
func (l *Ledger) Verify(ctx context.Context, userID int64) (Result, error) {
	p, err := l.claims.ClaimPayment(ctx, userID)
	if errors.Is(err, storage.ErrNoPayment) {
		logger.LogEvent(ctx, logger.SVCPayments, slog.LevelInfo, "payment.not_found",
			slog.Int64("user_id", userID),
		)
		return Result{}, ErrNotPaid
	}
	if err != nil {
		return Result{}, fmt.Errorf("verify payment: %w", err)
	}
	credits := p.Credits
	if credits <= 0 {
		credits = 1
	}
	logger.LogEvent(ctx, logger.SVCPayments, slog.LevelInfo, "payment.verified",
		slog.Int64("user_id", userID),
		slog.String("tariff", p.Tariff),
		slog.Int("credits", credits),
	)
	return Result{Tariff: p.Tariff, Credits: credits}, nil
}

// Package access checks and activates whitelisted free access by contact email.
package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/scanbot/core/logger"
)

// Status is the outcome of a free-access lookup.
type Status struct {
	HasAccess     bool
	ExpiresAt     time.Time
	DaysRemaining int
}

// Verifier checks a contact against the free-access whitelist and activates
// the grant for a user. Activation succeeds at most once per contact.
type Verifier interface {
	CheckFreeAccess(ctx context.Context, contact string) (Status, error)
	ActivateFreeAccess(ctx context.Context, contact string, userID int64) (bool, error)
}

// NormalizeContact trims and lower-cases a contact id.
func NormalizeContact(contact string) string {
	return strings.ToLower(strings.TrimSpace(contact))
}

// Postgres is a Verifier backed by the metaliza_* SQL functions.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres returns a verifier over db.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// CheckFreeAccess reports whether contact has an active grant.
func (p *Postgres) CheckFreeAccess(ctx context.Context, contact string) (Status, error) {
	contact = NormalizeContact(contact)
	if contact == "" {
		return Status{}, nil
	}
	var (
		has     sql.NullBool
		dateEnd sql.NullTime
		days    sql.NullInt64
	)
	err := p.db.QueryRowxContext(ctx,
		`SELECT has_access, date_end, days_remaining FROM metaliza_check_free_access($1)`, contact,
	).Scan(&has, &dateEnd, &days)
	if errors.Is(err, sql.ErrNoRows) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("check free access: %w", err)
	}
	st := Status{HasAccess: has.Valid && has.Bool}
	if dateEnd.Valid {
		st.ExpiresAt = dateEnd.Time
	}
	if days.Valid {
		st.DaysRemaining = int(days.Int64)
	}
	logger.LogEvent(ctx, logger.SVCAccess, slog.LevelInfo, "access.checked",
		slog.Bool("has_access", st.HasAccess),
		slog.Int("days_remaining", st.DaysRemaining),
	)
	return st, nil
}

// ActivateFreeAccess binds the grant for contact to userID. It returns false
// when the grant was already activated.
func (p *Postgres) ActivateFreeAccess(ctx context.Context, contact string, userID int64) (bool, error) {
	contact = NormalizeContact(contact)
	if contact == "" {
		return false, nil
	}
	var activated sql.NullBool
	err := p.db.QueryRowxContext(ctx,
		`SELECT metaliza_activate_free_access($1, $2)`, contact, userID,
	).Scan(&activated)
	if err != nil {
		return false, fmt.Errorf("activate free access: %w", err)
	}
	ok := activated.Valid && activated.Bool
	logger.LogEvent(ctx, logger.SVCAccess, slog.LevelInfo, "access.activate",
		slog.Int64("user_id", userID),
		slog.Bool("activated", ok),
	)
	return ok, nil
}

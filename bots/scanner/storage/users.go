package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is the persisted profile of a Telegram user.
type User struct {
	ID            int64     `db:"user_id"`
	Username      string    `db:"username"`
	FirstName     string    `db:"first_name"`
	LastName      string    `db:"last_name"`
	CreatedAt     time.Time `db:"created_at"`
	LastActive    time.Time `db:"last_active"`
	TotalAnalyses int       `db:"total_analyses"`
}

// UpsertUser creates the user or refreshes the profile and last activity.
func (r *Repository) UpsertUser(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			last_active = NOW()
	`, u.ID, u.Username, u.FirstName, u.LastName)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", u.ID, err)
	}
	return nil
}

// UserStats returns the stored profile of a single user.
func (r *Repository) UserStats(ctx context.Context, userID int64) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		SELECT user_id, COALESCE(username, '') AS username, COALESCE(first_name, '') AS first_name,
			COALESCE(last_name, '') AS last_name, created_at, last_active, total_analyses
		FROM users
		WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("user stats %d: %w", userID, err)
	}
	return u, nil
}

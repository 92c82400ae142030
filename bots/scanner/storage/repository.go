// Package storage persists users, analyses, photos and payments in Postgres.
package storage

import (
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when an update targets a missing row.
	ErrNotFound = errors.New("storage: not found")
	// ErrNoPayment is returned when the user has no unclaimed confirmed payment.
	ErrNoPayment = errors.New("storage: no unclaimed payment")
)

// Repository wraps a sqlx handle. All queries use Postgres placeholders.
type Repository struct {
	db *sqlx.DB
}

// New returns a repository over db.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

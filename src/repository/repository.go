// Package repository implements the durable storage contract over
// PostgreSQL: token authentication, conversation lifecycle and message
// persistence.
package repository

import (
	"github.com/itay-sho/co-buddies-server/src/db"
)

// Repository handles all database operations for the chat backend.
type Repository struct {
	db *db.DB
}

// NewRepository creates a new repository backed by the given database.
func NewRepository(database *db.DB) *Repository {
	return &Repository{
		db: database,
	}
}

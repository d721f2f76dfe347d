package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Store provides access to the PostgreSQL database for client and lexicon
// configuration. Moderation results are never written here.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS clients (
	id             UUID PRIMARY KEY,
	name           TEXT NOT NULL,
	api_key_hash   TEXT NOT NULL,
	api_key_prefix TEXT NOT NULL UNIQUE,
	mode           TEXT NOT NULL DEFAULT 'enforce',
	policy         JSONB NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS lexicon_words (
	word       TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("EnsureSchema: %w", err)
	}
	return nil
}

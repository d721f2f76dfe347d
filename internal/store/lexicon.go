package store

import (
	"context"
	"fmt"
	"strings"
)

// LexiconWords returns every persisted lexicon word in insertion order.
func (s *Store) LexiconWords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT word FROM lexicon_words ORDER BY created_at, word`)
	if err != nil {
		return nil, fmt.Errorf("LexiconWords: %w", err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("LexiconWords: %w", err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("LexiconWords: %w", err)
	}
	return words, nil
}

// AddLexiconWords lowercases and inserts words in one transaction. Words
// already present are skipped.
func (s *Store) AddLexiconWords(ctx context.Context, words []string) error {
	if len(words) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("AddLexiconWords: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, w := range words {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lexicon_words (word) VALUES ($1) ON CONFLICT (word) DO NOTHING`,
			strings.ToLower(w),
		); err != nil {
			return fmt.Errorf("AddLexiconWords: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("AddLexiconWords: %w", err)
	}
	return nil
}

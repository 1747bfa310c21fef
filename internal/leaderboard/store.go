// internal/leaderboard/store.go
//
// Durable leaderboard on the scores table (see assets/sql).
// Responsibilities:
//   - Record one row per finished game.
//   - Rank the best scores overall or over the last 24 hours.
//
// Ties go to the earlier row, so the first player to reach a score keeps
// the higher rank.

// Package leaderboard persists final scores and serves ranked top lists.
package leaderboard

import (
	"context"
	"database/sql"
	"fmt"
)

// DefaultLimit is used when Top is called with a non-positive limit.
const DefaultLimit = 10

// Entry is one ranked row.
type Entry struct {
	Name  string `json:"name"`
	Score uint64 `json:"score"`
}

// Store reads and writes the scores table created by the embedded migrations.
type Store struct{ db *sql.DB }

// NewStore wraps a migrated database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record inserts one finished game.
func (s *Store) Record(ctx context.Context, name string, score uint64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO scores(name, score) VALUES(?, ?)`, name, int64(score),
	); err != nil {
		return fmt.Errorf("record score for %q: %w", name, err)
	}
	return nil
}

// Top returns the best scores, highest first; ties go to the earlier entry.
// With daily set only games recorded in the last 24 hours count.
func (s *Store) Top(ctx context.Context, limit int, daily bool) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := `SELECT name, score FROM scores ORDER BY score DESC, id ASC LIMIT ?`
	if daily {
		query = `SELECT name, score FROM scores
WHERE created_at >= datetime('now', '-1 day')
ORDER BY score DESC, id ASC LIMIT ?`
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query top scores: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e     Entry
			score int64
		)
		if err := rows.Scan(&e.Name, &score); err != nil {
			return nil, err
		}
		e.Score = uint64(score)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Package audit offers an optional, explicitly opt-in persistence layer for
// posted feedback: one row per recorded feedback event holding the correlation ID, action
// kind, execution/finished state, detail count, and timestamp. This is
// deliberately not core protocol state - the controller runs identically
// whether or not a Store is wired in - grounded on the teacher's own
// repository-layer stack (internal/repository/postgres/*_repository.go):
// pgxpool for the connection pool and query execution.
package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one posted-feedback event.
type Record struct {
	CorrelationID string
	ActionKind    string
	Execution     string
	Finished      string
	DetailCount   int
}

// Store persists Records to Postgres.
type Store struct {
	db *pgxpool.Pool
}

// NewStore wraps an already-connected pool. Callers are expected to run
// Migrate (or the equivalent golang-migrate CLI invocation) before the
// first write.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Open connects to Postgres using dsn and pings it, following the same
// fail-fast connectivity check cmd/server/main.go performs at startup.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: connecting to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: pinging database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.db.Close()
}

// RecordFeedback inserts one audit row for a posted feedback event.
func (s *Store) RecordFeedback(ctx context.Context, r Record) error {
	const query = `
		INSERT INTO feedback_audit (correlation_id, action_kind, execution, finished, detail_count)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.Exec(ctx, query, r.CorrelationID, r.ActionKind, r.Execution, r.Finished, r.DetailCount)
	if err != nil {
		return fmt.Errorf("audit: inserting feedback record: %w", err)
	}
	return nil
}

// RecentFeedback returns the most recent n audit rows, newest first.
func (s *Store) RecentFeedback(ctx context.Context, n int) ([]Record, error) {
	const query = `
		SELECT correlation_id, action_kind, execution, finished, detail_count
		FROM feedback_audit
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("audit: querying feedback records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.CorrelationID, &r.ActionKind, &r.Execution, &r.Finished, &r.DetailCount); err != nil {
			return nil, fmt.Errorf("audit: scanning feedback record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

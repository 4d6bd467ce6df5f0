package secevent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage appends events to a Postgres table so dashboard consumers
// can query the stream with SQL. The table is insert-only; retention sweeps
// are an operational concern outside this package.
//
// Expected schema:
//
//	CREATE TABLE IF NOT EXISTS security_events (
//	    id          UUID PRIMARY KEY,
//	    event_type  TEXT NOT NULL,
//	    user_id     TEXT,
//	    session_id  TEXT,
//	    ip          TEXT,
//	    description TEXT,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
type PostgresStorage struct {
	pool  *pgxpool.Pool
	table string
}

// PostgresOption configures PostgresStorage.
type PostgresOption func(*PostgresStorage)

// WithTable overrides the default "security_events" table name.
func WithTable(name string) PostgresOption {
	return func(s *PostgresStorage) {
		if name != "" {
			s.table = name
		}
	}
}

// NewPostgresStorage creates a Postgres-backed event sink.
func NewPostgresStorage(pool *pgxpool.Pool, opts ...PostgresOption) *PostgresStorage {
	if pool == nil {
		panic("secevent: pgx pool cannot be nil")
	}

	s := &PostgresStorage{
		pool:  pool,
		table: "security_events",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store inserts one event row.
func (s *PostgresStorage) Store(ctx context.Context, event Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, event_type, user_id, session_id, ip, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.table)

	_, err := s.pool.Exec(ctx, query,
		event.ID,
		string(event.Type),
		nullable(event.UserID),
		nullable(event.SessionID),
		nullable(event.IP),
		event.Description,
		event.CreatedAt,
	)
	if err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

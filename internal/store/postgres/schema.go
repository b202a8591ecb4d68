package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS saved_queries (
		id         BIGSERIAL PRIMARY KEY,
		keyword    TEXT        NOT NULL,
		category   TEXT,
		is_active  BOOLEAN     NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tenders (
		id              BIGSERIAL PRIMARY KEY,
		external_id     TEXT        NOT NULL UNIQUE,
		purchase_number TEXT        NOT NULL,
		title           TEXT        NOT NULL,
		customer_name   TEXT,
		customer_inn    TEXT,
		region          TEXT,
		max_price       NUMERIC,
		additional_info TEXT,
		source_url      TEXT,
		publish_date    TIMESTAMPTZ,
		deadline        TIMESTAMPTZ,
		saved_at        TIMESTAMPTZ NOT NULL,
		query_id        BIGINT REFERENCES saved_queries (id) ON DELETE SET NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tenders_deadline_idx ON tenders (deadline)`,
	`CREATE INDEX IF NOT EXISTS tenders_saved_at_idx ON tenders (saved_at)`,
	`CREATE INDEX IF NOT EXISTS tenders_query_id_idx ON tenders (query_id)`,
	`CREATE INDEX IF NOT EXISTS saved_queries_active_idx ON saved_queries (is_active, keyword)`,
}

// EnsureSchema creates the tables and indexes when they do not exist.
// Existing tables are never altered.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

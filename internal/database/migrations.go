package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema holds the ordered DDL statements the dashboard needs. Each
// statement is idempotent so startup can run them unconditionally.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS job_runs (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		status     TEXT NOT NULL,
		total      INTEGER NOT NULL DEFAULT 0,
		done       INTEGER NOT NULL DEFAULT 0,
		ok         INTEGER NOT NULL DEFAULT 0,
		err        INTEGER NOT NULL DEFAULT 0,
		note       TEXT NOT NULL DEFAULT '',
		meta       JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_runs_kind ON job_runs (kind, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS job_events (
		id         BIGSERIAL PRIMARY KEY,
		job_id     TEXT NOT NULL,
		level      TEXT NOT NULL,
		message    TEXT NOT NULL DEFAULT '',
		plus       INTEGER NOT NULL DEFAULT 0,
		meta       JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_job_events_job_id ON job_events (job_id, id)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          BIGSERIAL PRIMARY KEY,
		site        TEXT NOT NULL,
		url         TEXT NOT NULL,
		title       TEXT NOT NULL DEFAULT '',
		asin        TEXT NOT NULL DEFAULT '',
		price       NUMERIC(10,2) NOT NULL DEFAULT 0,
		final_price NUMERIC(10,2) NOT NULL DEFAULT 0,
		image_url   TEXT NOT NULL DEFAULT '',
		store_name  TEXT NOT NULL DEFAULT '',
		has_details BOOLEAN NOT NULL DEFAULT FALSE,
		scraped_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (site, url)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_missing_details ON products (site) WHERE has_details = FALSE`,
}

// Migrate applies the schema. Safe to call on every startup.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

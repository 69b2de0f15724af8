// Package store implements the Task Store, Download Tracker records, and
// the Space Accounting singletons (Job, Quota, Usage, Batch) against
// Postgres via database/sql, following the teacher's pkg/db convention.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open creates a database/sql client (lib/pq) from a DATABASE_URL and
// verifies connectivity, then applies the store's schema.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	input_path TEXT NOT NULL,
	output_path TEXT NOT NULL,
	input_bytes BIGINT NOT NULL DEFAULT 0,
	output_bytes BIGINT NOT NULL DEFAULT 0,
	preset_name TEXT NOT NULL,
	overrides JSONB NOT NULL DEFAULT '{}',
	status INTEGER NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	duration_sec DOUBLE PRECISION,
	current_sec DOUBLE PRECISION,
	speed DOUBLE PRECISION,
	eta_sec DOUBLE PRECISION,
	error TEXT,
	batch_id TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at);

CREATE TABLE IF NOT EXISTS download_records (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	file_name TEXT NOT NULL,
	file_bytes BIGINT NOT NULL DEFAULT 0,
	downloaded_at TIMESTAMPTZ NOT NULL,
	scheduled_delete_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ,
	client_addr TEXT,
	user_agent TEXT
);
CREATE INDEX IF NOT EXISTS idx_downloads_pending ON download_records (deleted_at, scheduled_delete_at);

CREATE TABLE IF NOT EXISTS quota (
	id INTEGER PRIMARY KEY DEFAULT 1,
	max_total_bytes BIGINT NOT NULL,
	reserved_bytes BIGINT NOT NULL,
	enabled BOOLEAN NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CHECK (id = 1)
);

CREATE TABLE IF NOT EXISTS usage (
	id INTEGER PRIMARY KEY DEFAULT 1,
	uploads_bytes BIGINT NOT NULL DEFAULT 0,
	outputs_bytes BIGINT NOT NULL DEFAULT 0,
	temp_bytes BIGINT NOT NULL DEFAULT 0,
	last_measured_at TIMESTAMPTZ,
	CHECK (id = 1)
);

CREATE TABLE IF NOT EXISTS batches (
	batch_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	total_jobs INTEGER NOT NULL DEFAULT 0,
	completed_jobs INTEGER NOT NULL DEFAULT 0,
	estimated_bytes BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
`

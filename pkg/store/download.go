package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DownloadRecord tracks one delivered output file and the time it becomes
// eligible for retention cleanup (spec §4.7).
type DownloadRecord struct {
	ID                string
	JobID             string
	FileName          string
	FileBytes         int64
	DownloadedAt      time.Time
	ScheduledDeleteAt time.Time
	DeletedAt         *time.Time
	ClientAddr        string
	UserAgent         string
}

func (r DownloadRecord) Due(now time.Time) bool {
	return r.DeletedAt == nil && !now.Before(r.ScheduledDeleteAt)
}

// DownloadStore implements the Download Retention Tracker's record-keeping
// half; the sweep/delete half lives in pkg/retention.
type DownloadStore struct {
	db *sql.DB
}

func NewDownloadStore(db *sql.DB) *DownloadStore { return &DownloadStore{db: db} }

func (s *DownloadStore) Track(ctx context.Context, r DownloadRecord) (DownloadRecord, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.DownloadedAt.IsZero() {
		r.DownloadedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO download_records (id, job_id, file_name, file_bytes, downloaded_at,
			scheduled_delete_at, client_addr, user_agent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, r.ID, r.JobID, r.FileName, r.FileBytes, r.DownloadedAt, r.ScheduledDeleteAt,
		r.ClientAddr, r.UserAgent)
	if err != nil {
		return DownloadRecord{}, newStorageErr("track download", err)
	}
	return r, nil
}

// ListPending returns not-yet-deleted records whose scheduled_delete_at is
// at or before the given time, oldest first.
func (s *DownloadStore) ListPending(ctx context.Context, asOf time.Time) ([]DownloadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, file_name, file_bytes, downloaded_at, scheduled_delete_at,
			deleted_at, COALESCE(client_addr,''), COALESCE(user_agent,'')
		FROM download_records
		WHERE deleted_at IS NULL AND scheduled_delete_at <= $1
		ORDER BY scheduled_delete_at ASC
	`, asOf)
	if err != nil {
		return nil, newStorageErr("list pending downloads", err)
	}
	defer rows.Close()

	var out []DownloadRecord
	for rows.Next() {
		var r DownloadRecord
		if err := rows.Scan(&r.ID, &r.JobID, &r.FileName, &r.FileBytes, &r.DownloadedAt,
			&r.ScheduledDeleteAt, &r.DeletedAt, &r.ClientAddr, &r.UserAgent); err != nil {
			return nil, newStorageErr("scan download record", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListDownloadedBefore returns not-yet-deleted records whose downloaded_at
// is at or before cutoff, oldest first. Unlike ListPending, it ignores each
// record's own ScheduledDeleteAt — it's the query a tier override (spec
// §4.6.4's Aggressive/Emergency downloaded-file cutoffs) uses to reclaim
// space on a schedule tighter than what was originally promised.
func (s *DownloadStore) ListDownloadedBefore(ctx context.Context, cutoff time.Time) ([]DownloadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, file_name, file_bytes, downloaded_at, scheduled_delete_at,
			deleted_at, COALESCE(client_addr,''), COALESCE(user_agent,'')
		FROM download_records
		WHERE deleted_at IS NULL AND downloaded_at <= $1
		ORDER BY downloaded_at ASC
	`, cutoff)
	if err != nil {
		return nil, newStorageErr("list downloaded-before downloads", err)
	}
	defer rows.Close()

	var out []DownloadRecord
	for rows.Next() {
		var r DownloadRecord
		if err := rows.Scan(&r.ID, &r.JobID, &r.FileName, &r.FileBytes, &r.DownloadedAt,
			&r.ScheduledDeleteAt, &r.DeletedAt, &r.ClientAddr, &r.UserAgent); err != nil {
			return nil, newStorageErr("scan download record", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkDeleted is idempotent (P9): a record already marked deleted is left
// untouched, so re-sweeping a record the sweeper already handled is a
// harmless no-op rather than a double-delete.
func (s *DownloadStore) MarkDeleted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE download_records SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL
	`, time.Now().UTC(), id)
	if err != nil {
		return newStorageErr("mark download deleted", err)
	}
	return nil
}

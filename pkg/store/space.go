package store

import (
	"context"
	"database/sql"
	"time"
)

// Quota is the singleton disk-space admission policy (spec §4.6).
type Quota struct {
	MaxTotalBytes int64
	ReservedBytes int64
	Enabled       bool
	UpdatedAt     time.Time
}

// Usage is the singleton three-bucket accounting snapshot the Disk-Space
// Governor maintains (spec §4.6).
type Usage struct {
	UploadsBytes   int64
	OutputsBytes   int64
	TempBytes      int64
	LastMeasuredAt *time.Time
}

func (u Usage) Total() int64 {
	return u.UploadsBytes + u.OutputsBytes + u.TempBytes
}

// SpaceStore implements the Quota/Usage singletons.
type SpaceStore struct {
	db *sql.DB
}

func NewSpaceStore(db *sql.DB) *SpaceStore { return &SpaceStore{db: db} }

func (s *SpaceStore) GetQuota(ctx context.Context) (Quota, error) {
	var q Quota
	err := s.db.QueryRowContext(ctx, `
		SELECT max_total_bytes, reserved_bytes, enabled, updated_at FROM quota WHERE id = 1
	`).Scan(&q.MaxTotalBytes, &q.ReservedBytes, &q.Enabled, &q.UpdatedAt)
	if err != nil {
		return Quota{}, newStorageErr("get quota", err)
	}
	return q, nil
}

func (s *SpaceStore) SetQuota(ctx context.Context, q Quota) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quota (id, max_total_bytes, reserved_bytes, enabled, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			max_total_bytes = EXCLUDED.max_total_bytes,
			reserved_bytes = EXCLUDED.reserved_bytes,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
	`, q.MaxTotalBytes, q.ReservedBytes, q.Enabled, time.Now().UTC())
	if err != nil {
		return newStorageErr("set quota", err)
	}
	return nil
}

func (s *SpaceStore) GetUsage(ctx context.Context) (Usage, error) {
	var u Usage
	err := s.db.QueryRowContext(ctx, `
		SELECT uploads_bytes, outputs_bytes, temp_bytes, last_measured_at FROM usage WHERE id = 1
	`).Scan(&u.UploadsBytes, &u.OutputsBytes, &u.TempBytes, &u.LastMeasuredAt)
	if err == sql.ErrNoRows {
		return Usage{}, nil
	}
	if err != nil {
		return Usage{}, newStorageErr("get usage", err)
	}
	return u, nil
}

// SetUsage replaces the usage snapshot outright; it is how the Governor's
// periodic full re-measurement (via directory walk) commits.
func (s *SpaceStore) SetUsage(ctx context.Context, u Usage) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage (id, uploads_bytes, outputs_bytes, temp_bytes, last_measured_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			uploads_bytes = EXCLUDED.uploads_bytes,
			outputs_bytes = EXCLUDED.outputs_bytes,
			temp_bytes = EXCLUDED.temp_bytes,
			last_measured_at = EXCLUDED.last_measured_at
	`, u.UploadsBytes, u.OutputsBytes, u.TempBytes, now)
	if err != nil {
		return newStorageErr("set usage", err)
	}
	return nil
}

// AdjustUsage applies incremental deltas to one bucket, clamping the result
// at zero (P7) so a double-counted shrink can never drive a bucket negative.
func (s *SpaceStore) AdjustUsage(ctx context.Context, bucket string, delta int64) error {
	column, err := usageColumn(bucket)
	if err != nil {
		return err
	}
	_, execErr := s.db.ExecContext(ctx, `
		INSERT INTO usage (id, `+column+`, last_measured_at) VALUES (1, GREATEST($1,0), $2)
		ON CONFLICT (id) DO UPDATE SET
			`+column+` = GREATEST(usage.`+column+` + $1, 0),
			last_measured_at = $2
	`, delta, time.Now().UTC())
	if execErr != nil {
		return newStorageErr("adjust usage", execErr)
	}
	return nil
}

func usageColumn(bucket string) (string, error) {
	switch bucket {
	case "uploads":
		return "uploads_bytes", nil
	case "outputs":
		return "outputs_bytes", nil
	case "temp":
		return "temp_bytes", nil
	default:
		return "", newStorageErr("adjust usage", sql.ErrNoRows)
	}
}

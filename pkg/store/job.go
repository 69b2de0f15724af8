package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Status is a Job's lifecycle state, wire-encoded as the integers 0..4 in
// the order Pending=0, Converting=1, Completed=2, Failed=3, Cancelled=4
// (spec §6.1).
type Status int

const (
	StatusPending Status = iota
	StatusConverting
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConverting:
		return "converting"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job is the spec §3.1 data model.
type Job struct {
	ID          string
	Name        string
	InputPath   string
	OutputPath  string
	InputBytes  int64
	OutputBytes int64
	PresetName  string
	Overrides   map[string]string
	Status      Status
	Progress    int
	DurationSec *float64
	CurrentSec  *float64
	Speed       *float64
	ETASec      *float64
	Error       string
	BatchID     string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// JobStore implements the Task Store (spec §4.1) over Postgres.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *JobStore { return &JobStore{db: db} }

// Create inserts a job with initial status Pending. An ID is assigned if
// the caller did not already set one.
func (s *JobStore) Create(ctx context.Context, j Job) (Job, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	j.Status = StatusPending
	j.CreatedAt = time.Now().UTC()

	overrides, err := json.Marshal(j.Overrides)
	if err != nil {
		return Job{}, newStorageErr("marshal overrides", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, name, input_path, output_path, input_bytes, output_bytes,
			preset_name, overrides, status, progress, batch_id, created_at)
		VALUES ($1,$2,$3,$4,$5,0,$6,$7,$8,0,NULLIF($9,''),$10)
	`, j.ID, j.Name, j.InputPath, j.OutputPath, j.InputBytes, j.PresetName, overrides,
		int(StatusPending), j.BatchID, j.CreatedAt)
	if err != nil {
		return Job{}, newStorageErr("create job", err)
	}
	return j, nil
}

// SetOutputPath fills in a job's output path once it is known, which for
// a freshly created job is only after the store has assigned its ID (the
// path is derived from it).
func (s *JobStore) SetOutputPath(ctx context.Context, id, outputPath string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET output_path = $1 WHERE id = $2`, outputPath, id)
	if err != nil {
		return newStorageErr("set output path", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, jobSelectColumns+` WHERE id = $1`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newStorageErr("get job", err)
	}
	return j, nil
}

// ListActive returns jobs in {Pending, Converting}, ordered by created_at
// ascending, read directly from Postgres (never a stale cache).
func (s *JobStore) ListActive(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, jobSelectColumns+`
		WHERE status IN ($1,$2) ORDER BY created_at ASC
	`, int(StatusPending), int(StatusConverting))
	if err != nil {
		return nil, newStorageErr("list active jobs", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, newStorageErr("scan active job", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// TryStart is the single serialization point (P1): it atomically sets
// status=Converting and started_at=now iff the current status is Pending,
// returning true iff this call claimed the row.
func (s *JobStore) TryStart(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, started_at = $2
		WHERE id = $3 AND status = $4
	`, int(StatusConverting), time.Now().UTC(), id, int(StatusPending))
	if err != nil {
		return false, newStorageErr("try start", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, newStorageErr("try start rows affected", err)
	}
	return n == 1, nil
}

// UpdateProgress performs a partial update; it never changes status.
func (s *JobStore) UpdateProgress(ctx context.Context, id string, progress int, currentSec, speed, eta *float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET progress = $1, current_sec = COALESCE($2, current_sec),
			speed = COALESCE($3, speed), eta_sec = COALESCE($4, eta_sec)
		WHERE id = $5 AND status = $6
	`, progress, currentSec, speed, eta, id, int(StatusConverting))
	if err != nil {
		return newStorageErr("update progress", err)
	}
	return nil
}

// SetTerminal sets a job's terminal status and completed_at. It refuses to
// overwrite an already-terminal row (P2): the UPDATE's WHERE clause only
// matches non-terminal rows, so a second call is a silent no-op.
func (s *JobStore) SetTerminal(ctx context.Context, id string, status Status, errMsg string, outputBytes int64) error {
	if !status.Terminal() {
		return newStorageErr("set terminal", fmt.Errorf("status %s is not terminal", status))
	}
	now := time.Now().UTC()
	progress := 0
	if status == StatusCompleted {
		progress = 100
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, completed_at = $2, error = NULLIF($3,''),
			progress = CASE WHEN $4 THEN $5 ELSE progress END,
			output_bytes = CASE WHEN $6 > 0 THEN $6 ELSE output_bytes END
		WHERE id = $7 AND status NOT IN ($8,$9,$10)
	`, int(status), now, errMsg, status == StatusCompleted, progress, outputBytes,
		id, int(StatusCompleted), int(StatusFailed), int(StatusCancelled))
	if err != nil {
		return newStorageErr("set terminal", err)
	}

	// Verification-after-write: re-read and retry once if the status did not stick.
	j, gerr := s.Get(ctx, id)
	if gerr != nil {
		return newStorageErr("verify set terminal", gerr)
	}
	if j != nil && j.Status != status && !j.Status.Terminal() {
		_, err = s.db.ExecContext(ctx, `
			UPDATE jobs SET status = $1, completed_at = $2, error = NULLIF($3,'')
			WHERE id = $4 AND status NOT IN ($5,$6,$7)
		`, int(status), now, errMsg, id, int(StatusCompleted), int(StatusFailed), int(StatusCancelled))
		if err != nil {
			return newStorageErr("set terminal retry", err)
		}
	}
	return nil
}

// ListTerminalOlderThan returns jobs in status whose completed_at is older
// than cutoff, for the Disk-Space Governor's cleanup categories (converted
// sources, failed-job artifacts).
func (s *JobStore) ListTerminalOlderThan(ctx context.Context, status Status, cutoff time.Duration) ([]Job, error) {
	threshold := time.Now().Add(-cutoff)
	rows, err := s.db.QueryContext(ctx, jobSelectColumns+`
		WHERE status = $1 AND completed_at IS NOT NULL AND completed_at < $2
		ORDER BY completed_at ASC
	`, int(status), threshold)
	if err != nil {
		return nil, newStorageErr("list terminal jobs older than", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, newStorageErr("scan terminal job", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (s *JobStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return newStorageErr("delete job", err)
	}
	return nil
}

// CleanupOlderThan deletes jobs in one of the given statuses whose
// completed_at (or created_at, for jobs never completed) is older than the
// cutoff, returning the number of rows removed.
func (s *JobStore) CleanupOlderThan(ctx context.Context, days int, statuses []Status) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	ints := make([]int, len(statuses))
	for i, st := range statuses {
		ints[i] = int(st)
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE status = ANY($1)
		  AND COALESCE(completed_at, created_at) < $2
	`, pq.Array(ints), cutoff)
	if err != nil {
		return 0, newStorageErr("cleanup older than", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, newStorageErr("cleanup rows affected", err)
	}
	return int(n), nil
}

const jobSelectColumns = `
	SELECT id, name, input_path, output_path, input_bytes, output_bytes,
		preset_name, overrides, status, progress, duration_sec, current_sec,
		speed, eta_sec, COALESCE(error,''), COALESCE(batch_id,''), created_at, started_at, completed_at
	FROM jobs`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var overrides []byte
	var status int
	if err := row.Scan(&j.ID, &j.Name, &j.InputPath, &j.OutputPath, &j.InputBytes, &j.OutputBytes,
		&j.PresetName, &overrides, &status, &j.Progress, &j.DurationSec, &j.CurrentSec,
		&j.Speed, &j.ETASec, &j.Error, &j.BatchID, &j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
		return nil, err
	}
	j.Status = Status(status)
	if len(overrides) > 0 {
		_ = json.Unmarshal(overrides, &j.Overrides)
	}
	return &j, nil
}

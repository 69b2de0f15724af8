package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Batch is the minimal multi-job grouping the spec's batch-upload
// supplementary feature needs: a counter that advances as member jobs
// reach a terminal status, not a full workflow engine.
type Batch struct {
	BatchID        string
	Status         string
	TotalJobs      int
	CompletedJobs  int
	EstimatedBytes int64
	CreatedAt      time.Time
}

func (b Batch) Done() bool { return b.CompletedJobs >= b.TotalJobs }

type BatchStore struct {
	db *sql.DB
}

func NewBatchStore(db *sql.DB) *BatchStore { return &BatchStore{db: db} }

func (s *BatchStore) CreateBatch(ctx context.Context, totalJobs int, estimatedBytes int64) (Batch, error) {
	b := Batch{
		BatchID:        uuid.NewString(),
		Status:         "pending",
		TotalJobs:      totalJobs,
		EstimatedBytes: estimatedBytes,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (batch_id, status, total_jobs, completed_jobs, estimated_bytes, created_at)
		VALUES ($1,$2,$3,0,$4,$5)
	`, b.BatchID, b.Status, b.TotalJobs, b.EstimatedBytes, b.CreatedAt)
	if err != nil {
		return Batch{}, newStorageErr("create batch", err)
	}
	return b, nil
}

func (s *BatchStore) Get(ctx context.Context, batchID string) (*Batch, error) {
	var b Batch
	err := s.db.QueryRowContext(ctx, `
		SELECT batch_id, status, total_jobs, completed_jobs, estimated_bytes, created_at
		FROM batches WHERE batch_id = $1
	`, batchID).Scan(&b.BatchID, &b.Status, &b.TotalJobs, &b.CompletedJobs, &b.EstimatedBytes, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newStorageErr("get batch", err)
	}
	return &b, nil
}

// AdvanceOnJobTerminal increments the batch's completed counter and flips
// its status once every member job has reached a terminal state. Called
// once per job, from the Dispatcher's terminal-transition handler.
func (s *BatchStore) AdvanceOnJobTerminal(ctx context.Context, batchID string) (Batch, error) {
	var b Batch
	err := s.db.QueryRowContext(ctx, `
		UPDATE batches SET completed_jobs = completed_jobs + 1,
			status = CASE WHEN completed_jobs + 1 >= total_jobs THEN 'completed' ELSE 'pending' END
		WHERE batch_id = $1
		RETURNING batch_id, status, total_jobs, completed_jobs, estimated_bytes, created_at
	`, batchID).Scan(&b.BatchID, &b.Status, &b.TotalJobs, &b.CompletedJobs, &b.EstimatedBytes, &b.CreatedAt)
	if err != nil {
		return Batch{}, newStorageErr("advance batch", err)
	}
	return b, nil
}

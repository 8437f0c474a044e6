package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/NimaFathima/astrobiomers/internal/util"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

func (s *PaperDBStorage) CreateJob(ctx context.Context, id string, paperCount int) error {
	_, err := s.conn.Exec(ctx, `
INSERT INTO ingest_jobs (id, status, paper_count)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING`, id, string(store.JobQueued), paperCount)
	if err != nil {
		return fmt.Errorf("%w: failed to create job: %w", store.ErrUnavailable, err)
	}
	return nil
}

func (s *PaperDBStorage) UpdateJobStatus(ctx context.Context, id string, status store.JobStatus) error {
	tag, err := s.conn.Exec(ctx, `UPDATE ingest_jobs SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("%w: failed to update job: %w", store.ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// FinishJob stores the batch summary of a job. A non-nil jobErr marks the
// job failed, otherwise it is completed.
func (s *PaperDBStorage) FinishJob(ctx context.Context, id string, summary common.BatchSummary, jobErr error) error {
	status := store.JobCompleted
	var msg *string
	if jobErr != nil {
		status = store.JobFailed
		m := util.SanitizePostgresText(jobErr.Error())
		msg = &m
	}

	tag, err := s.conn.Exec(ctx, `
UPDATE ingest_jobs
SET status = $2, successful = $3, failed = $4, error = $5, finished_at = now()
WHERE id = $1`, id, string(status), summary.Successful, summary.Failed, msg)
	if err != nil {
		return fmt.Errorf("%w: failed to finish job: %w", store.ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *PaperDBStorage) GetJob(ctx context.Context, id string) (store.IngestJob, error) {
	var (
		job    store.IngestJob
		status string
		msg    *string
	)
	err := s.conn.QueryRow(ctx, `
SELECT id, status, paper_count, successful, failed, error, created_at, finished_at
FROM ingest_jobs WHERE id = $1`, id).Scan(
		&job.ID, &status, &job.PaperCount, &job.Successful, &job.Failed, &msg, &job.CreatedAt, &job.FinishedAt,
	)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return store.IngestJob{}, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.IngestJob{}, fmt.Errorf("%w: failed to get job: %w", store.ErrUnavailable, err)
	}
	job.Status = store.JobStatus(status)
	job.Error = deref(msg)
	return job, nil
}

var _ store.JobStorage = (*PaperDBStorage)(nil)

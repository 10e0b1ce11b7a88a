package scheduler

import (
	"context"
	"errors"
	"fmt"

	"summercamp_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgJobStore keeps ScheduledJob rows in camp_scheduled_jobs.
type PgJobStore struct {
	pool *pgxpool.Pool
}

func NewPgJobStore(pool *pgxpool.Pool) *PgJobStore {
	return &PgJobStore{pool: pool}
}

const jobColumns = `camp_id, job_type, job_name, run_at, COALESCE(target_status, ''), state, attempts,
	COALESCE(last_error, ''), created_at, updated_at`

func scanJob(row pgx.Row) (ScheduledJob, error) {
	var j ScheduledJob
	var jobType, state string
	err := row.Scan(&j.CampID, &jobType, &j.Name, &j.RunAt, &j.TargetStatus, &state, &j.Attempts,
		&j.LastError, &j.CreatedAt, &j.UpdatedAt)
	j.Type = JobType(jobType)
	j.State = JobState(state)
	return j, err
}

func (s *PgJobStore) UpsertPending(ctx context.Context, job ScheduledJob) error {
	query := `INSERT INTO camp_scheduled_jobs (camp_id, job_type, job_name, run_at, target_status, state)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		ON CONFLICT (camp_id, job_type) DO UPDATE SET
			job_name = EXCLUDED.job_name,
			run_at = EXCLUDED.run_at,
			target_status = EXCLUDED.target_status,
			state = EXCLUDED.state,
			attempts = 0,
			last_error = NULL,
			updated_at = now()`

	_, err := s.pool.Exec(ctx, query, job.CampID, string(job.Type), job.Name, job.RunAt,
		job.TargetStatus, string(JobStatePending))
	if err != nil {
		return fmt.Errorf("failed to upsert scheduled job: %w", err)
	}
	return nil
}

func (s *PgJobStore) Get(ctx context.Context, campID int64, jobType JobType) (*ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM camp_scheduled_jobs WHERE camp_id = $1 AND job_type = $2`

	job, err := scanJob(s.pool.QueryRow(ctx, query, campID, string(jobType)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("scheduled job not found")
		}
		return nil, fmt.Errorf("failed to get scheduled job: %w", err)
	}
	return &job, nil
}

func (s *PgJobStore) ListByCamp(ctx context.Context, campID int64) ([]ScheduledJob, error) {
	query := `SELECT ` + jobColumns + ` FROM camp_scheduled_jobs WHERE camp_id = $1 ORDER BY run_at, job_type`

	rows, err := s.pool.Query(ctx, query, campID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]ScheduledJob, 0, len(AllJobTypes))
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PgJobStore) SetState(ctx context.Context, campID int64, jobType JobType, state JobState, lastErr string) error {
	query := `UPDATE camp_scheduled_jobs SET
			state = $3,
			attempts = attempts + CASE WHEN $3 = 'running' THEN 1 ELSE 0 END,
			last_error = NULLIF($4, ''),
			updated_at = now()
		WHERE camp_id = $1 AND job_type = $2`

	if _, err := s.pool.Exec(ctx, query, campID, string(jobType), string(state), lastErr); err != nil {
		return fmt.Errorf("failed to update scheduled job state: %w", err)
	}
	return nil
}

func (s *PgJobStore) CountPending(ctx context.Context, campID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM camp_scheduled_jobs WHERE camp_id = $1 AND state = 'pending'`,
		campID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending jobs: %w", err)
	}
	return count, nil
}

var _ JobStore = (*PgJobStore)(nil)

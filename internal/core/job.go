package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/churchadmin/internal/model"
)

type JobService struct {
	db DB
}

func NewJobService(db DB) *JobService {
	return &JobService{db: db}
}

const jobColumns = `id, kind, status, requested_by, error_message, duration_ms, created_at, started_at, finished_at`

func (s *JobService) Create(ctx context.Context, job *model.BackupJob) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO backup_jobs (id, kind, status, requested_by, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.Kind, job.Status, job.RequestedBy, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert backup job: %w", err)
	}
	return nil
}

// MarkRunning transitions a queued job to running and records started_at.
// The WHERE guard makes the transition atomic; a job already past queued is
// left untouched and an error is returned.
func (s *JobService) MarkRunning(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_jobs SET status = $1, started_at = now() WHERE id = $2 AND status = $3`,
		model.StatusRunning, id, model.StatusQueued,
	)
	if err != nil {
		return fmt.Errorf("mark job %s running: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not queued", id)
	}
	return nil
}

// MarkSuccess finishes a running job. Duration is computed in SQL from
// started_at so that the transition stays a single statement.
func (s *JobService) MarkSuccess(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_jobs
		 SET status = $1, finished_at = now(),
		     duration_ms = (EXTRACT(EPOCH FROM (now() - started_at)) * 1000)::bigint
		 WHERE id = $2 AND status = $3`,
		model.StatusSuccess, id, model.StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("mark job %s success: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not running", id)
	}
	return nil
}

// MarkFailed moves a queued or running job to failed with the given reason.
// Terminal jobs are never mutated.
func (s *JobService) MarkFailed(ctx context.Context, id, message string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_jobs
		 SET status = $1, error_message = $2, finished_at = now(),
		     duration_ms = CASE WHEN started_at IS NULL THEN NULL
		                        ELSE (EXTRACT(EPOCH FROM (now() - started_at)) * 1000)::bigint END
		 WHERE id = $3 AND status IN ($4, $5)`,
		model.StatusFailed, message, id, model.StatusQueued, model.StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("mark job %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is already terminal", id)
	}
	return nil
}

// FailStale forces jobs stuck in running past the threshold to failed. It
// returns the number of jobs reaped.
func (s *JobService) FailStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_jobs
		 SET status = $1, error_message = $2, finished_at = now(),
		     duration_ms = (EXTRACT(EPOCH FROM (now() - started_at)) * 1000)::bigint
		 WHERE status = $3 AND started_at < now() - $4::interval`,
		model.StatusFailed, "stale job: orphaned by interrupted worker", model.StatusRunning,
		fmt.Sprintf("%d milliseconds", olderThan.Milliseconds()),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *JobService) GetByID(ctx context.Context, id string) (*model.BackupJob, error) {
	var j model.BackupJob
	err := s.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM backup_jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.Kind, &j.Status, &j.RequestedBy, &j.ErrorMessage,
		&j.DurationMs, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("get backup job %s: %w", id, err)
	}
	return &j, nil
}

func (s *JobService) List(ctx context.Context, limit int, cursor string) ([]model.BackupJob, bool, error) {
	query := `SELECT ` + jobColumns + ` FROM backup_jobs`
	args := []any{}
	argIdx := 1

	if cursor != "" {
		query += fmt.Sprintf(` WHERE id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list backup jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.BackupJob
	for rows.Next() {
		var j model.BackupJob
		if err := rows.Scan(&j.ID, &j.Kind, &j.Status, &j.RequestedBy, &j.ErrorMessage,
			&j.DurationMs, &j.CreatedAt, &j.StartedAt, &j.FinishedAt); err != nil {
			return nil, false, fmt.Errorf("scan backup job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate backup jobs: %w", err)
	}

	hasMore := len(jobs) > limit
	if hasMore {
		jobs = jobs[:limit]
	}
	return jobs, hasMore, nil
}

// JobStatistics aggregates the job history for the dashboard.
type JobStatistics struct {
	TotalJobs          int64 `json:"total_jobs"`
	SucceededJobs      int64 `json:"succeeded_jobs"`
	FailedJobs         int64 `json:"failed_jobs"`
	ActiveJobs         int64 `json:"active_jobs"`
	TotalArtifactBytes int64 `json:"total_artifact_bytes"`
}

func (s *JobService) Statistics(ctx context.Context) (*JobStatistics, error) {
	var st JobStatistics
	err := s.db.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'success'),
		        count(*) FILTER (WHERE status = 'failed'),
		        count(*) FILTER (WHERE status IN ('queued', 'running')),
		        COALESCE((SELECT sum(size_bytes) FROM backup_artifacts), 0)
		 FROM backup_jobs`,
	).Scan(&st.TotalJobs, &st.SucceededJobs, &st.FailedJobs, &st.ActiveJobs, &st.TotalArtifactBytes)
	if err != nil {
		return nil, fmt.Errorf("backup job statistics: %w", err)
	}
	return &st, nil
}

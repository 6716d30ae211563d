package core

import (
	"context"
	"fmt"
	"time"

	"github.com/edvin/churchadmin/internal/model"
)

type RestoreService struct {
	db DB
}

func NewRestoreService(db DB) *RestoreService {
	return &RestoreService{db: db}
}

const restoreColumns = `id, artifact_id, mode, status, target_path, target_database, error_message, created_at, started_at, finished_at`

func (s *RestoreService) Create(ctx context.Context, r *model.Restore) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO backup_restores (id, artifact_id, mode, status, target_path, target_database, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.ArtifactID, r.Mode, r.Status, r.TargetPath, r.TargetDatabase, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert restore: %w", err)
	}
	return nil
}

func (s *RestoreService) MarkRunning(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_restores SET status = $1, started_at = now() WHERE id = $2 AND status = $3`,
		model.RestoreStatusRunning, id, model.RestoreStatusInitiated,
	)
	if err != nil {
		return fmt.Errorf("mark restore %s running: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("restore %s is not initiated", id)
	}
	return nil
}

func (s *RestoreService) MarkCompleted(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_restores SET status = $1, finished_at = now() WHERE id = $2 AND status = $3`,
		model.RestoreStatusCompleted, id, model.RestoreStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("mark restore %s completed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("restore %s is not running", id)
	}
	return nil
}

func (s *RestoreService) MarkFailed(ctx context.Context, id, message string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_restores SET status = $1, error_message = $2, finished_at = now()
		 WHERE id = $3 AND status IN ($4, $5)`,
		model.RestoreStatusFailed, message, id, model.RestoreStatusInitiated, model.RestoreStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("mark restore %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("restore %s is already terminal", id)
	}
	return nil
}

// FailStale reaps restores stuck in running past the threshold.
func (s *RestoreService) FailStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_restores SET status = $1, error_message = $2, finished_at = now()
		 WHERE status = $3 AND started_at < now() - $4::interval`,
		model.RestoreStatusFailed, "stale restore: orphaned by interrupted worker", model.RestoreStatusRunning,
		fmt.Sprintf("%d milliseconds", olderThan.Milliseconds()),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale restores: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *RestoreService) GetByID(ctx context.Context, id string) (*model.Restore, error) {
	var r model.Restore
	err := s.db.QueryRow(ctx,
		`SELECT `+restoreColumns+` FROM backup_restores WHERE id = $1`, id,
	).Scan(&r.ID, &r.ArtifactID, &r.Mode, &r.Status, &r.TargetPath, &r.TargetDatabase,
		&r.ErrorMessage, &r.CreatedAt, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, fmt.Errorf("get restore %s: %w", id, err)
	}
	return &r, nil
}

package core

import (
	"context"
	"fmt"

	"github.com/edvin/churchadmin/internal/model"
)

type ArtifactService struct {
	db DB
}

func NewArtifactService(db DB) *ArtifactService {
	return &ArtifactService{db: db}
}

const artifactColumns = `id, job_id, artifact_type, path, size_bytes, sha256, manifest_path, created_at`

// Create persists an artifact row. Callers only do this after the underlying
// file is fully written and closed.
func (s *ArtifactService) Create(ctx context.Context, a *model.BackupArtifact) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO backup_artifacts (id, job_id, artifact_type, path, size_bytes, sha256, manifest_path, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.JobID, a.ArtifactType, a.Path, a.SizeBytes, a.SHA256, a.ManifestPath, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert backup artifact: %w", err)
	}
	return nil
}

func (s *ArtifactService) GetByID(ctx context.Context, id string) (*model.BackupArtifact, error) {
	var a model.BackupArtifact
	err := s.db.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM backup_artifacts WHERE id = $1`, id,
	).Scan(&a.ID, &a.JobID, &a.ArtifactType, &a.Path, &a.SizeBytes, &a.SHA256, &a.ManifestPath, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get backup artifact %s: %w", id, err)
	}
	return &a, nil
}

func (s *ArtifactService) ListByJob(ctx context.Context, jobID string) ([]model.BackupArtifact, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+artifactColumns+` FROM backup_artifacts WHERE job_id = $1 ORDER BY created_at`, jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var artifacts []model.BackupArtifact
	for rows.Next() {
		var a model.BackupArtifact
		if err := rows.Scan(&a.ID, &a.JobID, &a.ArtifactType, &a.Path, &a.SizeBytes,
			&a.SHA256, &a.ManifestPath, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup artifacts: %w", err)
	}
	return artifacts, nil
}

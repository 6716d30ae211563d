package core

import (
	"context"
	"fmt"

	"github.com/edvin/churchadmin/internal/model"
)

type SettingsService struct {
	db DB
}

func NewSettingsService(db DB) *SettingsService {
	return &SettingsService{db: db}
}

// Get returns the single settings row (id=1, seeded by migration).
func (s *SettingsService) Get(ctx context.Context) (*model.BackupSettings, error) {
	var st model.BackupSettings
	err := s.db.QueryRow(ctx,
		`SELECT id, notify_email, borg_repo_path, include_files, include_database, compression_level, updated_at
		 FROM backup_settings WHERE id = 1`,
	).Scan(&st.ID, &st.NotifyEmail, &st.BorgRepoPath, &st.IncludeFiles,
		&st.IncludeDatabase, &st.CompressionLevel, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get backup settings: %w", err)
	}
	return &st, nil
}

func (s *SettingsService) Update(ctx context.Context, st *model.BackupSettings) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_settings
		 SET notify_email = $1, borg_repo_path = $2, include_files = $3,
		     include_database = $4, compression_level = $5, updated_at = now()
		 WHERE id = 1`,
		st.NotifyEmail, st.BorgRepoPath, st.IncludeFiles, st.IncludeDatabase, st.CompressionLevel,
	)
	if err != nil {
		return fmt.Errorf("update backup settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backup settings row missing")
	}
	return nil
}

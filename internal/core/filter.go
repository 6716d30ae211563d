package core

import (
	"context"
	"fmt"

	"github.com/edvin/churchadmin/internal/model"
)

type FilterService struct {
	db DB
}

func NewFilterService(db DB) *FilterService {
	return &FilterService{db: db}
}

const filterColumns = `id, pattern, enabled, description, created_at, updated_at`

func (s *FilterService) List(ctx context.Context) ([]model.BackupFilter, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+filterColumns+` FROM backup_filters ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list backup filters: %w", err)
	}
	defer rows.Close()

	var filters []model.BackupFilter
	for rows.Next() {
		var f model.BackupFilter
		if err := rows.Scan(&f.ID, &f.Pattern, &f.Enabled, &f.Description, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan backup filter: %w", err)
		}
		filters = append(filters, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup filters: %w", err)
	}
	return filters, nil
}

// ListEnabledPatterns returns just the patterns of enabled filters, merged by
// the orchestrator into every files backup.
func (s *FilterService) ListEnabledPatterns(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT pattern FROM backup_filters WHERE enabled ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list enabled filter patterns: %w", err)
	}
	defer rows.Close()

	var patterns []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan filter pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filter patterns: %w", err)
	}
	return patterns, nil
}

func (s *FilterService) Update(ctx context.Context, f *model.BackupFilter) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_filters SET pattern = $1, enabled = $2, description = $3, updated_at = now()
		 WHERE id = $4`,
		f.Pattern, f.Enabled, f.Description, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update backup filter %s: %w", f.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backup filter %s not found", f.ID)
	}
	return nil
}

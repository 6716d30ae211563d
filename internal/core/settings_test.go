package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/churchadmin/internal/model"
)

func TestSettingsService_Get(t *testing.T) {
	db := &mockDB{}
	svc := NewSettingsService(db)
	ctx := context.Background()

	now := time.Now()
	email := "ops@example.org"
	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*int)) = 1
		*(dest[1].(**string)) = &email
		*(dest[2].(*string)) = "/var/backups/churchadmin/repo"
		*(dest[3].(*bool)) = true
		*(dest[4].(*bool)) = true
		*(dest[5].(*int)) = 6
		*(dest[6].(*time.Time)) = now
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	st, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ID)
	require.NotNil(t, st.NotifyEmail)
	assert.Equal(t, "ops@example.org", *st.NotifyEmail)
	assert.Equal(t, 6, st.CompressionLevel)
}

func TestSettingsService_Update_MissingRow(t *testing.T) {
	db := &mockDB{}
	svc := NewSettingsService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rowsAffected(0), nil)

	err := svc.Update(ctx, &model.BackupSettings{CompressionLevel: 9})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings row missing")
}

func TestFilterService_ListEnabledPatterns(t *testing.T) {
	db := &mockDB{}
	svc := NewFilterService(db)
	ctx := context.Background()

	scan := func(p string) func(dest ...any) error {
		return func(dest ...any) error {
			*(dest[0].(*string)) = p
			return nil
		}
	}
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(scan("*.cache"), scan("tmp/*")), nil)

	patterns, err := svc.ListEnabledPatterns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"*.cache", "tmp/*"}, patterns)
}

func TestFilterService_Update_NotFound(t *testing.T) {
	db := &mockDB{}
	svc := NewFilterService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rowsAffected(0), nil)

	err := svc.Update(ctx, &model.BackupFilter{ID: "missing", Pattern: "*.tmp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

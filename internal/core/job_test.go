package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/churchadmin/internal/model"
)

func TestJobService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	job := &model.BackupJob{
		ID:          "job-1",
		Kind:        model.KindFiles,
		Status:      model.StatusQueued,
		RequestedBy: "admin@example.org",
		CreatedAt:   time.Now(),
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rowsAffected(1), nil)

	require.NoError(t, svc.Create(ctx, job))
	db.AssertExpectations(t)
}

func TestJobService_Create_InsertError(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rowsAffected(0), errors.New("db down"))

	err := svc.Create(ctx, &model.BackupJob{ID: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert backup job")
}

func TestJobService_MarkRunning_GuardsOnQueued(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rowsAffected(0), nil)

	err := svc.MarkRunning(ctx, "job-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not queued")
}

func TestJobService_MarkSuccess(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rowsAffected(1), nil)

	require.NoError(t, svc.MarkSuccess(ctx, "job-1"))
	db.AssertExpectations(t)
}

func TestJobService_MarkFailed_TerminalJobRejected(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rowsAffected(0), nil)

	err := svc.MarkFailed(ctx, "job-1", "tar exploded")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already terminal")
}

func TestJobService_FailStale(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rowsAffected(1), nil)

	n, err := svc.FailStale(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestJobService_GetByID(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond)
	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = "job-1"
		*(dest[1].(*string)) = model.KindBoth
		*(dest[2].(*string)) = model.StatusSuccess
		*(dest[3].(*string)) = "admin@example.org"
		*(dest[4].(**string)) = nil
		dur := int64(1500)
		*(dest[5].(**int64)) = &dur
		*(dest[6].(*time.Time)) = now
		*(dest[7].(**time.Time)) = &now
		*(dest[8].(**time.Time)) = &now
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	job, err := svc.GetByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.KindBoth, job.Kind)
	assert.Equal(t, model.StatusSuccess, job.Status)
	require.NotNil(t, job.DurationMs)
	assert.Equal(t, int64(1500), *job.DurationMs)
}

func TestJobService_List_Pagination(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	now := time.Now()
	scan := func(id string) func(dest ...any) error {
		return func(dest ...any) error {
			*(dest[0].(*string)) = id
			*(dest[1].(*string)) = model.KindFiles
			*(dest[2].(*string)) = model.StatusQueued
			*(dest[3].(*string)) = "admin@example.org"
			*(dest[4].(**string)) = nil
			*(dest[5].(**int64)) = nil
			*(dest[6].(*time.Time)) = now
			*(dest[7].(**time.Time)) = nil
			*(dest[8].(**time.Time)) = nil
			return nil
		}
	}
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(scan("a"), scan("b"), scan("c")), nil)

	jobs, hasMore, err := svc.List(ctx, 2, "")
	require.NoError(t, err)
	assert.True(t, hasMore)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)
}

func TestJobService_Statistics(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*int64)) = 10
		*(dest[1].(*int64)) = 7
		*(dest[2].(*int64)) = 2
		*(dest[3].(*int64)) = 1
		*(dest[4].(*int64)) = 4096
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	st, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), st.TotalJobs)
	assert.Equal(t, int64(4096), st.TotalArtifactBytes)
}

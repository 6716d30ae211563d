package backup

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/edvin/churchadmin/internal/model"
	"github.com/edvin/churchadmin/internal/notify"
)

// In-memory stores mirroring the SQL stores' transition guards, so the
// orchestrators can be exercised without a database.

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*model.BackupJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[string]*model.BackupJob{}}
}

func (s *fakeJobStore) Create(_ context.Context, job *model.BackupJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	cp.CreatedAt = time.Now()
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeJobStore) MarkRunning(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != model.StatusQueued {
		return fmt.Errorf("job %s not queued", id)
	}
	job.Status = model.StatusRunning
	now := time.Now()
	job.StartedAt = &now
	return nil
}

func (s *fakeJobStore) MarkSuccess(_ context.Context, id string) error {
	return s.finish(id, model.StatusSuccess, nil)
}

func (s *fakeJobStore) MarkFailed(_ context.Context, id, message string) error {
	return s.finish(id, model.StatusFailed, &message)
}

func (s *fakeJobStore) finish(id, status string, message *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || model.Terminal(job.Status) {
		return fmt.Errorf("job %s not active", id)
	}
	job.Status = status
	job.ErrorMessage = message
	now := time.Now()
	job.FinishedAt = &now
	return nil
}

func (s *fakeJobStore) GetByID(_ context.Context, id string) (*model.BackupJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	cp := *job
	return &cp, nil
}

type fakeArtifactStore struct {
	mu        sync.Mutex
	artifacts []model.BackupArtifact
}

func (s *fakeArtifactStore) Create(_ context.Context, a *model.BackupArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.CreatedAt = time.Now()
	s.artifacts = append(s.artifacts, cp)
	return nil
}

func (s *fakeArtifactStore) GetByID(_ context.Context, id string) (*model.BackupArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.artifacts {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("artifact %s not found", id)
}

func (s *fakeArtifactStore) ListByJob(_ context.Context, jobID string) ([]model.BackupArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BackupArtifact
	for _, a := range s.artifacts {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeArtifactStore) add(a model.BackupArtifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = append(s.artifacts, a)
}

type fakeSettingsStore struct {
	settings model.BackupSettings
}

func (s *fakeSettingsStore) Get(context.Context) (*model.BackupSettings, error) {
	cp := s.settings
	return &cp, nil
}

type fakeFilterStore struct {
	patterns []string
}

func (s *fakeFilterStore) ListEnabledPatterns(context.Context) ([]string, error) {
	return s.patterns, nil
}

type fakeRestoreStore struct {
	mu       sync.Mutex
	restores map[string]*model.Restore
}

func newFakeRestoreStore() *fakeRestoreStore {
	return &fakeRestoreStore{restores: map[string]*model.Restore{}}
}

func (s *fakeRestoreStore) Create(_ context.Context, r *model.Restore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.restores[r.ID] = &cp
	return nil
}

func (s *fakeRestoreStore) MarkRunning(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restores[id]
	if !ok || r.Status != model.RestoreStatusInitiated {
		return fmt.Errorf("restore %s not initiated", id)
	}
	r.Status = model.RestoreStatusRunning
	return nil
}

func (s *fakeRestoreStore) MarkCompleted(_ context.Context, id string) error {
	return s.finish(id, model.RestoreStatusCompleted, nil)
}

func (s *fakeRestoreStore) MarkFailed(_ context.Context, id, message string) error {
	return s.finish(id, model.RestoreStatusFailed, &message)
}

func (s *fakeRestoreStore) finish(id, status string, message *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restores[id]
	if !ok {
		return fmt.Errorf("restore %s not found", id)
	}
	r.Status = status
	r.ErrorMessage = message
	return nil
}

func (s *fakeRestoreStore) GetByID(_ context.Context, id string) (*model.Restore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restores[id]
	if !ok {
		return nil, fmt.Errorf("restore %s not found", id)
	}
	cp := *r
	return &cp, nil
}

// fakeArchiver writes a predictable payload instead of invoking tar.
type fakeArchiver struct {
	mu           sync.Mutex
	archiveCalls int
	extractCalls int
	lastExcludes []string
	lastTarget   string
	archiveErr   error
	extractErr   error
	blockOn      chan struct{}
}

func (f *fakeArchiver) Archive(_ context.Context, _, destPath string, excludes []string) (int64, error) {
	f.mu.Lock()
	f.archiveCalls++
	f.lastExcludes = excludes
	block := f.blockOn
	err := f.archiveErr
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return 0, err
	}
	payload := []byte("archive-bytes")
	if err := os.WriteFile(destPath, payload, 0o644); err != nil {
		return 0, err
	}
	return int64(len(payload)), nil
}

func (f *fakeArchiver) Extract(_ context.Context, _, targetDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractCalls++
	f.lastTarget = targetDir
	return f.extractErr
}

func (f *fakeArchiver) stats() (archives, extracts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.archiveCalls, f.extractCalls
}

// fakeDumper simulates mysqldump/mysql without processes.
type fakeDumper struct {
	mu          sync.Mutex
	dumpErr     error
	restoreErr  error
	existing    map[string]bool
	created     []string
	dropped     []string
	restoredTo  []string
	dumpedLevel int
}

func (f *fakeDumper) Dump(_ context.Context, _ ConnectionInfo, destPath string, level int) (int64, error) {
	f.mu.Lock()
	f.dumpedLevel = level
	err := f.dumpErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	payload := []byte("dump-bytes")
	if err := os.WriteFile(destPath, payload, 0o644); err != nil {
		return 0, err
	}
	return int64(len(payload)), nil
}

func (f *fakeDumper) Restore(_ context.Context, _ ConnectionInfo, _, targetDB string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restoreErr != nil {
		return f.restoreErr
	}
	f.restoredTo = append(f.restoredTo, targetDB)
	return nil
}

func (f *fakeDumper) CreateDatabase(_ context.Context, _ ConnectionInfo, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existing[name] {
		return &TargetConflictError{Target: name}
	}
	f.created = append(f.created, name)
	return nil
}

func (f *fakeDumper) DropDatabase(_ context.Context, _ ConnectionInfo, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, name)
	return nil
}

func (f *fakeDumper) DatabaseExists(_ context.Context, _ ConnectionInfo, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[name], nil
}

type fakeSnapshotter struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (f *fakeSnapshotter) Run(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return f.err
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	emails []string
}

func (f *fakeNotifier) Notify(_ context.Context, email string, ev notify.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, email)
	f.events = append(f.events, ev)
	return nil
}

type fakeUploader struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.paths = append(f.paths, localPath)
	return nil
}

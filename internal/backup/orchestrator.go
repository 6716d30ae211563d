package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/churchadmin/internal/metrics"
	"github.com/edvin/churchadmin/internal/model"
	"github.com/edvin/churchadmin/internal/notify"
	"github.com/edvin/churchadmin/internal/platform"
)

// JobStore persists backup job lifecycle rows.
type JobStore interface {
	Create(ctx context.Context, job *model.BackupJob) error
	MarkRunning(ctx context.Context, id string) error
	MarkSuccess(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, message string) error
	GetByID(ctx context.Context, id string) (*model.BackupJob, error)
}

// ArtifactStore persists produced artifacts.
type ArtifactStore interface {
	Create(ctx context.Context, a *model.BackupArtifact) error
	GetByID(ctx context.Context, id string) (*model.BackupArtifact, error)
	ListByJob(ctx context.Context, jobID string) ([]model.BackupArtifact, error)
}

// SettingsStore reads operator backup settings.
type SettingsStore interface {
	Get(ctx context.Context) (*model.BackupSettings, error)
}

// FilterStore reads persisted exclude patterns.
type FilterStore interface {
	ListEnabledPatterns(ctx context.Context) ([]string, error)
}

// Archiver produces and unpacks files archives.
type Archiver interface {
	Archive(ctx context.Context, sourceRoot, destPath string, excludes []string) (int64, error)
	Extract(ctx context.Context, archivePath, targetDir string) error
}

// Dumper produces and loads database dumps.
type Dumper interface {
	Dump(ctx context.Context, conn ConnectionInfo, destPath string, compressionLevel int) (int64, error)
	Restore(ctx context.Context, conn ConnectionInfo, dumpPath, targetDB string) error
	CreateDatabase(ctx context.Context, conn ConnectionInfo, name string) error
	DropDatabase(ctx context.Context, conn ConnectionInfo, name string) error
	DatabaseExists(ctx context.Context, conn ConnectionInfo, name string) (bool, error)
}

// Snapshotter runs a deduplicated snapshot cycle.
type Snapshotter interface {
	Run(ctx context.Context) error
}

// OffsiteUploader replicates an artifact file to remote storage.
type OffsiteUploader interface {
	Upload(ctx context.Context, localPath string) error
}

// OrchestratorOptions wires the orchestrator's collaborators.
type OrchestratorOptions struct {
	Jobs      JobStore
	Artifacts ArtifactStore
	Settings  SettingsStore
	Filters   FilterStore

	Archiver    Archiver
	Dumper      Dumper
	Snapshotter Snapshotter

	Scheduler *Scheduler
	Notifier  notify.Notifier
	Uploader  OffsiteUploader // optional

	BackupRoot string
	SourceRoot string
	MySQL      ConnectionInfo
}

// Orchestrator accepts backup requests, queues them, and drives each job
// through archive/dump, checksum, manifest and artifact registration.
type Orchestrator struct {
	logger zerolog.Logger
	opts   OrchestratorOptions
}

func NewOrchestrator(logger zerolog.Logger, opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		logger: logger.With().Str("component", "backup-orchestrator").Logger(),
		opts:   opts,
	}
}

func classesFor(kind string) []string {
	switch kind {
	case model.KindFiles:
		return []string{ClassFiles}
	case model.KindDatabase:
		return []string{ClassDatabase}
	case model.KindBoth:
		return []string{ClassFiles, ClassDatabase}
	case model.KindBorg:
		return []string{ClassBorg}
	}
	return nil
}

// Submit records a queued job and hands it to the scheduler. When the queue
// is full the job row is immediately marked failed and ErrQueueFull is
// returned, so nothing is ever dropped without a trace. The returned job
// reflects the row as created, i.e. status queued.
func (o *Orchestrator) Submit(ctx context.Context, kind, requestedBy string, extraExcludes []string) (*model.BackupJob, error) {
	if !model.ValidKind(kind) {
		return nil, fmt.Errorf("invalid backup kind %q", kind)
	}

	job := &model.BackupJob{
		ID:          platform.NewID(),
		Kind:        kind,
		Status:      model.StatusQueued,
		RequestedBy: requestedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.opts.Jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	task := Task{
		JobID:   job.ID,
		Classes: classesFor(kind),
		Run: func(runCtx context.Context) {
			o.run(runCtx, job.ID, kind, extraExcludes)
		},
	}
	if err := o.opts.Scheduler.Enqueue(task); err != nil {
		metrics.QueueRejections.Inc()
		if markErr := o.opts.Jobs.MarkFailed(ctx, job.ID, "backup queue full"); markErr != nil {
			o.logger.Error().Err(markErr).Str("job_id", job.ID).Msg("mark rejected job failed")
		}
		return nil, err
	}

	o.logger.Info().Str("job_id", job.ID).Str("kind", kind).Msg("backup job queued")
	return job, nil
}

// run executes one job. It is invoked by the scheduler after every resource
// class the job needs has been acquired, so the queued->running transition
// happens only when the job can actually proceed.
func (o *Orchestrator) run(ctx context.Context, jobID, kind string, extraExcludes []string) {
	logger := o.logger.With().Str("job_id", jobID).Str("kind", kind).Logger()

	if err := o.opts.Jobs.MarkRunning(ctx, jobID); err != nil {
		// The reaper may have failed the row while it sat in the queue.
		logger.Warn().Err(err).Msg("job no longer runnable")
		return
	}

	start := time.Now()
	if err := o.execute(ctx, logger, jobID, kind, extraExcludes); err != nil {
		logger.Error().Err(err).Msg("backup job failed")
		if markErr := o.opts.Jobs.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			logger.Error().Err(markErr).Msg("mark job failed")
		}
		metrics.JobsTotal.WithLabelValues(kind, model.StatusFailed).Inc()
		o.notifyResult(ctx, jobID, kind, model.StatusFailed, err.Error())
		return
	}

	if err := o.opts.Jobs.MarkSuccess(ctx, jobID); err != nil {
		logger.Error().Err(err).Msg("mark job success")
		return
	}
	metrics.JobsTotal.WithLabelValues(kind, model.StatusSuccess).Inc()
	metrics.JobDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	logger.Info().Dur("elapsed", time.Since(start)).Msg("backup job succeeded")

	o.replicateOffsite(ctx, logger, jobID)
	o.notifyResult(ctx, jobID, kind, model.StatusSuccess, "")
}

func (o *Orchestrator) execute(ctx context.Context, logger zerolog.Logger, jobID, kind string, extraExcludes []string) error {
	if kind == model.KindBorg {
		return o.opts.Snapshotter.Run(ctx)
	}

	jobDir := filepath.Join(o.opts.BackupRoot, jobID)
	if err := os.MkdirAll(jobDir, 0o750); err != nil {
		return fmt.Errorf("create job directory %s: %w", jobDir, err)
	}

	settings, err := o.opts.Settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load backup settings: %w", err)
	}

	includeFiles := model.KindIncludesFiles(kind)
	includeDatabase := model.KindIncludesDatabase(kind)
	// A "both" job honors the operator toggles; explicit single-kind jobs
	// always run what was asked.
	if kind == model.KindBoth {
		includeFiles = includeFiles && settings.IncludeFiles
		includeDatabase = includeDatabase && settings.IncludeDatabase
	}

	stamp := time.Now().UTC().Format("20060102-150405")

	if includeFiles {
		if err := o.runFilesBackup(ctx, jobID, jobDir, stamp, extraExcludes); err != nil {
			return err
		}
	}
	if includeDatabase {
		if err := o.runDatabaseBackup(ctx, jobID, jobDir, stamp, settings.CompressionLevel); err != nil {
			return err
		}
	}
	if !includeFiles && !includeDatabase {
		logger.Warn().Msg("settings disabled every part of this job")
	}
	return nil
}

func (o *Orchestrator) runFilesBackup(ctx context.Context, jobID, jobDir, stamp string, extraExcludes []string) error {
	patterns, err := o.opts.Filters.ListEnabledPatterns(ctx)
	if err != nil {
		return fmt.Errorf("load backup filters: %w", err)
	}
	excludes := make([]string, 0, len(DefaultExcludes)+len(patterns)+len(extraExcludes))
	excludes = append(excludes, DefaultExcludes...)
	excludes = append(excludes, patterns...)
	excludes = append(excludes, extraExcludes...)

	archivePath := filepath.Join(jobDir, fmt.Sprintf("files-%s.tar.gz", stamp))
	size, err := o.opts.Archiver.Archive(ctx, o.opts.SourceRoot, archivePath, excludes)
	if err != nil {
		return err
	}

	return o.registerArtifact(ctx, jobID, model.ArtifactTypeFiles, archivePath, size, artifactMeta{
		source:  o.opts.SourceRoot,
		filters: excludes,
		stamp:   stamp,
	})
}

func (o *Orchestrator) runDatabaseBackup(ctx context.Context, jobID, jobDir, stamp string, compressionLevel int) error {
	dumpPath := filepath.Join(jobDir, fmt.Sprintf("db-%s.sql.gz", stamp))
	size, err := o.opts.Dumper.Dump(ctx, o.opts.MySQL, dumpPath, compressionLevel)
	if err != nil {
		return err
	}

	return o.registerArtifact(ctx, jobID, model.ArtifactTypeDatabase, dumpPath, size, artifactMeta{
		database: o.opts.MySQL.Database,
		stamp:    stamp,
	})
}

type artifactMeta struct {
	source   string
	database string
	filters  []string
	stamp    string
}

// registerArtifact checksums the file, writes the manifest sidecar and
// persists the artifact row. Manifest before row: a row must never point at
// a manifest that does not exist.
func (o *Orchestrator) registerArtifact(ctx context.Context, jobID, artifactType, path string, size int64, meta artifactMeta) error {
	sum, err := FileSHA256(path)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	manifestPath := path + ".manifest.json"
	m := Manifest{
		JobID:     jobID,
		Type:      artifactType,
		Timestamp: meta.stamp,
		Source:    meta.source,
		Database:  meta.database,
		Archive:   filepath.Base(path),
		Size:      size,
		SHA256:    sum,
		Filters:   meta.filters,
		Created:   now,
	}
	if err := WriteManifest(manifestPath, m); err != nil {
		return err
	}

	artifact := &model.BackupArtifact{
		ID:           platform.NewID(),
		JobID:        jobID,
		ArtifactType: artifactType,
		Path:         path,
		SizeBytes:    size,
		SHA256:       sum,
		ManifestPath: manifestPath,
		CreatedAt:    now,
	}
	if err := o.opts.Artifacts.Create(ctx, artifact); err != nil {
		return &StoreUnavailableError{Op: "register artifact " + path, Err: err}
	}

	o.logger.Info().
		Str("job_id", jobID).
		Str("type", artifactType).
		Str("path", path).
		Int64("bytes", size).
		Str("sha256", sum).
		Msg("artifact registered")
	return nil
}

// replicateOffsite uploads the job's artifacts when an uploader is wired.
// Failures are recorded but never change the job's outcome.
func (o *Orchestrator) replicateOffsite(ctx context.Context, logger zerolog.Logger, jobID string) {
	if o.opts.Uploader == nil {
		return
	}
	artifacts, err := o.opts.Artifacts.ListByJob(ctx, jobID)
	if err != nil {
		logger.Warn().Err(err).Msg("list artifacts for offsite replication")
		return
	}
	for _, a := range artifacts {
		for _, path := range []string{a.Path, a.ManifestPath} {
			if err := o.opts.Uploader.Upload(ctx, path); err != nil {
				metrics.OffsiteUploads.WithLabelValues("failure").Inc()
				logger.Warn().Err(err).Str("path", path).Msg("offsite upload failed")
				continue
			}
			metrics.OffsiteUploads.WithLabelValues("success").Inc()
		}
	}
}

func (o *Orchestrator) notifyResult(ctx context.Context, jobID, kind, status, message string) {
	if o.opts.Notifier == nil {
		return
	}
	settings, err := o.opts.Settings.Get(ctx)
	if err != nil || settings.NotifyEmail == nil || *settings.NotifyEmail == "" {
		return
	}
	ev := notify.Event{JobID: jobID, Kind: kind, Status: status, Message: message}
	if err := o.opts.Notifier.Notify(ctx, *settings.NotifyEmail, ev); err != nil {
		o.logger.Warn().Err(err).Str("job_id", jobID).Msg("notification failed")
	}
}

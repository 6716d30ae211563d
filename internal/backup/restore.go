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
	"github.com/edvin/churchadmin/internal/platform"
)

// RestoreStore persists restore lifecycle rows.
type RestoreStore interface {
	Create(ctx context.Context, r *model.Restore) error
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, message string) error
	GetByID(ctx context.Context, id string) (*model.Restore, error)
}

// RestoreOrchestratorOptions wires the restore orchestrator's collaborators.
type RestoreOrchestratorOptions struct {
	Restores  RestoreStore
	Artifacts ArtifactStore

	Archiver Archiver
	Dumper   Dumper

	Scheduler *Scheduler

	// SourceRoot is overwritten by files restores in overwrite mode;
	// sandbox restores land in a sibling directory next to it.
	SourceRoot string
	MySQL      ConnectionInfo
}

// RestoreOrchestrator accepts restore requests against recorded artifacts.
// Targets are decided at submission time so the response can tell the caller
// where the restored data will appear.
type RestoreOrchestrator struct {
	logger zerolog.Logger
	opts   RestoreOrchestratorOptions
}

func NewRestoreOrchestrator(logger zerolog.Logger, opts RestoreOrchestratorOptions) *RestoreOrchestrator {
	return &RestoreOrchestrator{
		logger: logger.With().Str("component", "restore-orchestrator").Logger(),
		opts:   opts,
	}
}

// sandboxTargets derives the fresh target for a sandbox restore. Files land
// beside the production tree; databases get a suffixed sibling schema.
func (o *RestoreOrchestrator) sandboxTargets(artifactType string) (targetPath, targetDB string) {
	stamp := time.Now().UTC().Format("20060102-150405")
	switch artifactType {
	case model.ArtifactTypeFiles:
		dir := filepath.Dir(o.opts.SourceRoot)
		base := filepath.Base(o.opts.SourceRoot)
		return filepath.Join(dir, fmt.Sprintf("%s.restore-%s-%s", base, stamp, platform.NewName(""))), ""
	case model.ArtifactTypeDatabase:
		return "", fmt.Sprintf("%s_restore_%s", o.opts.MySQL.Database, platform.NewName(""))
	}
	return "", ""
}

// Submit records an initiated restore and queues it. The returned row
// already carries the precomputed target so callers know where to look.
func (o *RestoreOrchestrator) Submit(ctx context.Context, artifactID, mode string) (*model.Restore, error) {
	if mode != model.RestoreModeSandbox && mode != model.RestoreModeOverwrite {
		return nil, fmt.Errorf("invalid restore mode %q", mode)
	}

	artifact, err := o.opts.Artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return nil, err
	}

	restore := &model.Restore{
		ID:         platform.NewID(),
		ArtifactID: artifact.ID,
		Mode:       mode,
		Status:     model.RestoreStatusInitiated,
		CreatedAt:  time.Now().UTC(),
	}

	switch {
	case mode == model.RestoreModeSandbox:
		targetPath, targetDB := o.sandboxTargets(artifact.ArtifactType)
		if targetPath != "" {
			restore.TargetPath = &targetPath
		}
		if targetDB != "" {
			restore.TargetDatabase = &targetDB
		}
	case artifact.ArtifactType == model.ArtifactTypeFiles:
		restore.TargetPath = &o.opts.SourceRoot
	default:
		db := o.opts.MySQL.Database
		restore.TargetDatabase = &db
	}

	if err := o.opts.Restores.Create(ctx, restore); err != nil {
		return nil, err
	}

	task := Task{
		JobID:   restore.ID,
		Classes: []string{classForArtifact(artifact.ArtifactType)},
		Run: func(runCtx context.Context) {
			o.run(runCtx, restore, artifact)
		},
	}
	if err := o.opts.Scheduler.Enqueue(task); err != nil {
		metrics.QueueRejections.Inc()
		if markErr := o.opts.Restores.MarkFailed(ctx, restore.ID, "backup queue full"); markErr != nil {
			o.logger.Error().Err(markErr).Str("restore_id", restore.ID).Msg("mark rejected restore failed")
		}
		return nil, err
	}

	o.logger.Info().
		Str("restore_id", restore.ID).
		Str("artifact_id", artifact.ID).
		Str("mode", mode).
		Msg("restore queued")
	return restore, nil
}

func classForArtifact(artifactType string) string {
	if artifactType == model.ArtifactTypeDatabase {
		return ClassDatabase
	}
	return ClassFiles
}

func (o *RestoreOrchestrator) run(ctx context.Context, restore *model.Restore, artifact *model.BackupArtifact) {
	logger := o.logger.With().Str("restore_id", restore.ID).Str("artifact_id", artifact.ID).Logger()

	if err := o.opts.Restores.MarkRunning(ctx, restore.ID); err != nil {
		logger.Warn().Err(err).Msg("restore no longer runnable")
		return
	}

	if err := o.execute(ctx, restore, artifact); err != nil {
		logger.Error().Err(err).Msg("restore failed")
		if markErr := o.opts.Restores.MarkFailed(ctx, restore.ID, err.Error()); markErr != nil {
			logger.Error().Err(markErr).Msg("mark restore failed")
		}
		metrics.RestoresTotal.WithLabelValues(restore.Mode, model.RestoreStatusFailed).Inc()
		return
	}

	if err := o.opts.Restores.MarkCompleted(ctx, restore.ID); err != nil {
		logger.Error().Err(err).Msg("mark restore completed")
		return
	}
	metrics.RestoresTotal.WithLabelValues(restore.Mode, model.RestoreStatusCompleted).Inc()
	logger.Info().Msg("restore completed")
}

// execute verifies the artifact then materializes it at the target. The
// checksum gate runs before anything is touched: a corrupted archive must
// never make it halfway into a target.
func (o *RestoreOrchestrator) execute(ctx context.Context, restore *model.Restore, artifact *model.BackupArtifact) error {
	if err := VerifySHA256(artifact.Path, artifact.SHA256); err != nil {
		return err
	}

	switch artifact.ArtifactType {
	case model.ArtifactTypeFiles:
		return o.restoreFiles(ctx, restore, artifact)
	case model.ArtifactTypeDatabase:
		return o.restoreDatabase(ctx, restore, artifact)
	}
	return fmt.Errorf("unknown artifact type %q", artifact.ArtifactType)
}

func (o *RestoreOrchestrator) restoreFiles(ctx context.Context, restore *model.Restore, artifact *model.BackupArtifact) error {
	if restore.TargetPath == nil {
		return fmt.Errorf("files restore %s has no target path", restore.ID)
	}
	target := *restore.TargetPath

	if restore.Mode == model.RestoreModeSandbox {
		if _, err := os.Stat(target); err == nil {
			return &TargetConflictError{Target: target}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("stat restore target %s: %w", target, err)
		}
		if err := os.MkdirAll(target, 0o750); err != nil {
			return fmt.Errorf("create restore target %s: %w", target, err)
		}
	} else {
		if err := os.MkdirAll(target, 0o750); err != nil {
			return fmt.Errorf("ensure restore target %s: %w", target, err)
		}
	}

	return o.opts.Archiver.Extract(ctx, artifact.Path, target)
}

func (o *RestoreOrchestrator) restoreDatabase(ctx context.Context, restore *model.Restore, artifact *model.BackupArtifact) error {
	if restore.TargetDatabase == nil {
		return fmt.Errorf("database restore %s has no target database", restore.ID)
	}
	target := *restore.TargetDatabase

	if restore.Mode == model.RestoreModeSandbox {
		exists, err := o.opts.Dumper.DatabaseExists(ctx, o.opts.MySQL, target)
		if err != nil {
			return err
		}
		if exists {
			return &TargetConflictError{Target: target}
		}
		if err := o.opts.Dumper.CreateDatabase(ctx, o.opts.MySQL, target); err != nil {
			return err
		}
		if err := o.opts.Dumper.Restore(ctx, o.opts.MySQL, artifact.Path, target); err != nil {
			// Drop the half-loaded sandbox so a retry starts clean.
			if dropErr := o.opts.Dumper.DropDatabase(ctx, o.opts.MySQL, target); dropErr != nil {
				o.logger.Warn().Err(dropErr).Str("database", target).Msg("drop failed sandbox database")
			}
			return err
		}
		return nil
	}

	// Overwrite mode loads straight into the live schema; the dump carries
	// DROP TABLE statements so stale tables are replaced.
	return o.opts.Dumper.Restore(ctx, o.opts.MySQL, artifact.Path, target)
}

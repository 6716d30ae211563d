package backup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// DefaultExcludes are always applied to files backups and cannot be
// overridden. They guard against archiving ephemeral or huge directories.
var DefaultExcludes = []string{
	".git",
	"node_modules",
	"logs/*",
	"*.log",
	"uploads/temp/*",
}

// ArchiveRunner wraps the external tar tool for creating and extracting
// gzip-compressed archives of a directory tree.
type ArchiveRunner struct {
	logger  zerolog.Logger
	tarBin  string
	timeout time.Duration
}

func NewArchiveRunner(logger zerolog.Logger, tarBin string, timeout time.Duration) *ArchiveRunner {
	return &ArchiveRunner{
		logger:  logger.With().Str("component", "archive-runner").Logger(),
		tarBin:  tarBin,
		timeout: timeout,
	}
}

// Archive streams a tar.gz of sourceRoot to destPath, honoring the exclude
// patterns. On failure a partially written destPath is left in place for
// inspection but must not be registered as an artifact by the caller.
func (r *ArchiveRunner) Archive(ctx context.Context, sourceRoot, destPath string, excludes []string) (int64, error) {
	info, err := os.Stat(sourceRoot)
	if err != nil {
		return 0, &SpawnError{Tool: "tar", Err: fmt.Errorf("source root %s: %w", sourceRoot, err)}
	}
	if !info.IsDir() {
		return 0, &SpawnError{Tool: "tar", Err: fmt.Errorf("source root %s is not a directory", sourceRoot)}
	}

	args := []string{"czf", destPath, "-C", sourceRoot}
	for _, pattern := range excludes {
		args = append(args, "--exclude", pattern)
	}
	args = append(args, ".")

	r.logger.Info().Str("source", sourceRoot).Str("dest", destPath).Msg("archiving files")

	err = runPipeline(ctx, r.timeout, nil, Stage{Name: "tar", Path: r.tarBin, Args: args})
	if err != nil {
		return 0, err
	}

	stat, err := os.Stat(destPath)
	if err != nil {
		return 0, fmt.Errorf("stat archive %s: %w", destPath, err)
	}
	return stat.Size(), nil
}

// Extract unpacks a tar.gz archive into targetDir, which must already exist.
func (r *ArchiveRunner) Extract(ctx context.Context, archivePath, targetDir string) error {
	r.logger.Info().Str("archive", archivePath).Str("target", targetDir).Msg("extracting files")

	return runPipeline(ctx, r.timeout, nil, Stage{
		Name: "tar",
		Path: r.tarBin,
		Args: []string{"xzf", archivePath, "-C", targetDir},
	})
}

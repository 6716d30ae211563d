package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// BorgArchive is one entry from "borg list --json".
type BorgArchive struct {
	Name    string    `json:"name"`
	Archive string    `json:"archive"`
	Start   time.Time `json:"start"`
	Time    time.Time `json:"time"`
}

// BorgRepoInfo is the subset of "borg info --json" the API exposes.
type BorgRepoInfo struct {
	Repository struct {
		ID       string    `json:"id"`
		Location string    `json:"location"`
		LastMod  time.Time `json:"last_modified"`
	} `json:"repository"`
	Cache struct {
		Stats struct {
			TotalSize       int64 `json:"total_size"`
			TotalCSize      int64 `json:"total_csize"`
			UniqueCSize     int64 `json:"unique_csize"`
			TotalUniqueSize int64 `json:"total_unique_chunks"`
		} `json:"stats"`
	} `json:"cache"`
}

// BorgRunner drives the site-provided borg wrapper script for deduplicated
// offsite snapshots and queries the repository with the borg client itself.
type BorgRunner struct {
	logger     zerolog.Logger
	borgBin    string
	scriptPath string
	repoPath   string
	timeout    time.Duration
}

func NewBorgRunner(logger zerolog.Logger, borgBin, scriptPath, repoPath string, timeout time.Duration) *BorgRunner {
	return &BorgRunner{
		logger:     logger.With().Str("component", "borg-runner").Logger(),
		borgBin:    borgBin,
		scriptPath: scriptPath,
		repoPath:   repoPath,
		timeout:    timeout,
	}
}

// Run executes the wrapper script, which creates and prunes snapshots on its
// own schedule of retention flags.
func (r *BorgRunner) Run(ctx context.Context) error {
	r.logger.Info().Str("script", r.scriptPath).Msg("running borg snapshot")

	return runPipeline(ctx, r.timeout, nil, Stage{Name: "borg", Path: r.scriptPath})
}

// List returns the archives in the repository.
func (r *BorgRunner) List(ctx context.Context) ([]BorgArchive, error) {
	var out bytes.Buffer
	err := runPipeline(ctx, r.timeout, &out, Stage{
		Name: "borg",
		Path: r.borgBin,
		Args: []string{"list", "--json", r.repoPath},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Archives []BorgArchive `json:"archives"`
	}
	if err := json.Unmarshal(out.Bytes(), &payload); err != nil {
		return nil, fmt.Errorf("parse borg list output: %w", err)
	}
	return payload.Archives, nil
}

// Info returns repository statistics.
func (r *BorgRunner) Info(ctx context.Context) (*BorgRepoInfo, error) {
	var out bytes.Buffer
	err := runPipeline(ctx, r.timeout, &out, Stage{
		Name: "borg",
		Path: r.borgBin,
		Args: []string{"info", "--json", r.repoPath},
	})
	if err != nil {
		return nil, err
	}

	var info BorgRepoInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("parse borg info output: %w", err)
	}
	return &info, nil
}

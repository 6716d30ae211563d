package model

import "time"

// BackupJob is one backup request's full lifecycle record.
type BackupJob struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	RequestedBy  string     `json:"requested_by"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	DurationMs   *int64     `json:"duration_ms,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

const (
	KindFiles    = "files"
	KindDatabase = "database"
	KindBoth     = "both"
	KindBorg     = "borg"
)

// ValidKind reports whether kind is one of the accepted job kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindFiles, KindDatabase, KindBoth, KindBorg:
		return true
	}
	return false
}

// KindIncludesFiles reports whether jobs of this kind archive the source tree.
func KindIncludesFiles(kind string) bool {
	return kind == KindFiles || kind == KindBoth
}

// KindIncludesDatabase reports whether jobs of this kind dump the database.
func KindIncludesDatabase(kind string) bool {
	return kind == KindDatabase || kind == KindBoth
}

// BackupArtifact is a single produced backup file plus its manifest sidecar.
// Artifacts are immutable once created; restores never rewrite them.
type BackupArtifact struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	ArtifactType string    `json:"artifact_type"`
	Path         string    `json:"path"`
	SizeBytes    int64     `json:"size_bytes"`
	SHA256       string    `json:"sha256"`
	ManifestPath string    `json:"manifest_path"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	ArtifactTypeFiles    = "files"
	ArtifactTypeDatabase = "database"
)

// Restore tracks one restore request against an artifact.
type Restore struct {
	ID             string     `json:"id"`
	ArtifactID     string     `json:"artifact_id"`
	Mode           string     `json:"mode"`
	Status         string     `json:"status"`
	TargetPath     *string    `json:"target_path,omitempty"`
	TargetDatabase *string    `json:"target_database,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

const (
	RestoreModeSandbox   = "sandbox"
	RestoreModeOverwrite = "overwrite"
)

// BackupSettings is the single-row operator configuration for backups.
type BackupSettings struct {
	ID               int       `json:"id"`
	NotifyEmail      *string   `json:"notify_email,omitempty"`
	BorgRepoPath     string    `json:"borg_repo_path"`
	IncludeFiles     bool      `json:"include_files"`
	IncludeDatabase  bool      `json:"include_database"`
	CompressionLevel int       `json:"compression_level"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BackupFilter is a persisted exclude pattern applied to files backups.
type BackupFilter struct {
	ID          string    `json:"id"`
	Pattern     string    `json:"pattern"`
	Enabled     bool      `json:"enabled"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

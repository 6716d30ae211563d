package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Manifest is the on-disk JSON descriptor written beside each artifact. It
// duplicates the artifact row so a backup can be audited or restored even
// when the database itself is the thing being recovered.
type Manifest struct {
	JobID     string    `json:"jobId"`
	Type      string    `json:"type"`
	Timestamp string    `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
	Database  string    `json:"database,omitempty"`
	Archive   string    `json:"archive"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256"`
	Filters   []string  `json:"filters,omitempty"`
	Created   time.Time `json:"created"`
}

// WriteManifest serializes the manifest to path. Manifests are append-only
// per job and type; an existing file is never overwritten.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create manifest %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close manifest %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads a manifest sidecar from disk.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

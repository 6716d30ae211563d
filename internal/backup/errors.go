package backup

import (
	"errors"
	"fmt"
	"time"
)

// ErrQueueFull is returned by Submit/Restore when the bounded job queue has
// no free slot. Callers resubmit later; nothing is silently dropped.
var ErrQueueFull = errors.New("backup queue full")

// SpawnError means an external tool could not be started at all (missing
// binary, bad permissions, missing source root).
type SpawnError struct {
	Tool string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%s: failed to start: %v", e.Tool, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError means an external tool started but exited non-zero. Stderr holds
// the captured tail of the tool's standard error.
type ExitError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: exit code %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit code %d: %s", e.Tool, e.ExitCode, e.Stderr)
}

// TimeoutError means an external tool ran past the configured deadline and
// its process tree was killed.
type TimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Tool, e.Timeout)
}

// EmptyOutputError means a tool reported success but produced a zero-byte
// file. Guards against silent empty dumps.
type EmptyOutputError struct {
	Path string
}

func (e *EmptyOutputError) Error() string {
	return fmt.Sprintf("output file %s is empty", e.Path)
}

// ChecksumMismatchError means an artifact's bytes no longer match the digest
// recorded at backup time.
type ChecksumMismatchError struct {
	Path string
	Want string
	Got  string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: recorded %s, computed %s", e.Path, e.Want, e.Got)
}

// StoreUnavailableError means a mid-job persistence write failed. The job may
// be left stranded in running; the reaper sweeps those to failed.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("job store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// TargetConflictError means a restore target already exists and overwrite
// was not requested.
type TargetConflictError struct {
	Target string
}

func (e *TargetConflictError) Error() string {
	return fmt.Sprintf("restore target %s already exists", e.Target)
}

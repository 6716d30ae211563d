package model

// Job statuses. Terminal statuses are final; the store refuses further
// transitions once one is reached.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Restore statuses.
const (
	RestoreStatusInitiated = "initiated"
	RestoreStatusRunning   = "running"
	RestoreStatusCompleted = "completed"
	RestoreStatusFailed    = "failed"
)

// Terminal reports whether a job status permits no further transitions.
func Terminal(status string) bool {
	return status == StatusSuccess || status == StatusFailed
}

package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Event describes the outcome of a finished backup or restore.
type Event struct {
	JobID   string
	Kind    string
	Status  string
	Message string
}

// Notifier delivers completion events to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, email string, ev Event) error
}

// LogNotifier writes events to the structured log. It stands in when no
// outbound mail relay is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, email string, ev Event) error {
	n.logger.Info().
		Str("email", email).
		Str("job_id", ev.JobID).
		Str("kind", ev.Kind).
		Str("status", ev.Status).
		Str("message", ev.Message).
		Msg("backup notification")
	return nil
}

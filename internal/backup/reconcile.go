package backup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/churchadmin/internal/metrics"
)

// StaleFailer marks rows stuck in a non-terminal state for longer than
// olderThan as failed, returning the number of rows touched.
type StaleFailer interface {
	FailStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Reaper periodically sweeps jobs and restores that claim to be running but
// whose process died with the daemon. Without it a crash leaves rows running
// forever and their resource classes look permanently busy to operators.
type Reaper struct {
	logger     zerolog.Logger
	jobs       StaleFailer
	restores   StaleFailer
	staleAfter time.Duration
	interval   time.Duration
}

func NewReaper(logger zerolog.Logger, jobs, restores StaleFailer, staleAfter, interval time.Duration) *Reaper {
	return &Reaper{
		logger:     logger.With().Str("component", "reaper").Logger(),
		jobs:       jobs,
		restores:   restores,
		staleAfter: staleAfter,
		interval:   interval,
	}
}

// Run sweeps once at startup, then on every tick until ctx is canceled. The
// startup sweep clears rows orphaned by the previous process.
func (r *Reaper) Run(ctx context.Context) {
	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	if n, err := r.jobs.FailStale(ctx, r.staleAfter); err != nil {
		r.logger.Error().Err(err).Msg("sweep stale jobs")
	} else if n > 0 {
		metrics.StaleJobsReaped.WithLabelValues("backup_jobs").Add(float64(n))
		r.logger.Warn().Int64("count", n).Msg("marked stale jobs failed")
	}

	if n, err := r.restores.FailStale(ctx, r.staleAfter); err != nil {
		r.logger.Error().Err(err).Msg("sweep stale restores")
	} else if n > 0 {
		metrics.StaleJobsReaped.WithLabelValues("backup_restores").Add(float64(n))
		r.logger.Warn().Int64("count", n).Msg("marked stale restores failed")
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished backup jobs by kind and final status.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_jobs_total",
			Help: "Finished backup jobs by kind and status",
		},
		[]string{"kind", "status"},
	)

	// JobDuration observes end-to-end backup job runtime in seconds.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backup_job_duration_seconds",
			Help:    "Backup job duration by kind",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		},
		[]string{"kind"},
	)

	// RestoresTotal counts finished restores by mode and final status.
	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_restores_total",
			Help: "Finished restores by mode and status",
		},
		[]string{"mode", "status"},
	)

	// QueueRejections counts submissions dropped because the queue was full.
	QueueRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backup_queue_rejections_total",
			Help: "Submissions rejected because the job queue was full",
		},
	)

	// StaleJobsReaped counts rows the reconciliation sweep marked failed.
	StaleJobsReaped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_stale_reaped_total",
			Help: "Stale running rows marked failed by the reaper",
		},
		[]string{"table"},
	)

	// OffsiteUploads counts offsite artifact replication attempts.
	OffsiteUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_offsite_uploads_total",
			Help: "Offsite artifact uploads by result",
		},
		[]string{"result"},
	)
)

// RegisterQueueDepth exposes the scheduler's live queue depth as a gauge.
func RegisterQueueDepth(depth func() int) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "backup_queue_depth",
		Help: "Backup tasks waiting for a worker",
	}, func() float64 {
		return float64(depth())
	}))
}

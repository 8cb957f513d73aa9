package worker

import (
	"creator-insights/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics exposes the maintenance worker's Prometheus metrics. It
// embeds the shared config metrics (load timestamp, validation errors,
// fallbacks) and adds counters and histograms for the sweep job itself.
type WorkerMetrics struct {
	*config.ConfigMetrics

	// CronJobRunsTotal counts runs, labeled by status
	// (started/success/failure).
	CronJobRunsTotal *prometheus.CounterVec

	// CronJobDurationSeconds observes sweep wall time. Buckets span 10ms
	// to 5m since a sweep over a warm cache is fast but a full session
	// purge can take minutes.
	CronJobDurationSeconds prometheus.Histogram

	// CronJobEntriesPurgedTotal counts purged entries per component
	// (cache, kv).
	CronJobEntriesPurgedTotal *prometheus.CounterVec

	// CronJobLastSuccessTimestamp is the Unix time of the last clean run,
	// the signal alerting watches for staleness.
	CronJobLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics builds the metric set. promauto registers everything on
// the default registry, so call this once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		CronJobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cron_job_runs_total",
			Help: "Total number of cron job runs by status (success/failure)",
		}, []string{"status"}),

		CronJobDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_cron_job_duration_seconds",
			Help:    "Duration of cron job execution in seconds",
			Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 30, 60, 300},
		}),

		CronJobEntriesPurgedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cron_job_entries_purged_total",
			Help: "Total number of expired entries purged across all cron job runs",
		}, []string{"component"}),

		CronJobLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_cron_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful cron job run",
		}),
	}
}

// MustRegister is a no-op kept so startup reads the same as the API
// server; promauto already registered everything.
func (m *WorkerMetrics) MustRegister() {}

func (m *WorkerMetrics) RecordJobRun(status string) {
	m.CronJobRunsTotal.WithLabelValues(status).Inc()
}

func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.CronJobDurationSeconds.Observe(seconds)
}

func (m *WorkerMetrics) RecordEntriesPurged(component string, count int) {
	m.CronJobEntriesPurgedTotal.WithLabelValues(component).Add(float64(count))
}

func (m *WorkerMetrics) RecordLastSuccess() {
	m.CronJobLastSuccessTimestamp.SetToCurrentTime()
}

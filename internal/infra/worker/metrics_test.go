package worker

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIsolatedMetrics builds a WorkerMetrics on a private registry so each
// test starts from zero. The name prefix keeps registries distinct when the
// package runs with -count>1.
func newIsolatedMetrics(t *testing.T, prefix string) *WorkerMetrics {
	t.Helper()
	reg := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_runs_total",
		Help: "test",
	}, []string{"status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    prefix + "_duration_seconds",
		Help:    "test",
		Buckets: []float64{0.01, 0.05, 0.25, 1, 5, 30, 60, 300},
	})
	purged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_entries_purged_total",
		Help: "test",
	}, []string{"component"})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "_last_success_timestamp",
		Help: "test",
	})
	reg.MustRegister(runs, duration, purged, lastSuccess)

	return &WorkerMetrics{
		CronJobRunsTotal:            runs,
		CronJobDurationSeconds:      duration,
		CronJobEntriesPurgedTotal:   purged,
		CronJobLastSuccessTimestamp: lastSuccess,
	}
}

func TestNewWorkerMetrics_AllFieldsInitialized(t *testing.T) {
	m := testWorkerMetrics

	require.NotNil(t, m)
	assert.NotNil(t, m.ConfigMetrics)
	assert.NotNil(t, m.CronJobRunsTotal)
	assert.NotNil(t, m.CronJobDurationSeconds)
	assert.NotNil(t, m.CronJobEntriesPurgedTotal)
	assert.NotNil(t, m.CronJobLastSuccessTimestamp)

	assert.NotPanics(t, m.MustRegister)
}

func TestWorkerMetrics_SweepLifecycle(t *testing.T) {
	m := newIsolatedMetrics(t, "sweep_lifecycle")

	// Two clean sweeps over the analysis cache, then one that failed
	// before purging anything.
	m.RecordJobRun("success")
	m.RecordJobDuration(0.8)
	m.RecordEntriesPurged("cache", 10)
	m.RecordLastSuccess()

	m.RecordJobRun("success")
	m.RecordJobDuration(0.4)
	m.RecordEntriesPurged("cache", 12)
	m.RecordEntriesPurged("kv", 5)
	m.RecordLastSuccess()

	m.RecordJobRun("failure")
	m.RecordJobDuration(5.0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CronJobRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CronJobRunsTotal.WithLabelValues("failure")))
	assert.Equal(t, 22.0, testutil.ToFloat64(m.CronJobEntriesPurgedTotal.WithLabelValues("cache")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.CronJobEntriesPurgedTotal.WithLabelValues("kv")))
	var hist dto.Metric
	require.NoError(t, m.CronJobDurationSeconds.Write(&hist))
	assert.Equal(t, uint64(3), hist.GetHistogram().GetSampleCount())

	assert.Positive(t, testutil.ToFloat64(m.CronJobLastSuccessTimestamp))
}

func TestWorkerMetrics_RecordEntriesPurged_ZeroIsValid(t *testing.T) {
	m := newIsolatedMetrics(t, "sweep_zero")

	m.RecordEntriesPurged("cache", 0)

	assert.Zero(t, testutil.ToFloat64(m.CronJobEntriesPurgedTotal.WithLabelValues("cache")))
}

func TestWorkerMetrics_RecordLastSuccess_SetsTimestamp(t *testing.T) {
	m := newIsolatedMetrics(t, "sweep_timestamp")

	assert.Zero(t, testutil.ToFloat64(m.CronJobLastSuccessTimestamp))

	m.RecordLastSuccess()

	assert.Positive(t, testutil.ToFloat64(m.CronJobLastSuccessTimestamp))
}

func TestWorkerMetrics_ConcurrentRecording(t *testing.T) {
	m := newIsolatedMetrics(t, "sweep_concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordJobRun("success")
			m.RecordEntriesPurged("kv", 1)
			m.RecordLastSuccess()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(m.CronJobRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.CronJobEntriesPurgedTotal.WithLabelValues("kv")))
}

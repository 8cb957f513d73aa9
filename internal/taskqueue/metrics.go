package taskqueue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "task_queue_depth",
		Help: "Number of queued tasks by priority",
	}, []string{"priority"})

	queueWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "task_queue_wait_seconds",
		Help:    "Time tasks spend queued before a worker picks them up",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
	})

	tasksFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasks_finished_total",
		Help: "Total number of finished tasks by terminal state and priority",
	}, []string{"state", "priority"})

	taskDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "task_duration_seconds",
		Help:    "Task execution duration including retries",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})
)

func recordQueueDepth(priority string, depth int) {
	queueDepth.WithLabelValues(priority).Set(float64(depth))
}

func recordQueueWait(wait time.Duration) {
	queueWaitSeconds.Observe(wait.Seconds())
}

func recordTaskFinished(state, priority string, duration time.Duration) {
	tasksFinishedTotal.WithLabelValues(state, priority).Inc()
	taskDurationSeconds.Observe(duration.Seconds())
}

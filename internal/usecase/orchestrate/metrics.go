package orchestrate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_requests_total",
		Help: "Total number of analyze requests by outcome",
	}, []string{"outcome"})

	requestDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestrator_request_duration_seconds",
		Help:    "End-to-end analyze request latency",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	})
)

func recordRequest(outcome string, duration time.Duration) {
	requestsTotal.WithLabelValues(outcome).Inc()
	requestDurationSeconds.Observe(duration.Seconds())
}

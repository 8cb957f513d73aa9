package youtube

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "video_api_calls_total",
		Help: "Total number of video data API calls by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	apiCallDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "video_api_call_duration_seconds",
		Help:    "Video data API call latency by endpoint, including retries",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"endpoint"})
)

func recordAPICall(endpoint, outcome string, duration time.Duration) {
	apiCallsTotal.WithLabelValues(endpoint, outcome).Inc()
	apiCallDurationSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

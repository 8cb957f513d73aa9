package handlers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"creator-insights/internal/domain/entity"
)

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "handler_analyses_total",
		Help: "Total number of handler analyses by domain and outcome",
	}, []string{"domain", "outcome"})

	analysisDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "handler_analysis_duration_seconds",
		Help:    "Handler analysis latency by domain, including cache hits",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"domain"})
)

func recordAnalysis(domain entity.Domain, outcome string, duration time.Duration) {
	analysesTotal.WithLabelValues(string(domain), outcome).Inc()
	analysisDurationSeconds.WithLabelValues(string(domain)).Observe(duration.Seconds())
}

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// authRequestsTotal counts authentication requests by result.
	authRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Total authentication requests by result",
		},
		[]string{"result"}, // result: success | failure
	)

	// authDuration tracks authentication duration.
	authDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auth_duration_seconds",
			Help:    "Authentication duration",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)

	// tokenValidationsTotal counts token validations on protected endpoints.
	tokenValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_validations_total",
			Help: "Token validations on protected endpoints by outcome",
		},
		[]string{"outcome"}, // valid | invalid | expired | ip_mismatch
	)
)

// RecordAuthRequest records an authentication request.
func RecordAuthRequest(result string) {
	authRequestsTotal.WithLabelValues(result).Inc()
}

// RecordAuthDuration records authentication duration.
func RecordAuthDuration(durationSeconds float64) {
	authDuration.Observe(durationSeconds)
}

// RecordTokenValidation records the outcome of one token validation.
func RecordTokenValidation(outcome string) {
	tokenValidationsTotal.WithLabelValues(outcome).Inc()
}

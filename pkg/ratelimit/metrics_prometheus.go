package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics records limiter activity on its own registry, so tests
// and multiple limiter instances never collide on metric names. Expose it
// with promhttp.HandlerFor(metrics.Registry(), ...).
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// requestsTotal counts checks by limiter_type, status
	// (allowed/denied) and normalized path.
	requestsTotal *prometheus.CounterVec

	// checkDuration buckets are tuned for sub-5ms checks; observations
	// past 100ms mean the store is in trouble.
	checkDuration *prometheus.HistogramVec

	activeKeys *prometheus.GaugeVec

	// circuitState gauges 0=closed, 1=open, 2=half-open.
	circuitState *prometheus.GaugeVec

	// degradationLevel gauges fail-open depth, 0 normal through 3
	// disabled.
	degradationLevel *prometheus.GaugeVec

	evictionsTotal *prometheus.CounterVec
}

func NewPrometheusMetrics() *PrometheusMetrics {
	perLimiter := []string{"limiter_type"}

	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_rate_limit_requests_total",
			Help: "Total rate limit requests by limiter type, status, and path",
		}, []string{"limiter_type", "status", "path"}),

		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_rate_limit_check_duration_seconds",
			Help:    "Duration of rate limit check operations",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, perLimiter),

		activeKeys: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_rate_limit_active_keys",
			Help: "Current number of active keys by limiter type",
		}, perLimiter),

		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_rate_limit_circuit_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, perLimiter),

		degradationLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_rate_limit_degradation_level",
			Help: "Current degradation level (0=normal, 1=relaxed, 2=minimal, 3=disabled)",
		}, perLimiter),

		evictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_rate_limit_evictions_total",
			Help: "Total LRU evictions by limiter type",
		}, perLimiter),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.checkDuration,
		m.activeKeys,
		m.circuitState,
		m.degradationLevel,
		m.evictionsTotal,
	)

	return m
}

// Registry exposes the registry holding the rate limit metrics.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) RecordRequest(limiterType, endpoint string) {
	m.requestsTotal.WithLabelValues(limiterType, "allowed", endpoint).Inc()
}

func (m *PrometheusMetrics) RecordDenied(limiterType, endpoint string) {
	m.requestsTotal.WithLabelValues(limiterType, "denied", endpoint).Inc()
}

// RecordAllowed is RecordRequest under the name the interface uses.
func (m *PrometheusMetrics) RecordAllowed(limiterType, endpoint string) {
	m.RecordRequest(limiterType, endpoint)
}

func (m *PrometheusMetrics) RecordCheckDuration(limiterType string, duration time.Duration) {
	m.checkDuration.WithLabelValues(limiterType).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SetActiveKeys(limiterType string, count int) {
	m.activeKeys.WithLabelValues(limiterType).Set(float64(count))
}

// RecordCircuitState maps the state name onto the gauge; unknown names
// count as closed.
func (m *PrometheusMetrics) RecordCircuitState(limiterType, state string) {
	value := 0.0
	switch state {
	case "open":
		value = 1
	case "half-open":
		value = 2
	}
	m.circuitState.WithLabelValues(limiterType).Set(value)
}

func (m *PrometheusMetrics) RecordDegradationLevel(limiterType string, level int) {
	m.degradationLevel.WithLabelValues(limiterType).Set(float64(level))
}

// RecordEviction adds to the eviction counter. A sustained eviction rate
// usually means many unique source IPs, raise MaxActiveKeys or move the
// store to Redis.
func (m *PrometheusMetrics) RecordEviction(limiterType string, count int) {
	m.evictionsTotal.WithLabelValues(limiterType).Add(float64(count))
}

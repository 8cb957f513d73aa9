package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

var (
	// breakerState tracks the current state per dependency.
	// 0 = closed, 1 = open, 2 = half-open.
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state per dependency (0=closed, 1=open, 2=half-open)",
		},
		[]string{"dependency"},
	)

	// breakerTransitionsTotal counts state transitions per dependency.
	breakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"dependency", "to"},
	)
)

func recordStateChange(name string, to gobreaker.State) {
	var v float64
	switch to {
	case gobreaker.StateOpen:
		v = 1
	case gobreaker.StateHalfOpen:
		v = 2
	default:
		v = 0
	}
	breakerState.WithLabelValues(name).Set(v)
	breakerTransitionsTotal.WithLabelValues(name, to.String()).Inc()
}

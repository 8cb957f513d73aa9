package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_created_total",
		Help: "Total number of sessions created",
	})

	sessionsRevokedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_revoked_total",
		Help: "Total number of sessions revoked",
	})

	sessionsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_evicted_total",
		Help: "Total number of oldest-session evictions at the per-user cap",
	})

	sessionIPMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_ip_mismatches_total",
		Help: "Total number of session accesses from an unexpected IP",
	})
)

func recordCreation()   { sessionsCreatedTotal.Inc() }
func recordRevocation() { sessionsRevokedTotal.Inc() }
func recordEviction()   { sessionsEvictedTotal.Inc() }
func recordIPMismatch() { sessionIPMismatchTotal.Inc() }

package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "router_classifications_total",
	Help: "Total number of request classifications by method",
}, []string{"method"})

func recordClassification(method string) {
	classificationsTotal.WithLabelValues(method).Inc()
}

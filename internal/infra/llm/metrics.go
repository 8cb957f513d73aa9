package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"creator-insights/internal/domain/entity"
)

var (
	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_completions_total",
		Help: "Total number of LLM completions by provider and outcome",
	}, []string{"provider", "outcome"})

	completionDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_completion_duration_seconds",
		Help:    "LLM completion latency by provider",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"provider"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Total tokens consumed by provider and direction",
	}, []string{"provider", "direction"})
)

func recordCompletion(provider, outcome string, durationSeconds float64) {
	completionsTotal.WithLabelValues(provider, outcome).Inc()
	if outcome == "success" {
		completionDurationSeconds.WithLabelValues(provider).Observe(durationSeconds)
	}
}

func recordTokens(provider string, usage entity.TokenUsage) {
	tokensTotal.WithLabelValues(provider, "input").Add(float64(usage.Input))
	tokensTotal.WithLabelValues(provider, "output").Add(float64(usage.Output))
}

package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics exposes configuration health per component (api, worker):
// when the last load happened, how many values failed validation, and whether
// any fallback is currently in effect. A nonzero fallback gauge in production
// means an env var is set wrong even though the process came up fine.
type ConfigMetrics struct {
	// LoadTimestamp is the Unix time of the last configuration load.
	LoadTimestamp prometheus.Gauge

	// ValidationErrorsTotal counts validation failures, labeled by field.
	ValidationErrorsTotal *prometheus.CounterVec

	// FallbacksTotal counts applied fallbacks, labeled by field.
	FallbacksTotal *prometheus.CounterVec

	// FallbackActive is 1 while any field runs on its default because the
	// configured value was rejected.
	FallbackActive prometheus.Gauge

	componentName string
}

// NewConfigMetrics registers the metric set under the component's prefix
// (e.g. "api_config_load_timestamp"). Registration is with the default
// registry, so each component name must be used at most once per process.
func NewConfigMetrics(componentName string) *ConfigMetrics {
	name := func(suffix string) string {
		return fmt.Sprintf("%s_config_%s", componentName, suffix)
	}
	perField := []string{"field"}

	return &ConfigMetrics{
		LoadTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: name("load_timestamp"),
			Help: fmt.Sprintf("When the %s configuration was last loaded, as Unix time", componentName),
		}),
		ValidationErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: name("validation_errors_total"),
			Help: fmt.Sprintf("Rejected %s configuration values, by field", componentName),
		}, perField),
		FallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: name("fallbacks_total"),
			Help: fmt.Sprintf("Defaults applied to %s configuration fields, by field", componentName),
		}, perField),
		FallbackActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: name("fallback_active"),
			Help: fmt.Sprintf("1 while any %s configuration field runs on its default", componentName),
		}),
		componentName: componentName,
	}
}

// RecordLoadTimestamp marks a (re)load of the component's configuration.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.LoadTimestamp.SetToCurrentTime()
}

// RecordValidationError counts a validation failure for the given field.
func (m *ConfigMetrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

// RecordFallback counts an applied fallback for the given field.
func (m *ConfigMetrics) RecordFallback(field, fallbackType string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

// SetFallbackActive flips the fallback gauge.
func (m *ConfigMetrics) SetFallbackActive(field string, active bool) {
	if active {
		m.FallbackActive.Set(1)
	} else {
		m.FallbackActive.Set(0)
	}
}

package config

import (
	"time"

	pkgconfig "creator-insights/pkg/config"
)

// OrchestrationConfig holds the operational knobs for the orchestration layer.
// Everything here is environment-driven with warn-and-fallback defaults so a
// bad value never prevents startup.
type OrchestrationConfig struct {
	// RequestDeadline bounds one analyze request end to end. Handlers still
	// running at the deadline are cancelled and synthesis proceeds with
	// whatever completed.
	RequestDeadline time.Duration

	// DeepTaskTimeout bounds one deep analysis submitted to the task queue.
	DeepTaskTimeout time.Duration

	// QueueWorkers sizes the task queue worker pool.
	QueueWorkers int

	// CacheCapacity caps the result cache LRU index.
	CacheCapacity int

	// SessionTimeout is the standard session lifetime.
	SessionTimeout time.Duration

	// SessionRememberMeTimeout is the long-lived session lifetime.
	SessionRememberMeTimeout time.Duration

	// SessionRefreshThreshold triggers sliding refresh below this remaining lifetime.
	SessionRefreshThreshold time.Duration

	// MaxSessionsPerUser caps concurrent sessions; oldest is evicted at the cap.
	MaxSessionsPerUser int

	// SessionIPBindingMode is off, log, or reject.
	SessionIPBindingMode string

	// AnalysisConfigPath locates the analysis tuning YAML.
	AnalysisConfigPath string
}

// LoadOrchestrationConfig reads the orchestration configuration from
// environment variables.
//
// Environment variables:
//   - REQUEST_DEADLINE: overall analyze request deadline (default: 30s)
//   - DEEP_TASK_TIMEOUT: per-task timeout for queued deep analyses (default: 5m)
//   - QUEUE_WORKERS: task queue worker pool size (default: 4)
//   - CACHE_CAPACITY: result cache entry cap (default: 10000)
//   - SESSION_TIMEOUT: standard session lifetime (default: 1h)
//   - SESSION_REMEMBER_ME_TIMEOUT: long-lived session lifetime (default: 720h)
//   - SESSION_REFRESH_THRESHOLD: sliding refresh threshold (default: 15m)
//   - SESSION_MAX_PER_USER: concurrent session cap (default: 5)
//   - SESSION_IP_BINDING_MODE: off, log, or reject (default: log)
//   - ANALYSIS_CONFIG_PATH: analysis tuning YAML path (default: configs/analysis.yaml)
func LoadOrchestrationConfig() *OrchestrationConfig {
	return &OrchestrationConfig{
		RequestDeadline:          pkgconfig.GetEnvDuration("REQUEST_DEADLINE", 30*time.Second),
		DeepTaskTimeout:          pkgconfig.GetEnvDuration("DEEP_TASK_TIMEOUT", 5*time.Minute),
		QueueWorkers:             pkgconfig.GetEnvInt("QUEUE_WORKERS", 4),
		CacheCapacity:            pkgconfig.GetEnvInt("CACHE_CAPACITY", 10000),
		SessionTimeout:           pkgconfig.GetEnvDuration("SESSION_TIMEOUT", time.Hour),
		SessionRememberMeTimeout: pkgconfig.GetEnvDuration("SESSION_REMEMBER_ME_TIMEOUT", 720*time.Hour),
		SessionRefreshThreshold:  pkgconfig.GetEnvDuration("SESSION_REFRESH_THRESHOLD", 15*time.Minute),
		MaxSessionsPerUser:       pkgconfig.GetEnvInt("SESSION_MAX_PER_USER", 5),
		SessionIPBindingMode:     pkgconfig.GetEnvString("SESSION_IP_BINDING_MODE", "log"),
		AnalysisConfigPath:       pkgconfig.GetEnvString("ANALYSIS_CONFIG_PATH", "configs/analysis.yaml"),
	}
}

package worker

import (
	"creator-insights/internal/pkg/config"
	"fmt"
	"log/slog"
	"time"
)

// WorkerConfig controls the maintenance worker: when sweeps run, how long
// they may take, and where the health endpoints listen.
type WorkerConfig struct {
	// CronSchedule is a five-field cron expression for sweep scheduling.
	CronSchedule string

	// Timezone is the IANA timezone the cron schedule is evaluated in.
	Timezone string

	// SweepTimeout bounds a single sweep; the job context is canceled
	// once it elapses.
	SweepTimeout time.Duration

	// HealthPort is where the liveness/readiness server listens.
	// Privileged ports are rejected.
	HealthPort int
}

// DefaultConfig sweeps every 15 minutes in UTC with a 5 minute timeout and
// serves health on 9091.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule: "*/15 * * * *",
		Timezone:     "UTC",
		SweepTimeout: 5 * time.Minute,
		HealthPort:   9091,
	}
}

// Validate checks every field and reports all failures at once.
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errors = append(errors, fmt.Errorf("cron schedule: %w", err))
	}

	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}

	if err := config.ValidatePositiveDuration(c.SweepTimeout); err != nil {
		errors = append(errors, fmt.Errorf("sweep timeout: %w", err))
	}

	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	return nil
}

// LoadConfigFromEnv reads the worker configuration from the environment.
// A value that fails validation is replaced by its default, logged, and
// counted in the config metrics; the function never returns an error so a
// bad deploy-time variable cannot keep the worker from starting.
//
// Variables: CRON_SCHEDULE, WORKER_TIMEZONE, SWEEP_TIMEOUT (10s-1h),
// WORKER_HEALTH_PORT (1024-65535).
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	warn := func(field, fieldKey string, result config.ConfigLoadResult) {
		fallbackApplied = true
		metrics.RecordValidationError(fieldKey)
		metrics.RecordFallback(fieldKey, "default")
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	result := config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)
	cfg.CronSchedule = result.Value.(string)
	if result.FallbackApplied {
		warn("CronSchedule", "cron_schedule", result)
	}

	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	if result.FallbackApplied {
		warn("Timezone", "timezone", result)
	}

	result = config.LoadEnvDuration("SWEEP_TIMEOUT", cfg.SweepTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 10*time.Second, 1*time.Hour)
	})
	cfg.SweepTimeout = result.Value.(time.Duration)
	if result.FallbackApplied {
		warn("SweepTimeout", "sweep_timeout", result)
	}

	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	if result.FallbackApplied {
		warn("HealthPort", "health_port", result)
	}

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}

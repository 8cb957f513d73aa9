// Package config holds the shared env-loading helpers used by both binaries.
// Loaders never fail: a bad value falls back to its default and surfaces as a
// warning the caller logs, so a typo in one variable cannot stop startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigLoadResult is the outcome of loading one configuration value.
// Value holds the parsed value (or the default when FallbackApplied is set),
// and Warnings carries one message per fallback for the caller to log.
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// loaded wraps a successfully parsed value.
func loaded(value interface{}) ConfigLoadResult {
	return ConfigLoadResult{Value: value}
}

// fellBack builds the fallback result, with one warning naming the variable,
// the rejected value, and the default that replaced it.
func fellBack(envKey, raw string, reason error, defaultValue interface{}) ConfigLoadResult {
	warning := fmt.Sprintf(
		"%s value %q rejected (%v), falling back to default %v",
		envKey, raw, reason, defaultValue,
	)
	return ConfigLoadResult{
		Value:           defaultValue,
		Warnings:        []string{warning},
		FallbackApplied: true,
	}
}

// LoadEnvString returns the variable's value, or defaultValue when unset.
// No validation; use LoadEnvWithFallback when a bad value must be caught.
func LoadEnvString(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string and runs it through validator (nil skips
// validation). An unset variable uses the default silently; a value that
// fails validation uses the default with a warning.
//
//	result := LoadEnvWithFallback("SWEEP_SCHEDULE", "*/10 * * * *", ValidateCronSchedule)
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return loaded(defaultValue)
	}

	if validator != nil {
		if err := validator(raw); err != nil {
			return fellBack(envKey, raw, err, defaultValue)
		}
	}
	return loaded(raw)
}

// LoadEnvDuration parses a Go duration string ("30s", "5m", "1h30m") and
// validates it. Parse and validation failures both fall back with a warning.
//
//	result := LoadEnvDuration("ANALYSIS_TIMEOUT", 30*time.Second, ValidatePositiveDuration)
//	timeout := result.Value.(time.Duration)
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return loaded(defaultValue)
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fellBack(envKey, raw, err, defaultValue)
	}
	if validator != nil {
		if err := validator(parsed); err != nil {
			return fellBack(envKey, raw, err, defaultValue)
		}
	}
	return loaded(parsed)
}

// LoadEnvInt parses an integer with optional range validation.
//
//	result := LoadEnvInt("QUEUE_WORKERS", 4, func(v int) error { return ValidateIntRange(v, 1, 64) })
//	workers := result.Value.(int)
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return loaded(defaultValue)
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fellBack(envKey, raw, err, defaultValue)
	}
	if validator != nil {
		if err := validator(parsed); err != nil {
			return fellBack(envKey, raw, err, defaultValue)
		}
	}
	return loaded(parsed)
}

// LoadEnvBool parses a boolean. Accepted spellings mirror strconv.ParseBool
// ("1"/"t"/"true" and "0"/"f"/"false" in any case); anything else falls back
// with a warning.
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return loaded(defaultValue)
	}

	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fellBack(envKey, raw, err, defaultValue)
	}
	return loaded(parsed)
}

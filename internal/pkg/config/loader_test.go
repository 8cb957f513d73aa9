package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvString(t *testing.T) {
	t.Setenv("SWEEP_SCHEDULE", "")
	assert.Equal(t, "*/10 * * * *", LoadEnvString("SWEEP_SCHEDULE", "*/10 * * * *"))

	t.Setenv("SWEEP_SCHEDULE", "0 */2 * * *")
	assert.Equal(t, "0 */2 * * *", LoadEnvString("SWEEP_SCHEDULE", "*/10 * * * *"))
}

func TestLoadEnvWithFallback(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		validator    func(string) error
		wantValue    string
		wantFallback bool
	}{
		{
			name:      "unset uses default silently",
			envValue:  "",
			validator: ValidateCronSchedule,
			wantValue: "*/10 * * * *",
		},
		{
			name:      "valid value passes",
			envValue:  "0 6 * * *",
			validator: ValidateCronSchedule,
			wantValue: "0 6 * * *",
		},
		{
			name:         "invalid value falls back with warning",
			envValue:     "every ten minutes",
			validator:    ValidateCronSchedule,
			wantValue:    "*/10 * * * *",
			wantFallback: true,
		},
		{
			name:      "nil validator accepts anything",
			envValue:  "whatever",
			validator: nil,
			wantValue: "whatever",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SWEEP_SCHEDULE", tt.envValue)

			result := LoadEnvWithFallback("SWEEP_SCHEDULE", "*/10 * * * *", tt.validator)

			assert.Equal(t, tt.wantValue, result.Value.(string))
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
			if tt.wantFallback {
				require.Len(t, result.Warnings, 1)
				assert.Contains(t, result.Warnings[0], "SWEEP_SCHEDULE")
				assert.Contains(t, result.Warnings[0], "falling back to default")
			} else {
				assert.Empty(t, result.Warnings)
			}
		})
	}
}

func TestLoadEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		validator    func(time.Duration) error
		wantValue    time.Duration
		wantFallback bool
	}{
		{
			name:      "unset uses default",
			envValue:  "",
			wantValue: 30 * time.Second,
		},
		{
			name:      "valid duration",
			envValue:  "45s",
			wantValue: 45 * time.Second,
		},
		{
			name:      "compound duration",
			envValue:  "1h30m",
			wantValue: 90 * time.Minute,
		},
		{
			name:         "unparseable falls back",
			envValue:     "thirty seconds",
			wantValue:    30 * time.Second,
			wantFallback: true,
		},
		{
			name:         "bare number falls back",
			envValue:     "30",
			wantValue:    30 * time.Second,
			wantFallback: true,
		},
		{
			name:         "validator rejects negative",
			envValue:     "-5s",
			validator:    ValidatePositiveDuration,
			wantValue:    30 * time.Second,
			wantFallback: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANALYSIS_TIMEOUT", tt.envValue)

			result := LoadEnvDuration("ANALYSIS_TIMEOUT", 30*time.Second, tt.validator)

			assert.Equal(t, tt.wantValue, result.Value.(time.Duration))
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
			if tt.wantFallback {
				require.Len(t, result.Warnings, 1)
				assert.Contains(t, result.Warnings[0], "ANALYSIS_TIMEOUT")
			}
		})
	}
}

func TestLoadEnvInt(t *testing.T) {
	rangeValidator := func(v int) error { return ValidateIntRange(v, 1, 64) }

	tests := []struct {
		name         string
		envValue     string
		wantValue    int
		wantFallback bool
	}{
		{name: "unset uses default", envValue: "", wantValue: 4},
		{name: "valid value", envValue: "16", wantValue: 16},
		{name: "not a number falls back", envValue: "four", wantValue: 4, wantFallback: true},
		{name: "out of range falls back", envValue: "500", wantValue: 4, wantFallback: true},
		{name: "zero rejected by range", envValue: "0", wantValue: 4, wantFallback: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("QUEUE_WORKERS", tt.envValue)

			result := LoadEnvInt("QUEUE_WORKERS", 4, rangeValidator)

			assert.Equal(t, tt.wantValue, result.Value.(int))
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
		})
	}
}

func TestLoadEnvBool(t *testing.T) {
	tests := []struct {
		envValue     string
		wantValue    bool
		wantFallback bool
	}{
		{envValue: "", wantValue: true},
		{envValue: "true", wantValue: true},
		{envValue: "TRUE", wantValue: true},
		{envValue: "1", wantValue: true},
		{envValue: "t", wantValue: true},
		{envValue: "false", wantValue: false},
		{envValue: "0", wantValue: false},
		{envValue: "F", wantValue: false},
		{envValue: "yes", wantValue: true, wantFallback: true},
		{envValue: "enabled", wantValue: true, wantFallback: true},
	}
	for _, tt := range tests {
		t.Run("value "+tt.envValue, func(t *testing.T) {
			t.Setenv("CACHE_ENABLED", tt.envValue)

			result := LoadEnvBool("CACHE_ENABLED", true)

			assert.Equal(t, tt.wantValue, result.Value.(bool))
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
			if tt.wantFallback {
				require.Len(t, result.Warnings, 1)
				assert.Contains(t, result.Warnings[0], "CACHE_ENABLED")
			}
		})
	}
}

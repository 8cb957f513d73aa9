package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "missing channel",
			field:    "channel_id",
			message:  "is required",
			expected: "validation error on field 'channel_id': is required",
		},
		{
			name:     "query too long",
			field:    "query",
			message:  "must be at most 2000 characters",
			expected: "validation error on field 'query': must be at most 2000 characters",
		},
		{
			name:     "empty field name",
			field:    "",
			message:  "test message",
			expected: "validation error on field '': test message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ValidationError{Field: tt.field, Message: tt.message}
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestValidationError_ErrorsAs(t *testing.T) {
	var err error = &ValidationError{Field: "session_id", Message: "unknown session"}

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "session_id", validationErr.Field)

	// ValidationError is not the sentinel; callers must wrap explicitly.
	assert.False(t, errors.Is(err, ErrValidationFailed))
}

func TestSentinelErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("channel UC-creator-42: %w", ErrNotFound)

	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrInvalidInput)
	assert.Equal(t, "channel UC-creator-42: entity not found", wrapped.Error())
}

func TestSentinelErrors_Distinct(t *testing.T) {
	assert.NotErrorIs(t, ErrNotFound, ErrInvalidInput)
	assert.NotErrorIs(t, ErrInvalidInput, ErrValidationFailed)
	assert.NotErrorIs(t, ErrValidationFailed, ErrNotFound)
}

package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-insights/internal/domain/entity"
)

func TestTruncatePrompt(t *testing.T) {
	short := "analyze my channel"
	got, truncated := truncatePrompt(short, 1000)
	assert.Equal(t, short, got)
	assert.False(t, truncated)

	long := strings.Repeat("a", 100000)
	got, truncated = truncatePrompt(long, 1000)
	assert.True(t, truncated)
	assert.Less(t, len(got), len(long))
	assert.Contains(t, got, "truncated")
}

func TestNormalizeBudget(t *testing.T) {
	assert.Equal(t, defaultBudget, normalizeBudget(0))
	assert.Equal(t, defaultBudget, normalizeBudget(-5))
	assert.Equal(t, 2000, normalizeBudget(2000))
}

func TestNewFromEnv_Claude(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	completer, err := NewFromEnv()

	require.NoError(t, err)
	assert.Equal(t, "claude", completer.Name())
}

func TestNewFromEnv_OpenAI(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "test-key")

	completer, err := NewFromEnv()

	require.NoError(t, err)
	assert.Equal(t, "openai", completer.Name())
}

func TestNewFromEnv_MissingKey(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewFromEnv()

	assert.Error(t, err)
}

func TestNewFromEnv_UnknownProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "bard")

	_, err := NewFromEnv()

	assert.Error(t, err)
}

type stubCompleter struct {
	calls int
}

func (s *stubCompleter) Complete(_ context.Context, _ string, _ int) (string, entity.TokenUsage, error) {
	s.calls++
	return "ok", entity.TokenUsage{}, nil
}

func (s *stubCompleter) Name() string { return "stub" }

func TestWithRateLimit_DisabledReturnsInner(t *testing.T) {
	stub := &stubCompleter{}

	got := withRateLimit(stub, 0, 10)

	assert.Same(t, stub, got)
}

func TestWithRateLimit_PassesThrough(t *testing.T) {
	stub := &stubCompleter{}
	limited := withRateLimit(stub, 1000, 10)

	out, _, err := limited.Complete(context.Background(), "analyze my channel", 100)

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "stub", limited.Name())
	assert.Equal(t, 1, stub.calls)
}

func TestWithRateLimit_CancelledContext(t *testing.T) {
	stub := &stubCompleter{}
	limited := withRateLimit(stub, 1, 1)

	// Drain the burst allowance, then cancel before the next token arrives.
	_, _, err := limited.Complete(context.Background(), "q", 100)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = limited.Complete(ctx, "q", 100)

	assert.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}

func TestLoadClaudeConfigDefaults(t *testing.T) {
	cfg := LoadClaudeConfig()

	assert.NotEmpty(t, cfg.Model)
	assert.Equal(t, 8192, cfg.MaxBudget)
}

func TestLoadOpenAIConfigOverride(t *testing.T) {
	t.Setenv("LLM_OPENAI_MODEL", "gpt-4o")
	t.Setenv("LLM_MAX_BUDGET", "4096")

	cfg := LoadOpenAIConfig()

	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 4096, cfg.MaxBudget)
}

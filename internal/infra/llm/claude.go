package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"creator-insights/internal/domain/entity"
	"creator-insights/internal/resilience/circuitbreaker"
	"creator-insights/internal/resilience/retry"
	"creator-insights/internal/utils/text"
	pkgconfig "creator-insights/pkg/config"
)

// ClaudeConfig holds configuration for the Claude adapter.
type ClaudeConfig struct {
	// Model is the Claude API model identifier.
	Model string

	// MaxBudget caps the per-call output token budget regardless of what the
	// caller requests.
	MaxBudget int
}

// LoadClaudeConfig loads configuration from environment variables.
//
// Environment variables:
//   - LLM_CLAUDE_MODEL: model identifier (default: claude-sonnet-4-5)
//   - LLM_MAX_BUDGET: output token cap per call (default: 8192)
func LoadClaudeConfig() ClaudeConfig {
	return ClaudeConfig{
		Model:     pkgconfig.GetEnvString("LLM_CLAUDE_MODEL", string(anthropic.ModelClaudeSonnet4_5_20250929)),
		MaxBudget: pkgconfig.GetEnvInt("LLM_MAX_BUDGET", 8192),
	}
}

// Claude implements Completer over Anthropic's Messages API with circuit
// breaker and retry protection.
type Claude struct {
	client      anthropic.Client
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
	config      ClaudeConfig
}

// NewClaude creates a Claude adapter with the given API key.
func NewClaude(apiKey string) *Claude {
	config := LoadClaudeConfig()

	slog.Info("initialized claude completer",
		slog.String("model", config.Model),
		slog.Int("max_budget", config.MaxBudget))

	return &Claude{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		breaker:     circuitbreaker.New(circuitbreaker.LLMProviderConfig()),
		retryConfig: retry.LLMAPIConfig(),
		config:      config,
	}
}

// Name identifies the provider in logs and metrics.
func (c *Claude) Name() string { return "claude" }

// Complete generates text for the prompt within the token budget.
// An open circuit breaker aborts immediately with a DependencyError.
func (c *Claude) Complete(ctx context.Context, prompt string, budget int) (string, entity.TokenUsage, error) {
	budget = normalizeBudget(budget)
	if budget > c.config.MaxBudget {
		budget = c.config.MaxBudget
	}

	var result completion
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
			return c.doComplete(ctx, prompt, budget)
		})
		if err != nil {
			var depErr *circuitbreaker.DependencyError
			if errors.As(err, &depErr) {
				slog.Warn("claude circuit breaker open, request rejected",
					slog.String("provider", c.Name()),
					slog.String("state", c.breaker.State().String()))
			}
			return err
		}
		result = cbResult.(completion)
		return nil
	})
	if retryErr != nil {
		recordCompletion(c.Name(), "error", 0)
		return "", entity.TokenUsage{}, fmt.Errorf("claude completion failed: %w", retryErr)
	}

	return result.text, result.usage, nil
}

// doComplete performs one API call without retry or circuit breaker.
func (c *Claude) doComplete(ctx context.Context, prompt string, budget int) (completion, error) {
	truncated, wasTruncated := truncatePrompt(prompt, budget)
	if wasTruncated {
		slog.Warn("prompt truncated for claude api",
			slog.Int("original_length", len(prompt)),
			slog.Int("truncated_length", len(truncated)))
	}

	slog.DebugContext(ctx, "starting completion",
		slog.String("provider", c.Name()),
		slog.Int("prompt_length", text.CountRunes(truncated)),
		slog.Int("budget", budget))

	start := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(budget),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(truncated),
			),
		},
	})
	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "completion failed",
			slog.String("provider", c.Name()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return completion{}, fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return completion{}, fmt.Errorf("claude api returned empty response")
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return completion{}, fmt.Errorf("claude api returned unexpected response type")
	}

	usage := entity.TokenUsage{
		Input:  int(message.Usage.InputTokens),
		Output: int(message.Usage.OutputTokens),
	}

	slog.InfoContext(ctx, "completion finished",
		slog.String("provider", c.Name()),
		slog.Int("input_tokens", usage.Input),
		slog.Int("output_tokens", usage.Output),
		slog.Duration("duration", duration))
	recordCompletion(c.Name(), "success", duration.Seconds())
	recordTokens(c.Name(), usage)

	return completion{text: textBlock.Text, usage: usage}, nil
}

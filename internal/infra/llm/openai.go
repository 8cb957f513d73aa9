package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"creator-insights/internal/domain/entity"
	"creator-insights/internal/resilience/circuitbreaker"
	"creator-insights/internal/resilience/retry"
	"creator-insights/internal/utils/text"
	pkgconfig "creator-insights/pkg/config"
)

// OpenAIConfig holds configuration for the OpenAI adapter.
type OpenAIConfig struct {
	// Model is the chat completion model identifier.
	Model string

	// MaxBudget caps the per-call output token budget.
	MaxBudget int
}

// LoadOpenAIConfig loads configuration from environment variables.
//
// Environment variables:
//   - LLM_OPENAI_MODEL: model identifier (default: gpt-4o-mini)
//   - LLM_MAX_BUDGET: output token cap per call (default: 8192)
func LoadOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:     pkgconfig.GetEnvString("LLM_OPENAI_MODEL", openai.GPT4oMini),
		MaxBudget: pkgconfig.GetEnvInt("LLM_MAX_BUDGET", 8192),
	}
}

// OpenAI implements Completer over the chat completions API with circuit
// breaker and retry protection.
type OpenAI struct {
	client      *openai.Client
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
	config      OpenAIConfig
}

// NewOpenAI creates an OpenAI adapter with the given API key.
func NewOpenAI(apiKey string) *OpenAI {
	config := LoadOpenAIConfig()

	slog.Info("initialized openai completer",
		slog.String("model", config.Model),
		slog.Int("max_budget", config.MaxBudget))

	return &OpenAI{
		client:      openai.NewClient(apiKey),
		breaker:     circuitbreaker.New(circuitbreaker.LLMProviderConfig()),
		retryConfig: retry.LLMAPIConfig(),
		config:      config,
	}
}

// Name identifies the provider in logs and metrics.
func (o *OpenAI) Name() string { return "openai" }

// Complete generates text for the prompt within the token budget.
func (o *OpenAI) Complete(ctx context.Context, prompt string, budget int) (string, entity.TokenUsage, error) {
	budget = normalizeBudget(budget)
	if budget > o.config.MaxBudget {
		budget = o.config.MaxBudget
	}

	var result completion
	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
			return o.doComplete(ctx, prompt, budget)
		})
		if err != nil {
			var depErr *circuitbreaker.DependencyError
			if errors.As(err, &depErr) {
				slog.Warn("openai circuit breaker open, request rejected",
					slog.String("provider", o.Name()),
					slog.String("state", o.breaker.State().String()))
			}
			return err
		}
		result = cbResult.(completion)
		return nil
	})
	if retryErr != nil {
		recordCompletion(o.Name(), "error", 0)
		return "", entity.TokenUsage{}, fmt.Errorf("openai completion failed: %w", retryErr)
	}

	return result.text, result.usage, nil
}

// doComplete performs one API call without retry or circuit breaker.
func (o *OpenAI) doComplete(ctx context.Context, prompt string, budget int) (completion, error) {
	truncated, wasTruncated := truncatePrompt(prompt, budget)
	if wasTruncated {
		slog.Warn("prompt truncated for openai api",
			slog.Int("original_length", len(prompt)),
			slog.Int("truncated_length", len(truncated)))
	}

	slog.DebugContext(ctx, "starting completion",
		slog.String("provider", o.Name()),
		slog.Int("prompt_length", text.CountRunes(truncated)),
		slog.Int("budget", budget))

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: budget,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: truncated,
		}},
	})
	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "completion failed",
			slog.String("provider", o.Name()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return completion{}, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return completion{}, fmt.Errorf("openai api returned empty response")
	}

	usage := entity.TokenUsage{
		Input:  resp.Usage.PromptTokens,
		Output: resp.Usage.CompletionTokens,
	}

	slog.InfoContext(ctx, "completion finished",
		slog.String("provider", o.Name()),
		slog.Int("input_tokens", usage.Input),
		slog.Int("output_tokens", usage.Output),
		slog.Duration("duration", duration))
	recordCompletion(o.Name(), "success", duration.Seconds())
	recordTokens(o.Name(), usage)

	return completion{text: resp.Choices[0].Message.Content, usage: usage}, nil
}

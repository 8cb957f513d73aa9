// Package llm adapts hosted model providers to the completion interface the
// analysis pipeline consumes. Adapters wrap every call with the LLM circuit
// breaker and retry profiles.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"creator-insights/internal/domain/entity"
	pkgconfig "creator-insights/pkg/config"
)

// Completer is the provider interface handlers and the router depend on.
// budget caps the completion's output tokens; the adapter also truncates
// oversized prompts proportionally.
type Completer interface {
	Complete(ctx context.Context, prompt string, budget int) (string, entity.TokenUsage, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// completion is the internal result passed back through the circuit breaker.
type completion struct {
	text  string
	usage entity.TokenUsage
}

const (
	// charsPerToken is the rough prompt sizing heuristic shared by both adapters.
	charsPerToken = 4

	// defaultBudget applies when a caller passes a non-positive budget.
	defaultBudget = 1024
)

// truncatePrompt trims a prompt that would blow past the input share of the
// token budget. The input share is four times the output budget, which keeps
// room for instructions plus pasted channel data.
func truncatePrompt(prompt string, budget int) (string, bool) {
	maxChars := budget * charsPerToken * 4
	if len(prompt) <= maxChars {
		return prompt, false
	}
	return prompt[:maxChars] + "\n(input truncated to fit token budget)", true
}

func normalizeBudget(budget int) int {
	if budget <= 0 {
		return defaultBudget
	}
	return budget
}

// NewFromEnv builds the configured provider adapter.
//
// Environment variables:
//   - LLM_PROVIDER: "claude" or "openai" (default: "claude")
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY: provider credentials
func NewFromEnv() (Completer, error) {
	provider := strings.ToLower(pkgconfig.GetEnvString("LLM_PROVIDER", "claude"))
	rps, burst := loadRateLimit()

	switch provider {
	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the claude provider")
		}
		return withRateLimit(NewClaude(apiKey), rps, burst), nil
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		return withRateLimit(NewOpenAI(apiKey), rps, burst), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", provider)
	}
}

package llm

import (
	"context"

	"golang.org/x/time/rate"

	"creator-insights/internal/domain/entity"
	pkgconfig "creator-insights/pkg/config"
)

// rateLimited paces outbound completions with a token bucket so parallel
// handlers cannot blow through the provider's request quota.
type rateLimited struct {
	inner   Completer
	limiter *rate.Limiter
}

// withRateLimit wraps a provider adapter with a request pacer. A non-positive
// rps returns the adapter unwrapped.
func withRateLimit(inner Completer, rps int, burst int) Completer {
	if rps <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// loadRateLimit reads the outbound pacing knobs.
//
// Environment variables:
//   - LLM_MAX_RPS: requests per second to the provider, 0 disables (default: 5)
//   - LLM_BURST: burst allowance (default: 10)
func loadRateLimit() (rps, burst int) {
	rps = pkgconfig.GetEnvInt("LLM_MAX_RPS", 5)
	burst = pkgconfig.GetEnvInt("LLM_BURST", 10)
	return rps, burst
}

func (r *rateLimited) Complete(ctx context.Context, prompt string, budget int) (string, entity.TokenUsage, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", entity.TokenUsage{}, err
	}
	return r.inner.Complete(ctx, prompt, budget)
}

func (r *rateLimited) Name() string {
	return r.inner.Name()
}

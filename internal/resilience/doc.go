// Package resilience holds the fault tolerance building blocks wrapped
// around every external dependency: per-dependency circuit breakers for the
// LLM providers, the video data API and the shared KV store, and retry with
// exponential backoff and jitter.
//
//	cb := circuitbreaker.New(circuitbreaker.LLMProviderConfig())
//	out, err := cb.Execute(ctx, func(ctx context.Context) (any, error) {
//	    return client.Complete(ctx, prompt)
//	})
//
//	err := retry.WithBackoff(ctx, retry.KVStoreConfig(), func() error {
//	    return store.Set(ctx, key, value, ttl)
//	})
package resilience

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"creator-insights/internal/cache"
	"creator-insights/internal/config"
	"creator-insights/internal/domain/entity"
	"creator-insights/internal/infra/llm"
)

// errDegradedResult marks a computation that produced a degraded result, which
// must never be cached.
var errDegradedResult = errors.New("degraded result not cacheable")

// analyzer holds the dependencies shared by all capability handlers and the
// common cache-gather-prompt-parse pipeline.
type analyzer struct {
	completer llm.Completer
	cache     *cache.Cache
	data      VideoDataClient
	cfg       *config.AnalysisConfig
}

// gathered is the data-collection output for one analysis.
type gathered struct {
	// Section is the evidence block inserted into the prompt.
	Section string

	// Completeness is the fraction of wanted data that was actually fetched.
	// Handler confidence is scaled down when data is missing.
	Completeness float64
}

// gatherFunc fetches the evidence for one domain. A gather error degrades the
// handler; partial data lowers completeness instead.
type gatherFunc func(ctx context.Context, in *AnalyzeInput) (*gathered, error)

// run is the shared handler pipeline: check the per-domain cache, otherwise
// gather evidence, query the model, parse, and cache the result. Degraded
// results are returned but never cached, so the next request retries.
func (a *analyzer) run(ctx context.Context, domain entity.Domain, in *AnalyzeInput, role string, gather gatherFunc) *entity.HandlerResult {
	start := time.Now()
	key := "result:" + in.Request.DomainFingerprint(domain, in.Depth)
	category := cache.CategoryFor(domain, in.Depth)

	var degraded *entity.HandlerResult
	value, info, err := a.cache.GetOrCompute(ctx, key, category, func(ctx context.Context) ([]byte, error) {
		result := a.compute(ctx, domain, in, role, gather)
		if result.Degraded {
			degraded = result
			return nil, errDegradedResult
		}
		return json.Marshal(result)
	})
	if err != nil {
		if degraded == nil {
			// A concurrent caller's shared computation degraded; report the
			// same condition for this request.
			degraded = entity.DegradedResult(domain, "analysis temporarily unavailable")
		}
		recordAnalysis(domain, "degraded", time.Since(start))
		return degraded
	}

	var result entity.HandlerResult
	if err := json.Unmarshal(value, &result); err != nil {
		slog.Warn("cached handler result unreadable, degrading",
			slog.String("domain", string(domain)),
			slog.Any("error", err))
		recordAnalysis(domain, "degraded", time.Since(start))
		return entity.DegradedResult(domain, "cached analysis unreadable")
	}
	if info.Hit {
		// Cached results already paid their tokens; do not bill them again.
		result.TokenUsage = entity.TokenUsage{}
		recordAnalysis(domain, "cache_hit", time.Since(start))
	} else {
		recordAnalysis(domain, "computed", time.Since(start))
	}
	return &result
}

// compute performs one uncached analysis.
func (a *analyzer) compute(ctx context.Context, domain entity.Domain, in *AnalyzeInput, role string, gather gatherFunc) *entity.HandlerResult {
	data, err := gather(ctx, in)
	if err != nil {
		slog.Warn("handler data gathering failed",
			slog.String("domain", string(domain)),
			slog.String("request_id", in.Request.ID),
			slog.Any("error", err))
		return entity.DegradedResult(domain, fmt.Sprintf("%s data unavailable", domain))
	}

	prompt := a.buildPrompt(domain, in, role, data)
	text, usage, err := a.completer.Complete(ctx, prompt, in.TokenBudget)
	if err != nil {
		slog.Warn("handler completion failed",
			slog.String("domain", string(domain)),
			slog.String("request_id", in.Request.ID),
			slog.Any("error", err))
		return entity.DegradedResult(domain, fmt.Sprintf("%s analysis unavailable", domain))
	}

	result := a.parseResult(domain, text, data.Completeness)
	result.TokenUsage = usage
	return result
}

// buildPrompt assembles the analysis prompt: role, evidence, prior-stage
// context, and one sub-task section per budget-split slice.
func (a *analyzer) buildPrompt(domain entity.Domain, in *AnalyzeInput, role string, data *gathered) string {
	var b strings.Builder
	b.WriteString(role)
	b.WriteString("\n\nCreator question: ")
	b.WriteString(in.Request.RawText)

	if data.Section != "" {
		b.WriteString("\n\nChannel data:\n")
		b.WriteString(data.Section)
	}

	for _, prior := range sortedPrior(in.Prior) {
		if prior.Degraded || prior.Summary == "" {
			continue
		}
		fmt.Fprintf(&b, "\n\nEarlier %s analysis: %s", prior.Domain, prior.Summary)
	}

	splits := a.cfg.BudgetSplit(domain)
	if len(splits) > 0 {
		b.WriteString("\n\nCover these aspects, weighted by effort:")
		for _, name := range sortedSplitNames(splits) {
			fmt.Fprintf(&b, "\n- %s (about %d tokens)", name, int(float64(in.TokenBudget)*splits[name]))
		}
	}

	b.WriteString("\n\nRespond with only a JSON object:\n")
	b.WriteString(`{"summary": "...", "confidence": 0.0-1.0, ` +
		`"insights": [{"text": "...", "metric": "...", "importance": 0.0-1.0}], ` +
		`"recommendations": [{"text": "...", "metric": "...", "direction": "increase|decrease", "confidence": 0.0-1.0}]}`)
	return b.String()
}

// modelResult is the JSON shape the analysis prompt requests.
type modelResult struct {
	Summary         string                  `json:"summary"`
	Confidence      float64                 `json:"confidence"`
	Insights        []entity.Insight        `json:"insights"`
	Recommendations []entity.Recommendation `json:"recommendations"`
}

// parseResult decodes the model output. Unparseable output is kept as a
// plain-text summary at reduced confidence rather than discarded.
func (a *analyzer) parseResult(domain entity.Domain, text string, completeness float64) *entity.HandlerResult {
	var mr modelResult
	if err := json.Unmarshal([]byte(extractJSON(text)), &mr); err != nil {
		return &entity.HandlerResult{
			Domain:      domain,
			Confidence:  clamp01(0.4 * completeness),
			Summary:     strings.TrimSpace(text),
			GeneratedAt: time.Now(),
		}
	}

	for i := range mr.Recommendations {
		mr.Recommendations[i].Domain = domain
		mr.Recommendations[i].Confidence = clamp01(mr.Recommendations[i].Confidence)
	}

	// Missing evidence caps confidence regardless of how sure the model sounds.
	confidence := clamp01(mr.Confidence) * (0.5 + 0.5*clamp01(completeness))

	return &entity.HandlerResult{
		Domain:          domain,
		Confidence:      confidence,
		Summary:         mr.Summary,
		Insights:        mr.Insights,
		Recommendations: mr.Recommendations,
		GeneratedAt:     time.Now(),
	}
}

func sortedPrior(prior map[entity.Domain]*entity.HandlerResult) []*entity.HandlerResult {
	out := make([]*entity.HandlerResult, 0, len(prior))
	for _, r := range prior {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

func sortedSplitNames(splits map[string]float64) []string {
	names := make([]string, 0, len(splits))
	for name := range splits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// extractJSON trims any prose the model wrapped around the JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

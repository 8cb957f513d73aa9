// Package synthesis merges per-domain handler results into one final response.
// It resolves conflicting recommendations, ranks the rest by domain impact,
// and labels which domains contributed, degraded, or were dropped.
package synthesis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"creator-insights/internal/config"
	"creator-insights/internal/domain/entity"
)

// Synthesizer builds the final response from handler results.
type Synthesizer struct {
	cfg *config.AnalysisConfig
	now func() time.Time
}

// New creates a synthesizer over the given tuning table.
func New(cfg *config.AnalysisConfig) *Synthesizer {
	return &Synthesizer{cfg: cfg, now: time.Now}
}

// Synthesize merges handler results into one response. Results below the
// confidence floor are dropped but named in the omitted list; degraded results
// are named separately. When nothing survives the response flags a domain
// mismatch instead of inventing an answer.
func (s *Synthesizer) Synthesize(results []*entity.HandlerResult) *entity.FinalResponse {
	resp := &entity.FinalResponse{
		DomainConfidence: make(map[entity.Domain]float64, len(results)),
		GeneratedAt:      s.now(),
	}

	var kept []*entity.HandlerResult
	for _, r := range results {
		if r == nil {
			continue
		}
		resp.TokenUsage = resp.TokenUsage.Add(r.TokenUsage)
		resp.DomainConfidence[r.Domain] = r.Confidence

		switch {
		case r.Degraded:
			resp.Degraded = append(resp.Degraded, r.Domain)
		case r.Confidence < s.cfg.Synthesis.ConfidenceFloor:
			resp.Omitted = append(resp.Omitted, r.Domain)
		default:
			kept = append(kept, r)
			resp.Contributed = append(resp.Contributed, r.Domain)
		}
	}

	if len(kept) == 0 {
		resp.DomainMismatch = true
		resp.Summary = "No analysis domain could answer this question confidently. " +
			"Try rephrasing or naming the channel explicitly."
		return resp
	}

	sortDomains(resp.Contributed)
	sortDomains(resp.Degraded)
	sortDomains(resp.Omitted)

	insights := collectInsights(kept)
	resp.Insights = insights
	resp.Recommendations = s.rankRecommendations(resolveConflicts(collectRecommendations(kept)))
	resp.Summary = s.buildSummary(kept, insights)
	return resp
}

// resolveConflicts keeps one active recommendation per metric: the
// highest-confidence one. The rest are marked superseded, whether they push
// the opposite direction (a conflict) or duplicate the winner's advice from
// another domain. SupersededBy always names the metric's final winner.
// Superseded entries are kept for transparency.
func resolveConflicts(recs []entity.Recommendation) []entity.Recommendation {
	winners := make(map[string]int, len(recs))
	for i, rec := range recs {
		if rec.Metric == "" {
			continue
		}
		j, ok := winners[rec.Metric]
		if !ok || rec.Confidence > recs[j].Confidence {
			winners[rec.Metric] = i
		}
	}
	for i, rec := range recs {
		if rec.Metric == "" {
			continue
		}
		if w := winners[rec.Metric]; w != i {
			recs[i].Superseded = true
			recs[i].SupersededBy = recs[w].Domain
		}
	}
	return recs
}

// rankRecommendations orders active recommendations by impact weight times
// confidence. Superseded entries sink to the end in their original order.
func (s *Synthesizer) rankRecommendations(recs []entity.Recommendation) []entity.Recommendation {
	score := func(r entity.Recommendation) float64 {
		return s.cfg.ImpactWeight(r.Domain) * r.Confidence
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Superseded != recs[j].Superseded {
			return !recs[i].Superseded
		}
		return score(recs[i]) > score(recs[j])
	})
	return recs
}

// buildSummary leads with the strongest domain's summary and appends the top
// insights across all contributing domains.
func (s *Synthesizer) buildSummary(kept []*entity.HandlerResult, insights []entity.Insight) string {
	lead := kept[0]
	for _, r := range kept[1:] {
		if s.cfg.ImpactWeight(r.Domain)*r.Confidence > s.cfg.ImpactWeight(lead.Domain)*lead.Confidence {
			lead = r
		}
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(lead.Summary))

	limit := s.cfg.Synthesis.MaxSummaryInsights
	if limit > len(insights) {
		limit = len(insights)
	}
	for _, insight := range insights[:limit] {
		fmt.Fprintf(&b, " %s.", strings.TrimRight(strings.TrimSpace(insight.Text), "."))
	}
	return b.String()
}

func collectInsights(kept []*entity.HandlerResult) []entity.Insight {
	var insights []entity.Insight
	for _, r := range kept {
		insights = append(insights, r.Insights...)
	}
	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Importance > insights[j].Importance
	})
	return insights
}

func collectRecommendations(kept []*entity.HandlerResult) []entity.Recommendation {
	var recs []entity.Recommendation
	for _, r := range kept {
		recs = append(recs, r.Recommendations...)
	}
	return recs
}

func sortDomains(domains []entity.Domain) {
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })
}

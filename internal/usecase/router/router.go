// Package router classifies inbound creator questions into analysis domains
// and builds the execution plan. Classification uses the LLM provider; when
// that fails it degrades to a static keyword table rather than failing the
// request outright.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"creator-insights/internal/config"
	"creator-insights/internal/domain/entity"
	"creator-insights/internal/infra/llm"
)

// classificationBudget caps the tokens spent on routing; classification output
// is small and the real budget belongs to the handlers.
const classificationBudget = 512

// Classification is the router's decision for one request.
type Classification struct {
	Domains    []entity.Domain      `json:"domains"`
	Depth      entity.AnalysisDepth `json:"depth"`
	Confidence float64              `json:"confidence"`

	// Params carries structured parameters the model extracted from the text.
	// Fields the caller supplied explicitly always win.
	Params entity.RequestContext `json:"params"`

	// Plan groups the selected domains into stages. Domains within a stage run
	// in parallel; a stage only starts after the previous one finished.
	Plan [][]entity.Domain `json:"plan"`

	// Fallback marks classifications produced by the keyword table.
	Fallback bool `json:"fallback,omitempty"`

	TokenUsage entity.TokenUsage `json:"token_usage"`
}

// domainDependencies declares which domains consume another domain's result.
// A dependent domain is planned into a later stage than its input.
var domainDependencies = map[entity.Domain]entity.Domain{
	// Competitive benchmarking compares against the channel's own content analysis.
	entity.DomainCompetitive: entity.DomainContent,
	// Monetization advice builds on audience composition.
	entity.DomainMonetization: entity.DomainAudience,
}

// Service is the request router.
type Service struct {
	completer llm.Completer
	cfg       *config.AnalysisConfig
}

// NewService creates a router over the given LLM provider and tuning table.
func NewService(completer llm.Completer, cfg *config.AnalysisConfig) *Service {
	return &Service{completer: completer, cfg: cfg}
}

// Classify maps a request to domains, depth, and an execution plan.
// The LLM classification is retried once; after that the static keyword table
// takes over. Below the confidence floor the request routes to general.
func (s *Service) Classify(ctx context.Context, req *entity.Request) (*Classification, error) {
	cls, err := s.classifyWithModel(ctx, req)
	if err != nil {
		slog.Warn("classification failed, retrying once",
			slog.String("request_id", req.ID),
			slog.Any("error", err))
		cls, err = s.classifyWithModel(ctx, req)
	}
	if err != nil {
		slog.Warn("classification failed twice, falling back to keyword table",
			slog.String("request_id", req.ID),
			slog.Any("error", err))
		recordClassification("keyword_fallback")
		cls = s.classifyWithKeywords(req)
	} else {
		recordClassification("model")
	}

	if cls.Confidence < s.cfg.Router.ConfidenceFloor {
		slog.Info("classification below confidence floor, routing to general",
			slog.String("request_id", req.ID),
			slog.Float64("confidence", cls.Confidence),
			slog.Float64("floor", s.cfg.Router.ConfidenceFloor))
		recordClassification("general_fallback")
		cls.Domains = []entity.Domain{entity.DomainGeneral}
	}

	// A declared intent pins the request to that domain regardless of what the
	// classifier thought.
	if req.DeclaredIntent != "" && req.DeclaredIntent.Valid() {
		cls.Domains = []entity.Domain{req.DeclaredIntent}
		cls.Confidence = 1.0
	}

	cls.Domains = dedupeDomains(cls.Domains)
	if len(cls.Domains) == 0 {
		cls.Domains = []entity.Domain{entity.DomainGeneral}
	}
	if !cls.Depth.Valid() {
		cls.Depth = entity.DepthStandard
	}
	mergeParams(&cls.Params, req.Context)
	cls.Plan = buildPlan(cls.Domains)

	return cls, nil
}

// modelClassification is the JSON shape the classification prompt requests.
type modelClassification struct {
	Domains       []string `json:"domains"`
	Depth         string   `json:"depth"`
	Confidence    float64  `json:"confidence"`
	ChannelID     string   `json:"channel_id"`
	TimeWindow    string   `json:"time_window"`
	VideoIDs      []string `json:"video_ids"`
	CompetitorIDs []string `json:"competitor_ids"`
}

func (s *Service) classifyWithModel(ctx context.Context, req *entity.Request) (*Classification, error) {
	text, usage, err := s.completer.Complete(ctx, buildClassificationPrompt(req), classificationBudget)
	if err != nil {
		return nil, fmt.Errorf("classification call: %w", err)
	}

	var mc modelClassification
	if err := json.Unmarshal([]byte(extractJSON(text)), &mc); err != nil {
		return nil, fmt.Errorf("parse classification: %w", err)
	}

	domains := make([]entity.Domain, 0, len(mc.Domains))
	for _, name := range mc.Domains {
		d := entity.Domain(strings.ToLower(strings.TrimSpace(name)))
		if d.Valid() && d != entity.DomainGeneral {
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("classification returned no usable domains")
	}

	depth := entity.AnalysisDepth(strings.ToLower(mc.Depth))
	if !depth.Valid() {
		depth = entity.DepthStandard
	}
	confidence := mc.Confidence
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("classification confidence %f out of range", confidence)
	}

	return &Classification{
		Domains:    domains,
		Depth:      depth,
		Confidence: confidence,
		Params: entity.RequestContext{
			ChannelID:     mc.ChannelID,
			TimeWindow:    mc.TimeWindow,
			VideoIDs:      mc.VideoIDs,
			CompetitorIDs: mc.CompetitorIDs,
		},
		TokenUsage: usage,
	}, nil
}

// classifyWithKeywords scores each domain by keyword hits in the normalized
// text. It cannot fail: zero hits route to the general domain.
func (s *Service) classifyWithKeywords(req *entity.Request) *Classification {
	text := " " + entity.NormalizeText(req.RawText) + " "

	best := 0
	scores := make(map[entity.Domain]int)
	for _, domain := range entity.AllDomains() {
		if domain == entity.DomainGeneral {
			continue
		}
		hits := 0
		for _, keyword := range s.cfg.Keywords(domain) {
			if strings.Contains(text, " "+keyword+" ") {
				hits++
			}
		}
		if hits > 0 {
			scores[domain] = hits
		}
		if hits > best {
			best = hits
		}
	}

	if best == 0 {
		return &Classification{
			Domains:    []entity.Domain{entity.DomainGeneral},
			Depth:      entity.DepthStandard,
			Confidence: 1.0,
			Fallback:   true,
		}
	}

	// Keep domains scoring at least half as well as the best match, so
	// multi-topic questions still fan out.
	var domains []entity.Domain
	for _, domain := range entity.AllDomains() {
		if hits, ok := scores[domain]; ok && hits*2 >= best {
			domains = append(domains, domain)
		}
	}

	confidence := 0.6
	if best >= 3 {
		confidence = 0.75
	}
	return &Classification{
		Domains:    domains,
		Depth:      entity.DepthStandard,
		Confidence: confidence,
		Fallback:   true,
	}
}

// buildPlan splits domains into dependency stages. Independent domains land in
// the first stage; a domain whose declared input is also selected runs after it.
func buildPlan(domains []entity.Domain) [][]entity.Domain {
	selected := make(map[entity.Domain]bool, len(domains))
	for _, d := range domains {
		selected[d] = true
	}

	var first, second []entity.Domain
	for _, d := range domains {
		if input, ok := domainDependencies[d]; ok && selected[input] {
			second = append(second, d)
			continue
		}
		first = append(first, d)
	}

	plan := [][]entity.Domain{first}
	if len(second) > 0 {
		plan = append(plan, second)
	}
	return plan
}

func buildClassificationPrompt(req *entity.Request) string {
	var b strings.Builder
	b.WriteString("You route questions from YouTube creators to analysis domains.\n")
	b.WriteString("Domains: content, audience, seo, competitive, monetization.\n")
	b.WriteString("Depths: quick (one-liner answer), standard, deep (full audit).\n\n")
	b.WriteString("Respond with only a JSON object:\n")
	b.WriteString(`{"domains": [...], "depth": "...", "confidence": 0.0-1.0, "channel_id": "", "time_window": "", "video_ids": [], "competitor_ids": []}`)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(req.RawText)
	if req.Context.ChannelID != "" {
		b.WriteString("\nChannel: ")
		b.WriteString(req.Context.ChannelID)
	}
	return b.String()
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

func dedupeDomains(in []entity.Domain) []entity.Domain {
	seen := make(map[entity.Domain]bool, len(in))
	out := make([]entity.Domain, 0, len(in))
	for _, d := range in {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// mergeParams fills extracted parameters into the request context, never
// overwriting caller-supplied values.
func mergeParams(extracted *entity.RequestContext, supplied entity.RequestContext) {
	if supplied.ChannelID != "" {
		extracted.ChannelID = supplied.ChannelID
	}
	if supplied.TimeWindow != "" {
		extracted.TimeWindow = supplied.TimeWindow
	}
	if len(supplied.VideoIDs) > 0 {
		extracted.VideoIDs = supplied.VideoIDs
	}
	if len(supplied.CompetitorIDs) > 0 {
		extracted.CompetitorIDs = supplied.CompetitorIDs
	}
}

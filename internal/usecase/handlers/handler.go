// Package handlers contains the capability handlers that produce per-domain
// analyses. Every handler returns a uniform HandlerResult; a failing handler
// degrades to a zero-confidence result instead of failing the whole request.
package handlers

import (
	"context"
	"strings"

	"creator-insights/internal/cache"
	"creator-insights/internal/config"
	"creator-insights/internal/domain/entity"
	"creator-insights/internal/infra/llm"
	"creator-insights/internal/infra/youtube"
)

// VideoDataClient is the subset of the video data API the handlers consume.
type VideoDataClient interface {
	GetChannelStats(ctx context.Context, channelID string) (*youtube.ChannelStats, error)
	GetComments(ctx context.Context, channelID string, limit int) ([]youtube.Comment, error)
	GetVideoStats(ctx context.Context, videoIDs []string) ([]youtube.VideoStats, error)
}

// AnalyzeInput carries everything a handler needs for one analysis run.
type AnalyzeInput struct {
	Request *entity.Request
	Depth   entity.AnalysisDepth

	// TokenBudget is this handler's share of the request budget.
	TokenBudget int

	// Prior holds results from earlier plan stages, keyed by domain.
	// Handlers that build on another domain's output read it from here.
	Prior map[entity.Domain]*entity.HandlerResult
}

// Handler is one capability handler.
type Handler interface {
	// Domain returns the analysis domain this handler owns.
	Domain() entity.Domain

	// DomainMatch reports whether the request plausibly belongs to this
	// handler's domain. The orchestrator uses it as a misrouting guard.
	DomainMatch(req *entity.Request) bool

	// Analyze runs the analysis. It never returns an error: upstream failures
	// produce a degraded result so the synthesizer can still answer partially.
	Analyze(ctx context.Context, in *AnalyzeInput) *entity.HandlerResult
}

// Registry holds the handler for each domain plus the general fallback.
type Registry struct {
	handlers map[entity.Domain]Handler
	general  Handler
}

// NewRegistry wires all capability handlers over the shared dependencies.
func NewRegistry(completer llm.Completer, resultCache *cache.Cache, data VideoDataClient, cfg *config.AnalysisConfig) *Registry {
	a := &analyzer{
		completer: completer,
		cache:     resultCache,
		data:      data,
		cfg:       cfg,
	}

	general := &GeneralHandler{analyzer: a}
	r := &Registry{
		handlers: make(map[entity.Domain]Handler),
		general:  general,
	}
	for _, h := range []Handler{
		&ContentHandler{analyzer: a},
		&AudienceHandler{analyzer: a},
		&SEOHandler{analyzer: a},
		&CompetitiveHandler{analyzer: a},
		&MonetizationHandler{analyzer: a},
		general,
	} {
		r.handlers[h.Domain()] = h
	}
	return r
}

// Handler returns the handler for a domain.
func (r *Registry) Handler(domain entity.Domain) (Handler, bool) {
	h, ok := r.handlers[domain]
	return h, ok
}

// General returns the fallback handler.
func (r *Registry) General() Handler {
	return r.general
}

// keywordMatch reports whether the normalized request text contains any of the
// domain's keywords, or the caller declared this domain outright.
func keywordMatch(cfg *config.AnalysisConfig, domain entity.Domain, req *entity.Request) bool {
	if req.DeclaredIntent == domain {
		return true
	}
	text := " " + entity.NormalizeText(req.RawText) + " "
	for _, keyword := range cfg.Keywords(domain) {
		if strings.Contains(text, " "+keyword+" ") {
			return true
		}
	}
	return false
}

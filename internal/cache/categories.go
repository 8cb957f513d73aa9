package cache

import (
	"time"

	"creator-insights/internal/domain/entity"
)

// Category determines the TTL a cached value receives at write time.
type Category string

const (
	// Depth categories cover full analysis responses.
	CategoryQuick    Category = "quick"
	CategoryStandard Category = "standard"
	CategoryDeep     Category = "deep"

	// Domain categories cover per-capability intermediate results whose
	// underlying signals move slower than general channel data.
	CategorySEO         Category = "seo"
	CategoryCompetitive Category = "competitive"
)

// DefaultTTLs is the static TTL table. Deeper analyses cost more to recompute
// and age slower, so they keep longer TTLs. SEO signals shift on the order of
// days and competitive standings even slower.
func DefaultTTLs() map[Category]time.Duration {
	return map[Category]time.Duration{
		CategoryQuick:       30 * time.Minute,
		CategoryStandard:    2 * time.Hour,
		CategoryDeep:        4 * time.Hour,
		CategorySEO:         6 * time.Hour,
		CategoryCompetitive: 12 * time.Hour,
	}
}

// CategoryFor maps a domain and analysis depth to the TTL category used when
// caching that result. Domain categories win over depth categories.
func CategoryFor(domain entity.Domain, depth entity.AnalysisDepth) Category {
	switch domain {
	case entity.DomainSEO:
		return CategorySEO
	case entity.DomainCompetitive:
		return CategoryCompetitive
	}
	return CategoryForDepth(depth)
}

// CategoryForDepth maps an analysis depth to its TTL category.
func CategoryForDepth(depth entity.AnalysisDepth) Category {
	switch depth {
	case entity.DepthQuick:
		return CategoryQuick
	case entity.DepthDeep:
		return CategoryDeep
	}
	return CategoryStandard
}

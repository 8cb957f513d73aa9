// Package config loads service configuration. Analysis tuning (weights,
// budgets, keyword tables) comes from a YAML file; operational knobs come from
// environment variables with warn-and-fallback semantics.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"creator-insights/internal/domain/entity"
)

// RouterConfig tunes request classification.
type RouterConfig struct {
	// ConfidenceFloor routes classifications below it to the general handler.
	ConfidenceFloor float64 `yaml:"confidence_floor"`
}

// SynthesisConfig tunes result merging.
type SynthesisConfig struct {
	// ConfidenceFloor drops handler results below it before ranking.
	ConfidenceFloor float64 `yaml:"confidence_floor"`

	// MaxSummaryInsights caps how many top insights feed the summary paragraph.
	MaxSummaryInsights int `yaml:"max_summary_insights"`
}

// DomainConfig tunes one capability domain.
type DomainConfig struct {
	// ImpactWeight scales this domain's insights during ranking.
	ImpactWeight float64 `yaml:"impact_weight"`

	// Keywords drive the static fallback classifier when the LLM is unavailable.
	Keywords []string `yaml:"keywords"`

	// BudgetSplit divides the handler's token budget across its sub-tasks.
	// Fractions must sum to 1.0.
	BudgetSplit map[string]float64 `yaml:"budget_split"`
}

// AnalysisConfig is the full analysis tuning table.
type AnalysisConfig struct {
	Router    RouterConfig    `yaml:"router"`
	Synthesis SynthesisConfig `yaml:"synthesis"`

	// Budgets maps analysis depth to the total token budget for the request.
	Budgets map[string]int `yaml:"budgets"`

	Domains map[string]DomainConfig `yaml:"domains"`
}

// DefaultAnalysisConfig returns the built-in tuning table. It is used as-is
// when no analysis.yaml is deployed, and as the base that a deployed file
// overrides section by section.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		Router: RouterConfig{
			ConfidenceFloor: 0.55,
		},
		Synthesis: SynthesisConfig{
			ConfidenceFloor:    0.3,
			MaxSummaryInsights: 3,
		},
		Budgets: map[string]int{
			string(entity.DepthQuick):    2000,
			string(entity.DepthStandard): 6000,
			string(entity.DepthDeep):     16000,
		},
		Domains: map[string]DomainConfig{
			string(entity.DomainContent): {
				ImpactWeight: 1.0,
				Keywords: []string{
					"video", "videos", "title", "titles", "thumbnail", "thumbnails",
					"upload", "schedule", "content", "ideas", "topic", "topics",
					"format", "shorts", "length", "hook", "intro",
				},
				BudgetSplit: map[string]float64{
					"performance": 0.5,
					"ideation":    0.3,
					"formatting":  0.2,
				},
			},
			string(entity.DomainAudience): {
				ImpactWeight: 0.9,
				Keywords: []string{
					"audience", "viewers", "subscribers", "demographics", "comments",
					"community", "engagement", "retention", "sentiment", "fans",
				},
				BudgetSplit: map[string]float64{
					"sentiment":    0.5,
					"demographics": 0.25,
					"behavior":     0.2,
					"formatting":   0.05,
				},
			},
			string(entity.DomainSEO): {
				ImpactWeight: 0.8,
				Keywords: []string{
					"seo", "search", "ranking", "keywords", "tags", "description",
					"descriptions", "discoverability", "suggested", "algorithm", "impressions",
				},
				BudgetSplit: map[string]float64{
					"keywords": 0.6,
					"metadata": 0.4,
				},
			},
			string(entity.DomainCompetitive): {
				ImpactWeight: 0.7,
				Keywords: []string{
					"competitor", "competitors", "competition", "niche", "channels",
					"compare", "comparison", "benchmark", "market", "similar",
				},
				BudgetSplit: map[string]float64{
					"benchmark": 0.7,
					"gaps":      0.3,
				},
			},
			string(entity.DomainMonetization): {
				ImpactWeight: 0.85,
				Keywords: []string{
					"revenue", "money", "monetization", "monetize", "sponsorship",
					"sponsorships", "cpm", "rpm", "adsense", "memberships", "earnings", "income",
				},
				BudgetSplit: map[string]float64{
					"revenue_streams": 0.6,
					"optimization":    0.4,
				},
			},
		},
	}
}

// LoadAnalysisConfig loads the tuning table from a YAML file, applying
// defaults for any section the file omits. A missing file is not an error;
// the built-in defaults are returned.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cfg := DefaultAnalysisConfig()

	// #nosec G304 -- path comes from CLI arg or deployment config, not user input
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read analysis config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse analysis config: %w", err)
	}

	// YAML decodes map values from their zero value, so a file that tunes one
	// field of a domain would otherwise drop the rest of its defaults.
	for name, def := range DefaultAnalysisConfig().Domains {
		dc, ok := cfg.Domains[name]
		if !ok {
			cfg.Domains[name] = def
			continue
		}
		if dc.ImpactWeight == 0 {
			dc.ImpactWeight = def.ImpactWeight
		}
		if len(dc.Keywords) == 0 {
			dc.Keywords = def.Keywords
		}
		if len(dc.BudgetSplit) == 0 {
			dc.BudgetSplit = def.BudgetSplit
		}
		cfg.Domains[name] = dc
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("analysis config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the tuning table for internally consistent values.
func (c *AnalysisConfig) Validate() error {
	if c.Router.ConfidenceFloor < 0 || c.Router.ConfidenceFloor > 1 {
		return fmt.Errorf("router confidence_floor must be between 0.0 and 1.0")
	}
	if c.Synthesis.ConfidenceFloor < 0 || c.Synthesis.ConfidenceFloor > 1 {
		return fmt.Errorf("synthesis confidence_floor must be between 0.0 and 1.0")
	}
	if c.Synthesis.MaxSummaryInsights <= 0 {
		return fmt.Errorf("synthesis max_summary_insights must be positive")
	}

	for depth, budget := range c.Budgets {
		if !entity.AnalysisDepth(depth).Valid() {
			return fmt.Errorf("unknown analysis depth %q in budgets", depth)
		}
		if budget <= 0 {
			return fmt.Errorf("budget for depth %q must be positive", depth)
		}
	}

	for name, domain := range c.Domains {
		if !entity.Domain(name).Valid() {
			return fmt.Errorf("unknown domain %q", name)
		}
		if domain.ImpactWeight <= 0 {
			return fmt.Errorf("impact_weight for domain %q must be positive", name)
		}
		if len(domain.BudgetSplit) > 0 {
			sum := 0.0
			for _, fraction := range domain.BudgetSplit {
				sum += fraction
			}
			if sum < 0.999 || sum > 1.001 {
				return fmt.Errorf("budget_split for domain %q must sum to 1.0, got %.3f", name, sum)
			}
		}
	}
	return nil
}

// ImpactWeight returns the ranking weight for a domain, defaulting to 1.0 for
// domains the table does not tune (e.g. general).
func (c *AnalysisConfig) ImpactWeight(domain entity.Domain) float64 {
	if dc, ok := c.Domains[string(domain)]; ok {
		return dc.ImpactWeight
	}
	return 1.0
}

// Keywords returns the fallback classifier keywords for a domain.
func (c *AnalysisConfig) Keywords(domain entity.Domain) []string {
	return c.Domains[string(domain)].Keywords
}

// BudgetSplit returns the sub-task split for a domain's handler.
func (c *AnalysisConfig) BudgetSplit(domain entity.Domain) map[string]float64 {
	return c.Domains[string(domain)].BudgetSplit
}

// TokenBudget returns the total token budget for an analysis depth.
func (c *AnalysisConfig) TokenBudget(depth entity.AnalysisDepth) int {
	if budget, ok := c.Budgets[string(depth)]; ok {
		return budget
	}
	return c.Budgets[string(entity.DepthStandard)]
}

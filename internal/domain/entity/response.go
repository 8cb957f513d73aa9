package entity

import "time"

// FinalResponse is the synthesized answer assembled from handler results.
// Partial results are labeled, never silently dropped: contributing, degraded,
// and omitted domains are all listed.
type FinalResponse struct {
	Summary          string             `json:"summary"`
	Insights         []Insight          `json:"insights"`
	Recommendations  []Recommendation   `json:"recommendations"`
	DomainConfidence map[Domain]float64 `json:"domain_confidence"`
	Contributed      []Domain           `json:"domains_contributed"`
	Degraded         []Domain           `json:"domains_degraded,omitempty"`
	Omitted          []Domain           `json:"domains_omitted,omitempty"`
	DomainMismatch   bool               `json:"domain_mismatch,omitempty"`
	TokenUsage       TokenUsage         `json:"token_usage"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

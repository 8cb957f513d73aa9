package entity

import "time"

// ActionDirection is the direction a recommendation pushes a metric.
type ActionDirection string

const (
	// DirectionIncrease recommends raising the metric (e.g. upload frequency).
	DirectionIncrease ActionDirection = "increase"
	// DirectionDecrease recommends lowering the metric.
	DirectionDecrease ActionDirection = "decrease"
)

// Opposes reports whether two directions conflict.
func (d ActionDirection) Opposes(other ActionDirection) bool {
	return (d == DirectionIncrease && other == DirectionDecrease) ||
		(d == DirectionDecrease && other == DirectionIncrease)
}

// Insight is a single observation produced by a capability handler.
type Insight struct {
	Text       string  `json:"text"`
	Metric     string  `json:"metric,omitempty"`
	Importance float64 `json:"importance"`
}

// Recommendation is an actionable suggestion tied to a metric.
// Superseded recommendations are kept for transparency but excluded from ranking.
type Recommendation struct {
	Text         string          `json:"text"`
	Metric       string          `json:"metric"`
	Direction    ActionDirection `json:"direction"`
	Confidence   float64         `json:"confidence"`
	Domain       Domain          `json:"domain"`
	Superseded   bool            `json:"superseded,omitempty"`
	SupersededBy Domain          `json:"superseded_by,omitempty"`
}

// TokenUsage records model token consumption for one operation.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Add returns the element-wise sum of two usages.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{Input: u.Input + other.Input, Output: u.Output + other.Output}
}

// HandlerResult is the uniform output of every capability handler.
// Once returned it is owned exclusively by the synthesizer and never mutated
// by the producing handler.
type HandlerResult struct {
	Domain          Domain             `json:"domain"`
	Confidence      float64            `json:"confidence"`
	Summary         string             `json:"summary"`
	Insights        []Insight          `json:"insights"`
	Recommendations []Recommendation   `json:"recommendations"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
	TokenUsage      TokenUsage         `json:"token_usage"`
	Degraded        bool               `json:"degraded,omitempty"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// DegradedResult builds the zero-confidence result a handler returns when its
// upstream dependency failed. The synthesizer can still produce a partial answer
// from the remaining domains.
func DegradedResult(domain Domain, reason string) *HandlerResult {
	return &HandlerResult{
		Domain:      domain,
		Confidence:  0,
		Summary:     reason,
		Degraded:    true,
		GeneratedAt: time.Now(),
	}
}

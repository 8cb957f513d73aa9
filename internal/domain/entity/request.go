// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Request, HandlerResult, Session and
// Task, along with their validation rules and domain-specific errors.
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// AnalysisDepth controls how thorough an analysis run is.
// Depth drives both the token budget and the cache TTL category.
type AnalysisDepth string

const (
	// DepthQuick is a fast, shallow analysis (short TTL, small token budget).
	DepthQuick AnalysisDepth = "quick"
	// DepthStandard is the default analysis depth.
	DepthStandard AnalysisDepth = "standard"
	// DepthDeep is an exhaustive analysis, typically run asynchronously.
	DepthDeep AnalysisDepth = "deep"
)

// Valid reports whether the depth is one of the known values.
func (d AnalysisDepth) Valid() bool {
	switch d {
	case DepthQuick, DepthStandard, DepthDeep:
		return true
	}
	return false
}

// TokenBudget caps the model tokens a request may consume.
type TokenBudget struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// RequestContext carries the structured channel context extracted from or
// supplied alongside a creator question.
type RequestContext struct {
	ChannelID     string   `json:"channel_id"`
	TimeWindow    string   `json:"time_window,omitempty"`
	VideoIDs      []string `json:"video_ids,omitempty"`
	CompetitorIDs []string `json:"competitor_ids,omitempty"`
}

// Request represents one inbound analysis request. It is immutable once created;
// callers derive cache keys from Fingerprint rather than mutating the request.
type Request struct {
	ID             string
	RawText        string
	UserID         string
	DeclaredIntent Domain
	Context        RequestContext
	TokenBudget    TokenBudget
	SubmittedAt    time.Time
}

// Fingerprint returns a stable hash identifying this request as a cacheable unit
// of work. Two requests with the same normalized text, context, selected domains
// and depth share a fingerprint.
func (r *Request) Fingerprint(domains []Domain, depth AnalysisDepth) string {
	names := make([]string, 0, len(domains))
	for _, d := range domains {
		names = append(names, string(d))
	}
	sort.Strings(names)

	h := sha256.New()
	fmt.Fprintf(h, "text=%s\n", NormalizeText(r.RawText))
	fmt.Fprintf(h, "channel=%s\n", r.Context.ChannelID)
	fmt.Fprintf(h, "window=%s\n", r.Context.TimeWindow)
	fmt.Fprintf(h, "videos=%s\n", strings.Join(sortedCopy(r.Context.VideoIDs), ","))
	fmt.Fprintf(h, "competitors=%s\n", strings.Join(sortedCopy(r.Context.CompetitorIDs), ","))
	fmt.Fprintf(h, "domains=%s\n", strings.Join(names, ","))
	fmt.Fprintf(h, "depth=%s\n", depth)
	return hex.EncodeToString(h.Sum(nil))
}

// DomainFingerprint returns the fingerprint scoped to a single domain.
// Handlers use this so a cached audience analysis is reusable even when the
// surrounding request touched additional domains.
func (r *Request) DomainFingerprint(domain Domain, depth AnalysisDepth) string {
	return r.Fingerprint([]Domain{domain}, depth)
}

// NormalizeText lowercases and collapses whitespace so trivially different
// phrasings of the same question hash identically.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

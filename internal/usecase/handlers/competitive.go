package handlers

import (
	"context"
	"fmt"
	"strings"

	"creator-insights/internal/domain/entity"
)

// maxCompetitors bounds how many competitor channels one analysis compares.
const maxCompetitors = 5

// CompetitiveHandler benchmarks the channel against competitor channels.
// It runs after the content handler when both are selected and folds that
// result into its prompt.
type CompetitiveHandler struct {
	*analyzer
}

func (h *CompetitiveHandler) Domain() entity.Domain { return entity.DomainCompetitive }

func (h *CompetitiveHandler) DomainMatch(req *entity.Request) bool {
	return keywordMatch(h.cfg, entity.DomainCompetitive, req) || len(req.Context.CompetitorIDs) > 0
}

func (h *CompetitiveHandler) Analyze(ctx context.Context, in *AnalyzeInput) *entity.HandlerResult {
	const role = "You are a YouTube market analyst. Benchmark this channel against " +
		"its competitors and identify gaps and opportunities in the niche."
	return h.run(ctx, entity.DomainCompetitive, in, role, h.gather)
}

func (h *CompetitiveHandler) gather(ctx context.Context, in *AnalyzeInput) (*gathered, error) {
	competitorIDs := in.Request.Context.CompetitorIDs
	if len(competitorIDs) > maxCompetitors {
		competitorIDs = competitorIDs[:maxCompetitors]
	}

	var (
		sections  []string
		attempted int
		fetched   int
	)

	if channelID := in.Request.Context.ChannelID; channelID != "" {
		attempted++
		stats, err := h.data.GetChannelStats(ctx, channelID)
		if err == nil {
			fetched++
			sections = append(sections, "Own channel: "+formatChannelStats(stats))
		}
	}

	for _, id := range competitorIDs {
		attempted++
		stats, err := h.data.GetChannelStats(ctx, id)
		if err != nil {
			continue
		}
		fetched++
		sections = append(sections, "Competitor: "+formatChannelStats(stats))
	}

	if attempted > 0 && fetched == 0 {
		return nil, fmt.Errorf("no channel data reachable")
	}
	return &gathered{
		Section:      strings.Join(sections, "\n"),
		Completeness: completeness(fetched, attempted),
	}, nil
}

package handlers

import (
	"context"
	"fmt"
	"strings"

	"creator-insights/internal/domain/entity"
)

// MonetizationHandler analyzes revenue levers. It runs after the audience
// handler when both are selected, since sponsorship and membership advice
// depends on who actually watches.
type MonetizationHandler struct {
	*analyzer
}

func (h *MonetizationHandler) Domain() entity.Domain { return entity.DomainMonetization }

func (h *MonetizationHandler) DomainMatch(req *entity.Request) bool {
	return keywordMatch(h.cfg, entity.DomainMonetization, req)
}

func (h *MonetizationHandler) Analyze(ctx context.Context, in *AnalyzeInput) *entity.HandlerResult {
	const role = "You are a YouTube monetization advisor. Analyze this channel's " +
		"revenue potential across ads, sponsorships, and memberships."
	return h.run(ctx, entity.DomainMonetization, in, role, h.gather)
}

func (h *MonetizationHandler) gather(ctx context.Context, in *AnalyzeInput) (*gathered, error) {
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
			sections = append(sections, formatChannelStats(stats))
		}
	}

	if videoIDs := in.Request.Context.VideoIDs; len(videoIDs) > 0 {
		attempted++
		videos, err := h.data.GetVideoStats(ctx, videoIDs)
		if err == nil {
			fetched++
			sections = append(sections, formatVideoStats(videos))
		}
	}

	if attempted > 0 && fetched == 0 {
		return nil, fmt.Errorf("no channel data reachable")
	}
	return &gathered{
		Section:      strings.Join(sections, "\n"),
		Completeness: completeness(fetched, attempted),
	}, nil
}

package handlers

import (
	"context"
	"fmt"
	"strings"

	"creator-insights/internal/domain/entity"
)

// SEOHandler analyzes discoverability: titles, metadata, and search reach.
type SEOHandler struct {
	*analyzer
}

func (h *SEOHandler) Domain() entity.Domain { return entity.DomainSEO }

func (h *SEOHandler) DomainMatch(req *entity.Request) bool {
	return keywordMatch(h.cfg, entity.DomainSEO, req)
}

func (h *SEOHandler) Analyze(ctx context.Context, in *AnalyzeInput) *entity.HandlerResult {
	const role = "You are a YouTube SEO specialist. Analyze how discoverable this " +
		"channel's videos are and how titles, descriptions, and tags could rank better."
	return h.run(ctx, entity.DomainSEO, in, role, h.gather)
}

func (h *SEOHandler) gather(ctx context.Context, in *AnalyzeInput) (*gathered, error) {
	var (
		sections  []string
		attempted int
		fetched   int
	)

	if videoIDs := in.Request.Context.VideoIDs; len(videoIDs) > 0 {
		attempted++
		videos, err := h.data.GetVideoStats(ctx, videoIDs)
		if err == nil {
			fetched++
			var b strings.Builder
			b.WriteString("Video titles and reach:")
			for _, v := range videos {
				fmt.Fprintf(&b, "\n- %q: %d views", v.Title, v.Views)
			}
			sections = append(sections, b.String())
		}
	}

	if channelID := in.Request.Context.ChannelID; channelID != "" {
		attempted++
		stats, err := h.data.GetChannelStats(ctx, channelID)
		if err == nil {
			fetched++
			sections = append(sections, formatChannelStats(stats))
		}
	}

	if attempted > 0 && fetched == 0 {
		return nil, fmt.Errorf("no metadata reachable")
	}
	return &gathered{
		Section:      strings.Join(sections, "\n"),
		Completeness: completeness(fetched, attempted),
	}, nil
}

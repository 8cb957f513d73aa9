package handlers

import (
	"context"
	"fmt"
	"strings"

	"creator-insights/internal/domain/entity"
	"creator-insights/internal/infra/youtube"
)

// ContentHandler analyzes video performance, topics, and formats.
type ContentHandler struct {
	*analyzer
}

func (h *ContentHandler) Domain() entity.Domain { return entity.DomainContent }

func (h *ContentHandler) DomainMatch(req *entity.Request) bool {
	return keywordMatch(h.cfg, entity.DomainContent, req)
}

func (h *ContentHandler) Analyze(ctx context.Context, in *AnalyzeInput) *entity.HandlerResult {
	const role = "You are a YouTube content strategist. Analyze the channel's video " +
		"performance, topics, and formats, and suggest concrete content changes."
	return h.run(ctx, entity.DomainContent, in, role, h.gather)
}

func (h *ContentHandler) gather(ctx context.Context, in *AnalyzeInput) (*gathered, error) {
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

func formatChannelStats(stats *youtube.ChannelStats) string {
	return fmt.Sprintf("Channel %q: %d subscribers, %d total views, %d videos.",
		stats.Title, stats.Subscribers, stats.TotalViews, stats.VideoCount)
}

func formatVideoStats(videos []youtube.VideoStats) string {
	var b strings.Builder
	b.WriteString("Recent videos:")
	for _, v := range videos {
		fmt.Fprintf(&b, "\n- %q (%s): %d views, %d likes, %d comments",
			v.Title, v.PublishedAt.Format("2006-01-02"), v.Views, v.Likes, v.Comments)
	}
	return b.String()
}

// completeness is the fetched/attempted ratio. Nothing to attempt counts as
// zero so generic answers carry low confidence.
func completeness(fetched, attempted int) float64 {
	if attempted == 0 {
		return 0
	}
	return float64(fetched) / float64(attempted)
}

package handlers

import (
	"context"
	"fmt"
	"strings"

	"creator-insights/internal/domain/entity"
	"creator-insights/internal/infra/youtube"
)

// commentSampleSize bounds how many recent comments feed the sentiment section.
const commentSampleSize = 50

// AudienceHandler analyzes viewer composition, sentiment, and engagement.
type AudienceHandler struct {
	*analyzer
}

func (h *AudienceHandler) Domain() entity.Domain { return entity.DomainAudience }

func (h *AudienceHandler) DomainMatch(req *entity.Request) bool {
	return keywordMatch(h.cfg, entity.DomainAudience, req)
}

func (h *AudienceHandler) Analyze(ctx context.Context, in *AnalyzeInput) *entity.HandlerResult {
	const role = "You are a YouTube audience analyst. Analyze who watches this channel, " +
		"how they feel about it, and how engaged they are."
	return h.run(ctx, entity.DomainAudience, in, role, h.gather)
}

func (h *AudienceHandler) gather(ctx context.Context, in *AnalyzeInput) (*gathered, error) {
	channelID := in.Request.Context.ChannelID
	if channelID == "" {
		return &gathered{}, nil
	}

	var (
		sections  []string
		attempted = 2
		fetched   int
	)

	stats, err := h.data.GetChannelStats(ctx, channelID)
	if err == nil {
		fetched++
		sections = append(sections, formatChannelStats(stats))
	}

	comments, err := h.data.GetComments(ctx, channelID, commentSampleSize)
	if err == nil {
		fetched++
		sections = append(sections, formatComments(comments))
	}

	if fetched == 0 {
		return nil, fmt.Errorf("no audience data reachable")
	}
	return &gathered{
		Section:      strings.Join(sections, "\n"),
		Completeness: completeness(fetched, attempted),
	}, nil
}

func formatComments(comments []youtube.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recent comments (%d):", len(comments))
	for _, c := range comments {
		fmt.Fprintf(&b, "\n- %s (%d likes): %s", c.Author, c.LikeCount, c.Text)
	}
	return b.String()
}

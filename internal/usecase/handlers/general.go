package handlers

import (
	"context"

	"creator-insights/internal/domain/entity"
)

// GeneralHandler is the fallback for questions no specialist domain claims.
// It answers directly from the question without fetching channel data.
type GeneralHandler struct {
	*analyzer
}

func (h *GeneralHandler) Domain() entity.Domain { return entity.DomainGeneral }

// DomainMatch always matches; general is the catch-all.
func (h *GeneralHandler) DomainMatch(_ *entity.Request) bool { return true }

func (h *GeneralHandler) Analyze(ctx context.Context, in *AnalyzeInput) *entity.HandlerResult {
	const role = "You are a YouTube creator coach. Answer the question with practical, " +
		"general guidance, and say explicitly when a proper answer needs channel data."
	return h.run(ctx, entity.DomainGeneral, in, role, h.gather)
}

func (h *GeneralHandler) gather(_ context.Context, _ *AnalyzeInput) (*gathered, error) {
	// No data dependencies; full completeness so the model's own confidence stands.
	return &gathered{Completeness: 1}, nil
}

// Package ops exposes operational endpoints for the cache, session store, and
// task queue. All routes are protected; they exist for dashboards and manual
// intervention, not for end users.
package ops

import (
	"log/slog"
	"net/http"
	"time"

	"creator-insights/internal/cache"
	"creator-insights/internal/handler/http/requestid"
	"creator-insights/internal/handler/http/respond"
	"creator-insights/internal/session"
	"creator-insights/internal/taskqueue"

	httpmetrics "creator-insights/internal/handler/http"
)

// Handler serves the operational endpoints.
type Handler struct {
	Cache    *cache.Cache
	Sessions *session.Store
	Queue    *taskqueue.Queue
}

type sweepResponse struct {
	Purged     int     `json:"purged"`
	DurationMS float64 `json:"duration_ms"`
}

type queueStatsResponse struct {
	Depth int `json:"depth"`
}

// CacheStats reports cache effectiveness counters.
//
// @Summary      Cache statistics
// @Tags         ops
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} cache.Stats
// @Router       /ops/cache/stats [get]
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.Cache.Stats()
	httpmetrics.UpdateCacheEntries(stats.Size)
	respond.JSON(w, http.StatusOK, stats)
}

// CacheSweep removes expired entries from the backing store on demand.
// The worker runs the same sweep on a schedule; this endpoint is for
// reclaiming space immediately after a TTL change.
//
// @Summary      Sweep expired cache entries
// @Tags         ops
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} sweepResponse
// @Failure      500 {string} string "Sweep failed"
// @Router       /ops/cache/sweep [post]
func (h *Handler) CacheSweep(w http.ResponseWriter, r *http.Request) {
	requestID := requestid.FromContext(r.Context())
	start := time.Now()

	purged, err := h.Cache.Sweep(r.Context())
	duration := time.Since(start)
	httpmetrics.RecordKVOperation("purge", duration)
	if err != nil {
		slog.Error("manual cache sweep failed",
			slog.String("request_id", requestID),
			slog.Any("error", err))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	httpmetrics.RecordExpiredPurged("cache", purged)
	slog.Info("manual cache sweep completed",
		slog.String("request_id", requestID),
		slog.Int("purged", purged),
		slog.Duration("duration", duration))

	respond.JSON(w, http.StatusOK, sweepResponse{
		Purged:     purged,
		DurationMS: float64(duration.Milliseconds()),
	})
}

// SessionStats reports session store activity counters.
//
// @Summary      Session store statistics
// @Tags         ops
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} session.Stats
// @Router       /ops/sessions/stats [get]
func (h *Handler) SessionStats(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, h.Sessions.Stats())
}

// QueueStats reports the task queue backlog.
//
// @Summary      Task queue statistics
// @Tags         ops
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} queueStatsResponse
// @Router       /ops/queue [get]
func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	depth := h.Queue.Depth()
	httpmetrics.UpdateQueueDepth(depth)
	respond.JSON(w, http.StatusOK, queueStatsResponse{Depth: depth})
}

// Package orchestrate ties the pipeline together: session validation, the
// whole-response cache, routing, staged handler fan-out, synthesis, and the
// async path for deep analyses.
package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"creator-insights/internal/cache"
	"creator-insights/internal/config"
	"creator-insights/internal/domain/entity"
	"creator-insights/internal/session"
	"creator-insights/internal/taskqueue"
	"creator-insights/internal/usecase/handlers"
	"creator-insights/internal/usecase/router"
	"creator-insights/internal/usecase/synthesis"
)

// AnalyzeInput is one inbound analyze call.
type AnalyzeInput struct {
	SessionID string
	RemoteIP  string
	Request   *entity.Request
}

// AnalyzeOutput is the orchestrator's answer. Exactly one of Response or
// TaskID is set: deep analyses return a task ID to poll instead of a response.
type AnalyzeOutput struct {
	Response       *entity.FinalResponse `json:"response,omitempty"`
	TaskID         string                `json:"task_id,omitempty"`
	Cache          cache.Info            `json:"cache"`
	ProcessingTime time.Duration         `json:"processing_time"`
}

// Service is the orchestration layer.
type Service struct {
	sessions *session.Store
	cache    *cache.Cache
	router   *router.Service
	registry *handlers.Registry
	synth    *synthesis.Synthesizer
	queue    *taskqueue.Queue
	cfg      *config.OrchestrationConfig
	analysis *config.AnalysisConfig
	now      func() time.Time
}

// NewService wires the orchestrator.
func NewService(
	sessions *session.Store,
	resultCache *cache.Cache,
	rtr *router.Service,
	registry *handlers.Registry,
	synth *synthesis.Synthesizer,
	queue *taskqueue.Queue,
	cfg *config.OrchestrationConfig,
	analysis *config.AnalysisConfig,
) *Service {
	return &Service{
		sessions: sessions,
		cache:    resultCache,
		router:   rtr,
		registry: registry,
		synth:    synth,
		queue:    queue,
		cfg:      cfg,
		analysis: analysis,
		now:      time.Now,
	}
}

// Analyze runs one request through the full pipeline. Session errors are
// returned as-is so the transport layer can map them to status codes; pipeline
// failures degrade into partial responses rather than errors.
func (s *Service) Analyze(ctx context.Context, in *AnalyzeInput) (*AnalyzeOutput, error) {
	start := s.now()

	sess, err := s.sessions.Get(ctx, in.SessionID, session.AccessParams{IPAddress: in.RemoteIP})
	if err != nil {
		recordRequest("session_rejected", 0)
		return nil, err
	}

	req := in.Request
	if req.UserID == "" {
		req.UserID = sess.UserID
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = start
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestDeadline)
	defer cancel()

	// The response cache key deliberately excludes domains and depth: it must
	// be computable before classification so a hit skips the classifier's
	// model call entirely.
	key := responseKey(req)
	if value, info, ok := s.cache.Lookup(ctx, key); ok {
		var resp entity.FinalResponse
		if err := json.Unmarshal(value, &resp); err == nil {
			recordRequest("cache_hit", s.now().Sub(start))
			return &AnalyzeOutput{Response: &resp, Cache: info, ProcessingTime: s.now().Sub(start)}, nil
		}
		slog.Warn("cached response unreadable, recomputing", slog.String("request_id", req.ID))
	}

	cls, err := s.router.Classify(ctx, req)
	if err != nil {
		recordRequest("error", s.now().Sub(start))
		return nil, fmt.Errorf("classify request: %w", err)
	}
	mergeContext(req, cls.Params)

	if cls.Depth == entity.DepthDeep {
		taskID, err := s.enqueueDeep(req, cls, key)
		if err == nil {
			recordRequest("enqueued", s.now().Sub(start))
			return &AnalyzeOutput{TaskID: taskID, ProcessingTime: s.now().Sub(start)}, nil
		}
		// Queue unavailable: answer now at standard depth instead of failing.
		slog.Warn("task queue rejected deep analysis, running at standard depth",
			slog.String("request_id", req.ID),
			slog.Any("error", err))
		cls.Depth = entity.DepthStandard
	}

	resp := s.execute(ctx, req, cls)
	info := s.storeResponse(ctx, key, cls.Depth, resp)

	recordRequest("completed", s.now().Sub(start))
	return &AnalyzeOutput{Response: resp, Cache: info, ProcessingTime: s.now().Sub(start)}, nil
}

// Task returns the state of an asynchronous analysis.
func (s *Service) Task(taskID string) (*entity.Task, error) {
	return s.queue.Poll(taskID)
}

// CancelTask cancels a queued or running analysis.
func (s *Service) CancelTask(taskID string) bool {
	return s.queue.Cancel(taskID)
}

// execute runs the staged handler fan-out and synthesizes the result. Domains
// still missing when the deadline hits are reported as timed out, never
// silently dropped.
func (s *Service) execute(ctx context.Context, req *entity.Request, cls *router.Classification) *entity.FinalResponse {
	domains, rerouted := s.guardDomains(req, cls.Domains)
	plan := filterPlan(cls.Plan, domains)

	results := make(map[entity.Domain]*entity.HandlerResult, len(domains))
	budget := s.domainBudget(req, cls.Depth, len(domains))

	var mu sync.Mutex
	for _, stage := range plan {
		prior := snapshotResults(results)

		g, stageCtx := errgroup.WithContext(ctx)
		for _, domain := range stage {
			h, ok := s.registry.Handler(domain)
			if !ok {
				continue
			}
			g.Go(func() error {
				result := h.Analyze(stageCtx, &handlers.AnalyzeInput{
					Request:     req,
					Depth:       cls.Depth,
					TokenBudget: budget,
					Prior:       prior,
				})
				mu.Lock()
				results[domain] = result
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			break
		}
	}

	// Label anything the deadline cut off.
	for _, domain := range domains {
		if _, ok := results[domain]; !ok {
			results[domain] = entity.DegradedResult(domain, fmt.Sprintf("%s analysis timed out", domain))
		}
	}

	ordered := make([]*entity.HandlerResult, 0, len(domains))
	for _, domain := range domains {
		ordered = append(ordered, results[domain])
	}

	resp := s.synth.Synthesize(ordered)
	resp.TokenUsage = resp.TokenUsage.Add(cls.TokenUsage)
	if rerouted {
		resp.DomainMismatch = true
	}
	return resp
}

// guardDomains is the misrouting guard: a selected handler that rejects the
// request is skipped. When nothing survives, the general handler answers and
// the response is flagged as a domain mismatch.
func (s *Service) guardDomains(req *entity.Request, selected []entity.Domain) ([]entity.Domain, bool) {
	kept := make([]entity.Domain, 0, len(selected))
	for _, domain := range selected {
		h, ok := s.registry.Handler(domain)
		if !ok {
			continue
		}
		if !h.DomainMatch(req) {
			slog.Info("handler rejected routed domain",
				slog.String("request_id", req.ID),
				slog.String("domain", string(domain)))
			continue
		}
		kept = append(kept, domain)
	}
	if len(kept) == 0 {
		return []entity.Domain{entity.DomainGeneral}, true
	}
	return kept, false
}

// enqueueDeep submits a deep analysis to the task queue. The job caches its
// own response so later identical requests hit synchronously.
func (s *Service) enqueueDeep(req *entity.Request, cls *router.Classification, key string) (string, error) {
	job := func(ctx context.Context) (any, error) {
		resp := s.execute(ctx, req, cls)
		s.storeResponse(ctx, key, cls.Depth, resp)
		return resp, nil
	}
	return s.queue.Submit(job, entity.PriorityNormal, s.cfg.DeepTaskTimeout)
}

// storeResponse caches a response under the depth TTL. Partial answers are
// never cached: the next request should retry the degraded domains.
func (s *Service) storeResponse(ctx context.Context, key string, depth entity.AnalysisDepth, resp *entity.FinalResponse) cache.Info {
	if resp.DomainMismatch || len(resp.Degraded) > 0 {
		return cache.Info{}
	}
	value, err := json.Marshal(resp)
	if err != nil {
		slog.Warn("response marshal failed, skipping cache", slog.Any("error", err))
		return cache.Info{}
	}
	return s.cache.Put(ctx, key, cache.CategoryForDepth(depth), value)
}

// domainBudget splits the effective token budget evenly across domains.
func (s *Service) domainBudget(req *entity.Request, depth entity.AnalysisDepth, domainCount int) int {
	total := s.analysis.TokenBudget(depth)
	if req.TokenBudget.Output > 0 && req.TokenBudget.Output < total {
		total = req.TokenBudget.Output
	}
	if domainCount <= 0 {
		return total
	}
	return total / domainCount
}

func responseKey(req *entity.Request) string {
	return "resp:" + req.Fingerprint(nil, "")
}

// mergeContext backfills extracted parameters so handlers see them, without
// overwriting what the caller supplied.
func mergeContext(req *entity.Request, params entity.RequestContext) {
	if req.Context.ChannelID == "" {
		req.Context.ChannelID = params.ChannelID
	}
	if req.Context.TimeWindow == "" {
		req.Context.TimeWindow = params.TimeWindow
	}
	if len(req.Context.VideoIDs) == 0 {
		req.Context.VideoIDs = params.VideoIDs
	}
	if len(req.Context.CompetitorIDs) == 0 {
		req.Context.CompetitorIDs = params.CompetitorIDs
	}
}

func filterPlan(plan [][]entity.Domain, kept []entity.Domain) [][]entity.Domain {
	keep := make(map[entity.Domain]bool, len(kept))
	for _, d := range kept {
		keep[d] = true
	}
	var out [][]entity.Domain
	for _, stage := range plan {
		var filtered []entity.Domain
		for _, d := range stage {
			if keep[d] {
				filtered = append(filtered, d)
			}
		}
		if len(filtered) > 0 {
			out = append(out, filtered)
		}
	}
	if len(out) == 0 {
		out = [][]entity.Domain{kept}
	}
	return out
}

func snapshotResults(results map[entity.Domain]*entity.HandlerResult) map[entity.Domain]*entity.HandlerResult {
	if len(results) == 0 {
		return nil
	}
	out := make(map[entity.Domain]*entity.HandlerResult, len(results))
	for d, r := range results {
		out[d] = r
	}
	return out
}

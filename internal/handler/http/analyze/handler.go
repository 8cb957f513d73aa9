// Package analyze exposes the analysis pipeline over HTTP: request
// submission, async task polling, and task cancellation.
package analyze

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"creator-insights/internal/domain/entity"
	"creator-insights/internal/handler/http/auth"
	"creator-insights/internal/handler/http/middleware"
	"creator-insights/internal/handler/http/pathutil"
	"creator-insights/internal/handler/http/requestid"
	"creator-insights/internal/handler/http/respond"
	"creator-insights/internal/session"
	"creator-insights/internal/taskqueue"
	"creator-insights/internal/usecase/orchestrate"
)

// maxQuestionLength bounds the accepted question size in bytes. Anything a
// creator types by hand fits comfortably; larger payloads are abuse.
const maxQuestionLength = 4096

type analyzeRequest struct {
	Text   string `json:"text" example:"Why did my watch time drop this month?"`
	Intent string `json:"intent,omitempty" example:"audience"`

	ChannelID     string   `json:"channel_id,omitempty" example:"UCabc123"`
	TimeWindow    string   `json:"time_window,omitempty" example:"30d"`
	VideoIDs      []string `json:"video_ids,omitempty"`
	CompetitorIDs []string `json:"competitor_ids,omitempty"`

	MaxOutputTokens int `json:"max_output_tokens,omitempty" example:"2000"`
}

type analyzeResponse struct {
	RequestID string                `json:"request_id"`
	Response  *entity.FinalResponse `json:"response,omitempty"`
	TaskID    string                `json:"task_id,omitempty"`

	CacheHit         bool    `json:"cache_hit"`
	TTLRemainingSecs float64 `json:"ttl_remaining_seconds,omitempty"`
	CacheDegraded    bool    `json:"cache_degraded,omitempty"`
	ProcessingMS     int64   `json:"processing_ms"`
}

// Handler serves the analysis endpoints.
type Handler struct {
	orchestrator *orchestrate.Service
	ipExtractor  middleware.IPExtractor
}

// NewHandler wires the analysis endpoints to the orchestrator.
func NewHandler(orchestrator *orchestrate.Service, ipExtractor middleware.IPExtractor) *Handler {
	return &Handler{orchestrator: orchestrator, ipExtractor: ipExtractor}
}

// Analyze accepts a natural-language question and runs it through the
// pipeline. Quick and standard analyses answer synchronously; deep analyses
// return 202 with a task ID to poll.
//
// @Summary      Analyze a channel question
// @Description  Classifies the question, fans out to capability analyzers, and returns a synthesized answer
// @Tags         analyze
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body analyzeRequest true "Question and optional context"
// @Success      200 {object} analyzeResponse "Synchronous answer"
// @Success      202 {object} analyzeResponse "Deep analysis enqueued"
// @Failure      400 {string} string "Invalid request"
// @Failure      401 {string} string "Unauthorized"
// @Failure      403 {string} string "Forbidden"
// @Router       /api/v1/analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	requestID := requestid.FromContext(r.Context())
	logger := slog.With(slog.String("request_id", requestID))

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respond.Error(w, http.StatusBadRequest, errors.New("text must not be empty"))
		return
	}
	if len(req.Text) > maxQuestionLength {
		respond.Error(w, http.StatusBadRequest, errors.New("text too long"))
		return
	}

	sess := auth.SessionFromContext(r.Context())
	if sess == nil {
		respond.Error(w, http.StatusUnauthorized, errors.New("unauthenticated"))
		return
	}

	clientIP, err := h.ipExtractor.ExtractIP(r)
	if err != nil {
		clientIP = ""
	}

	in := &orchestrate.AnalyzeInput{
		SessionID: sess.ID,
		RemoteIP:  clientIP,
		Request: &entity.Request{
			ID:             uuid.NewString(),
			RawText:        req.Text,
			UserID:         sess.UserID,
			DeclaredIntent: entity.Domain(req.Intent),
			Context: entity.RequestContext{
				ChannelID:     req.ChannelID,
				TimeWindow:    req.TimeWindow,
				VideoIDs:      req.VideoIDs,
				CompetitorIDs: req.CompetitorIDs,
			},
			TokenBudget: entity.TokenBudget{Output: req.MaxOutputTokens},
		},
	}

	out, err := h.orchestrator.Analyze(r.Context(), in)
	if err != nil {
		h.respondAnalyzeError(w, logger, err)
		return
	}

	resp := analyzeResponse{
		RequestID:        in.Request.ID,
		Response:         out.Response,
		TaskID:           out.TaskID,
		CacheHit:         out.Cache.Hit,
		TTLRemainingSecs: out.Cache.TTLRemaining.Seconds(),
		CacheDegraded:    out.Cache.Degraded,
		ProcessingMS:     out.ProcessingTime.Milliseconds(),
	}

	status := http.StatusOK
	if out.TaskID != "" {
		status = http.StatusAccepted
	}
	respond.JSON(w, status, resp)
}

func (h *Handler) respondAnalyzeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		respond.Error(w, http.StatusUnauthorized, errors.New("session expired"))
	case errors.Is(err, session.ErrSessionInvalid):
		respond.Error(w, http.StatusUnauthorized, errors.New("unauthorized"))
	case errors.Is(err, session.ErrIPMismatch):
		respond.Error(w, http.StatusForbidden, errors.New("forbidden"))
	default:
		logger.Error("analysis failed", slog.Any("error", err))
		respond.SafeError(w, http.StatusInternalServerError, err)
	}
}

// Task returns the state of an asynchronous analysis.
//
// @Summary      Poll an analysis task
// @Description  Returns the current state of a deep analysis, including its result once finished
// @Tags         analyze
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Success      200 {object} entity.Task
// @Failure      400 {string} string "Invalid task ID"
// @Failure      404 {string} string "Task not found"
// @Router       /api/v1/tasks/{id} [get]
func (h *Handler) Task(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathutil.ExtractID(r.URL.Path, "/api/v1/tasks/")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	task, err := h.orchestrator.Task(taskID)
	if err != nil {
		if errors.Is(err, taskqueue.ErrTaskNotFound) {
			respond.Error(w, http.StatusNotFound, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, task)
}

// CancelTask cancels a queued or running analysis.
//
// @Summary      Cancel an analysis task
// @Description  Cancels a queued task outright; running tasks are signalled and finish cooperatively
// @Tags         analyze
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Success      204 "Cancellation accepted"
// @Failure      400 {string} string "Invalid task ID"
// @Failure      409 {string} string "Task already finished"
// @Router       /api/v1/tasks/{id} [delete]
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	requestID := requestid.FromContext(r.Context())
	taskID, err := pathutil.ExtractID(r.URL.Path, "/api/v1/tasks/")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	if !h.orchestrator.CancelTask(taskID) {
		respond.Error(w, http.StatusConflict, errors.New("task is not cancellable"))
		return
	}

	slog.Info("task cancelled",
		slog.String("request_id", requestID),
		slog.String("task_id", taskID))
	w.WriteHeader(http.StatusNoContent)
}

// TasksRouter dispatches /api/v1/tasks/{id} by method.
func (h *Handler) TasksRouter(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.Task(w, r)
	case http.MethodDelete:
		h.CancelTask(w, r)
	default:
		respond.Error(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

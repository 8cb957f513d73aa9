package analyze

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-insights/internal/cache"
	"creator-insights/internal/config"
	"creator-insights/internal/domain/entity"
	"creator-insights/internal/handler/http/auth"
	"creator-insights/internal/handler/http/middleware"
	"creator-insights/internal/infra/kvstore"
	"creator-insights/internal/infra/youtube"
	"creator-insights/internal/session"
	"creator-insights/internal/taskqueue"
	"creator-insights/internal/usecase/handlers"
	"creator-insights/internal/usecase/orchestrate"
	"creator-insights/internal/usecase/router"
	"creator-insights/internal/usecase/synthesis"
)

type stubCompleter struct {
	response string
}

func (s *stubCompleter) Complete(context.Context, string, int) (string, entity.TokenUsage, error) {
	return s.response, entity.TokenUsage{Input: 100, Output: 50}, nil
}

func (s *stubCompleter) Name() string { return "stub" }

type stubData struct{}

func (stubData) GetChannelStats(_ context.Context, channelID string) (*youtube.ChannelStats, error) {
	return &youtube.ChannelStats{ChannelID: channelID, Title: "Test Channel", Subscribers: 1000}, nil
}

func (stubData) GetComments(context.Context, string, int) ([]youtube.Comment, error) {
	return []youtube.Comment{{Author: "viewer1", Text: "great video"}}, nil
}

func (stubData) GetVideoStats(context.Context, []string) ([]youtube.VideoStats, error) {
	return []youtube.VideoStats{{VideoID: "vid1", Title: "A", Views: 100}}, nil
}

const handlerLLMResponse = `{
	"summary": "Retention is the main lever.",
	"confidence": 0.8,
	"insights": [],
	"recommendations": []
}`

func newHandler(t *testing.T, classification string) (*Handler, *session.Store, *entity.Session) {
	t.Helper()

	analysisCfg := config.DefaultAnalysisConfig()
	resultCache := cache.New(kvstore.NewMemoryStore(), cache.Config{Capacity: 100})
	sessions := session.New(kvstore.NewMemoryStore(), session.DefaultConfig())
	queue := taskqueue.New(taskqueue.Config{Workers: 1, DefaultTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = queue.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	svc := orchestrate.NewService(
		sessions,
		resultCache,
		router.NewService(&stubCompleter{response: classification}, analysisCfg),
		handlers.NewRegistry(&stubCompleter{response: handlerLLMResponse}, resultCache, stubData{}, analysisCfg),
		synthesis.New(analysisCfg),
		queue,
		&config.OrchestrationConfig{RequestDeadline: 5 * time.Second, DeepTaskTimeout: time.Second},
		analysisCfg,
	)

	sess, err := sessions.Create(context.Background(), session.CreateParams{UserID: "user-1", IPAddress: "10.0.0.1"})
	require.NoError(t, err)

	return NewHandler(svc, &middleware.RemoteAddrExtractor{}), sessions, sess
}

func postAnalyze(sess *entity.Session, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:43210"
	if sess != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), sess.UserID, sess))
	}
	return req
}

func TestAnalyze_Synchronous(t *testing.T) {
	h, _, sess := newHandler(t, `{"domains": ["content"], "depth": "standard", "confidence": 0.9}`)

	rr := httptest.NewRecorder()
	h.Analyze(rr, postAnalyze(sess, `{"text":"why did my video about thumbnails underperform","channel_id":"UC123"}`))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Response)
	assert.Empty(t, resp.TaskID)
	assert.NotEmpty(t, resp.RequestID)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, []entity.Domain{entity.DomainContent}, resp.Response.Contributed)
}

func TestAnalyze_SecondCallReportsCacheHit(t *testing.T) {
	h, _, sess := newHandler(t, `{"domains": ["content"], "depth": "standard", "confidence": 0.9}`)
	body := `{"text":"why did my video about thumbnails underperform","channel_id":"UC123"}`

	rr := httptest.NewRecorder()
	h.Analyze(rr, postAnalyze(sess, body))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.Analyze(rr, postAnalyze(sess, body))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.CacheHit)
	assert.Positive(t, resp.TTLRemainingSecs)
}

func TestAnalyze_DeepReturnsAccepted(t *testing.T) {
	h, _, sess := newHandler(t, `{"domains": ["content"], "depth": "deep", "confidence": 0.9}`)

	rr := httptest.NewRecorder()
	h.Analyze(rr, postAnalyze(sess, `{"text":"full audit of my channel please","channel_id":"UC123"}`))

	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Nil(t, resp.Response)
	assert.NotEmpty(t, resp.TaskID)
}

func TestAnalyze_ValidationErrors(t *testing.T) {
	h, _, sess := newHandler(t, `{"domains": ["content"], "depth": "standard", "confidence": 0.9}`)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{not json`},
		{name: "empty text", body: `{"text":"   "}`},
		{name: "oversized text", body: `{"text":"` + strings.Repeat("a", maxQuestionLength+1) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Analyze(rr, postAnalyze(sess, tt.body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestAnalyze_MissingIdentityRejected(t *testing.T) {
	h, _, _ := newHandler(t, `{"domains": ["content"], "depth": "standard", "confidence": 0.9}`)

	rr := httptest.NewRecorder()
	h.Analyze(rr, postAnalyze(nil, `{"text":"question"}`))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAnalyze_RevokedSessionRejected(t *testing.T) {
	h, sessions, sess := newHandler(t, `{"domains": ["content"], "depth": "standard", "confidence": 0.9}`)
	require.NoError(t, sessions.Revoke(context.Background(), sess.ID))

	rr := httptest.NewRecorder()
	h.Analyze(rr, postAnalyze(sess, `{"text":"question","channel_id":"UC123"}`))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTask_PollLifecycle(t *testing.T) {
	h, _, sess := newHandler(t, `{"domains": ["content"], "depth": "deep", "confidence": 0.9}`)

	rr := httptest.NewRecorder()
	h.Analyze(rr, postAnalyze(sess, `{"text":"full audit of my channel please","channel_id":"UC123"}`))
	require.Equal(t, http.StatusAccepted, rr.Code)

	var submitted analyzeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &submitted))

	deadline := time.Now().Add(5 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+submitted.TaskID, nil)
		rr = httptest.NewRecorder()
		h.TasksRouter(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var task entity.Task
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &task))
		if task.State.Terminal() {
			assert.Equal(t, entity.TaskSucceeded, task.State)
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("task did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTask_NotFound(t *testing.T) {
	h, _, _ := newHandler(t, `{"domains": ["content"], "depth": "standard", "confidence": 0.9}`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/no-such-task", nil)
	rr := httptest.NewRecorder()
	h.TasksRouter(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTask_InvalidID(t *testing.T) {
	h, _, _ := newHandler(t, `{"domains": ["content"], "depth": "standard", "confidence": 0.9}`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/", nil)
	rr := httptest.NewRecorder()
	h.TasksRouter(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCancelTask_FinishedTaskConflicts(t *testing.T) {
	h, _, sess := newHandler(t, `{"domains": ["content"], "depth": "deep", "confidence": 0.9}`)

	rr := httptest.NewRecorder()
	h.Analyze(rr, postAnalyze(sess, `{"text":"full audit of my channel please","channel_id":"UC123"}`))
	require.Equal(t, http.StatusAccepted, rr.Code)

	var submitted analyzeResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &submitted))

	// Wait for the task to finish, then try to cancel it.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/"+submitted.TaskID, nil)
		poll := httptest.NewRecorder()
		h.TasksRouter(poll, req)

		var task entity.Task
		require.NoError(t, json.Unmarshal(poll.Body.Bytes(), &task))
		if task.State.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/"+submitted.TaskID, nil)
	rr = httptest.NewRecorder()
	h.TasksRouter(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestTasksRouter_MethodNotAllowed(t *testing.T) {
	h, _, _ := newHandler(t, `{"domains": ["content"], "depth": "standard", "confidence": 0.9}`)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/tasks/abc", nil)
	rr := httptest.NewRecorder()
	h.TasksRouter(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creator-insights/internal/config"
	"creator-insights/internal/domain/entity"
)

// stubCompleter returns canned responses in order, then repeats the last one.
type stubCompleter struct {
	responses []string
	errs      []error
	calls     int
}

func (s *stubCompleter) Complete(_ context.Context, _ string, _ int) (string, entity.TokenUsage, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.responses[i], entity.TokenUsage{Input: 40, Output: 20}, err
}

func (s *stubCompleter) Name() string { return "stub" }

func newTestService(completer *stubCompleter) *Service {
	return NewService(completer, config.DefaultAnalysisConfig())
}

func TestClassify_ModelClassification(t *testing.T) {
	completer := &stubCompleter{responses: []string{
		`{"domains": ["content", "seo"], "depth": "standard", "confidence": 0.9, "channel_id": "UC123"}`,
	}}
	svc := newTestService(completer)

	cls, err := svc.Classify(context.Background(), &entity.Request{
		ID:      "req-1",
		RawText: "Why did my retention drop and how do my titles rank?",
	})

	require.NoError(t, err)
	assert.Equal(t, []entity.Domain{entity.DomainContent, entity.DomainSEO}, cls.Domains)
	assert.Equal(t, entity.DepthStandard, cls.Depth)
	assert.InDelta(t, 0.9, cls.Confidence, 0.001)
	assert.Equal(t, "UC123", cls.Params.ChannelID)
	assert.False(t, cls.Fallback)
	assert.Equal(t, 1, completer.calls)
}

func TestClassify_StripsProseAroundJSON(t *testing.T) {
	completer := &stubCompleter{responses: []string{
		"Here is the classification:\n" +
			`{"domains": ["audience"], "depth": "quick", "confidence": 0.8}` +
			"\nLet me know if you need anything else.",
	}}
	svc := newTestService(completer)

	cls, err := svc.Classify(context.Background(), &entity.Request{ID: "req-1", RawText: "who watches me"})

	require.NoError(t, err)
	assert.Equal(t, []entity.Domain{entity.DomainAudience}, cls.Domains)
	assert.Equal(t, entity.DepthQuick, cls.Depth)
}

func TestClassify_RetriesOnceThenSucceeds(t *testing.T) {
	completer := &stubCompleter{
		responses: []string{
			"not json at all",
			`{"domains": ["monetization"], "depth": "standard", "confidence": 0.7}`,
		},
	}
	svc := newTestService(completer)

	cls, err := svc.Classify(context.Background(), &entity.Request{ID: "req-1", RawText: "rpm question"})

	require.NoError(t, err)
	assert.Equal(t, []entity.Domain{entity.DomainMonetization}, cls.Domains)
	assert.False(t, cls.Fallback)
	assert.Equal(t, 2, completer.calls)
}

func TestClassify_FallsBackToKeywordsAfterTwoFailures(t *testing.T) {
	callErr := errors.New("provider down")
	completer := &stubCompleter{
		responses: []string{"", ""},
		errs:      []error{callErr, callErr},
	}
	svc := newTestService(completer)

	cls, err := svc.Classify(context.Background(), &entity.Request{
		ID:      "req-1",
		RawText: "engagement from my viewers dropped and retention fell off a cliff",
	})

	require.NoError(t, err)
	assert.True(t, cls.Fallback)
	assert.Contains(t, cls.Domains, entity.DomainAudience)
	assert.Equal(t, 2, completer.calls)
}

func TestClassify_KeywordFallbackRoutesToGeneral(t *testing.T) {
	callErr := errors.New("provider down")
	completer := &stubCompleter{responses: []string{""}, errs: []error{callErr, callErr}}
	svc := newTestService(completer)

	cls, err := svc.Classify(context.Background(), &entity.Request{
		ID:      "req-1",
		RawText: "tell me a story about a dragon",
	})

	require.NoError(t, err)
	assert.True(t, cls.Fallback)
	assert.Equal(t, []entity.Domain{entity.DomainGeneral}, cls.Domains)
}

func TestClassify_LowConfidenceRoutesToGeneral(t *testing.T) {
	completer := &stubCompleter{responses: []string{
		`{"domains": ["content"], "depth": "standard", "confidence": 0.2}`,
	}}
	svc := newTestService(completer)

	cls, err := svc.Classify(context.Background(), &entity.Request{ID: "req-1", RawText: "hmm"})

	require.NoError(t, err)
	assert.Equal(t, []entity.Domain{entity.DomainGeneral}, cls.Domains)
}

func TestClassify_DeclaredIntentWins(t *testing.T) {
	completer := &stubCompleter{responses: []string{
		`{"domains": ["content", "audience"], "depth": "standard", "confidence": 0.9}`,
	}}
	svc := newTestService(completer)

	cls, err := svc.Classify(context.Background(), &entity.Request{
		ID:             "req-1",
		RawText:        "anything",
		DeclaredIntent: entity.DomainSEO,
	})

	require.NoError(t, err)
	assert.Equal(t, []entity.Domain{entity.DomainSEO}, cls.Domains)
	assert.Equal(t, 1.0, cls.Confidence)
}

func TestClassify_SuppliedContextWinsOverExtracted(t *testing.T) {
	completer := &stubCompleter{responses: []string{
		`{"domains": ["content"], "depth": "standard", "confidence": 0.9, "channel_id": "UCextracted", "time_window": "7d"}`,
	}}
	svc := newTestService(completer)

	cls, err := svc.Classify(context.Background(), &entity.Request{
		ID:      "req-1",
		RawText: "how is my channel doing",
		Context: entity.RequestContext{ChannelID: "UCsupplied"},
	})

	require.NoError(t, err)
	assert.Equal(t, "UCsupplied", cls.Params.ChannelID)
	assert.Equal(t, "7d", cls.Params.TimeWindow)
}

func TestClassify_OutOfRangeConfidenceIsRejected(t *testing.T) {
	completer := &stubCompleter{
		responses: []string{
			`{"domains": ["content"], "confidence": 1.7}`,
			`{"domains": ["content"], "depth": "standard", "confidence": 0.8}`,
		},
	}
	svc := newTestService(completer)

	cls, err := svc.Classify(context.Background(), &entity.Request{ID: "req-1", RawText: "x"})

	require.NoError(t, err)
	assert.False(t, cls.Fallback)
	assert.Equal(t, 2, completer.calls)
	assert.InDelta(t, 0.8, cls.Confidence, 0.001)
}

func TestBuildPlan(t *testing.T) {
	tests := []struct {
		name    string
		domains []entity.Domain
		want    [][]entity.Domain
	}{
		{
			name:    "independent domains run in one stage",
			domains: []entity.Domain{entity.DomainContent, entity.DomainAudience},
			want:    [][]entity.Domain{{entity.DomainContent, entity.DomainAudience}},
		},
		{
			name:    "competitive runs after content",
			domains: []entity.Domain{entity.DomainContent, entity.DomainCompetitive},
			want: [][]entity.Domain{
				{entity.DomainContent},
				{entity.DomainCompetitive},
			},
		},
		{
			name:    "monetization runs after audience",
			domains: []entity.Domain{entity.DomainMonetization, entity.DomainAudience},
			want: [][]entity.Domain{
				{entity.DomainAudience},
				{entity.DomainMonetization},
			},
		},
		{
			name:    "dependent domain without its input stays in stage one",
			domains: []entity.Domain{entity.DomainCompetitive, entity.DomainSEO},
			want:    [][]entity.Domain{{entity.DomainCompetitive, entity.DomainSEO}},
		},
		{
			name:    "both dependency pairs",
			domains: []entity.Domain{entity.DomainContent, entity.DomainAudience, entity.DomainCompetitive, entity.DomainMonetization},
			want: [][]entity.Domain{
				{entity.DomainContent, entity.DomainAudience},
				{entity.DomainCompetitive, entity.DomainMonetization},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildPlan(tt.domains))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, extractJSON(`prefix {"a": 1} suffix`))
	assert.Equal(t, `{"a": 1}`, extractJSON(`{"a": 1}`))
	assert.Equal(t, "no braces here", extractJSON("no braces here"))
}

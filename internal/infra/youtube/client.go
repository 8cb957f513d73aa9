// Package youtube is the video-platform data API client. Every call goes
// through the video API circuit breaker and retry profile, so an upstream
// outage degrades handlers quickly instead of stalling requests.
package youtube

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"creator-insights/internal/domain/entity"
	"creator-insights/internal/resilience/circuitbreaker"
	"creator-insights/internal/resilience/retry"
	pkgconfig "creator-insights/pkg/config"
)

// maxResponseBytes caps response bodies to prevent memory exhaustion from a
// misbehaving upstream.
const maxResponseBytes = 4 << 20

// Config holds client configuration.
type Config struct {
	// BaseURL is the API root. Overridable for tests and proxies.
	BaseURL string

	// APIKey authenticates data API calls.
	APIKey string

	// Timeout bounds one HTTP request.
	Timeout time.Duration
}

// LoadConfig loads client configuration from environment variables.
//
// Environment variables:
//   - YOUTUBE_API_BASE_URL: API root (default: https://www.googleapis.com/youtube/v3)
//   - YOUTUBE_API_KEY: data API key
//   - YOUTUBE_API_TIMEOUT: per-request timeout (default: 10s)
func LoadConfig() Config {
	return Config{
		BaseURL: pkgconfig.GetEnvString("YOUTUBE_API_BASE_URL", "https://www.googleapis.com/youtube/v3"),
		APIKey:  pkgconfig.GetEnvString("YOUTUBE_API_KEY", ""),
		Timeout: pkgconfig.GetEnvDuration("YOUTUBE_API_TIMEOUT", 10*time.Second),
	}
}

// Client calls the video-platform data API.
// Thread safety: Client is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
	config      Config
}

// New creates a client with breaker and retry protection.
func New(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		breaker:     circuitbreaker.New(circuitbreaker.VideoAPIConfig()),
		retryConfig: retry.VideoAPIConfig(),
		config:      config,
	}
}

// ChannelStats is the aggregate channel view used by handlers.
type ChannelStats struct {
	ChannelID   string `json:"channel_id"`
	Title       string `json:"title"`
	Subscribers int64  `json:"subscribers"`
	TotalViews  int64  `json:"total_views"`
	VideoCount  int64  `json:"video_count"`
}

// Comment is one viewer comment with engagement counts.
type Comment struct {
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	LikeCount   int64     `json:"like_count"`
	PublishedAt time.Time `json:"published_at"`
}

// VideoStats is per-video performance data.
type VideoStats struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	Views       int64     `json:"views"`
	Likes       int64     `json:"likes"`
	Comments    int64     `json:"comments"`
	PublishedAt time.Time `json:"published_at"`
}

// GetChannelStats returns aggregate statistics for a channel.
func (c *Client) GetChannelStats(ctx context.Context, channelID string) (*ChannelStats, error) {
	params := url.Values{
		"part": {"snippet,statistics"},
		"id":   {channelID},
	}

	var resp channelListResponse
	if err := c.call(ctx, "channels", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("channel %s: %w", channelID, entity.ErrNotFound)
	}

	item := resp.Items[0]
	return &ChannelStats{
		ChannelID:   item.ID,
		Title:       item.Snippet.Title,
		Subscribers: int64(item.Statistics.SubscriberCount),
		TotalViews:  int64(item.Statistics.ViewCount),
		VideoCount:  int64(item.Statistics.VideoCount),
	}, nil
}

// GetComments returns up to limit recent comments across the channel.
func (c *Client) GetComments(ctx context.Context, channelID string, limit int) ([]Comment, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	params := url.Values{
		"part":                         {"snippet"},
		"allThreadsRelatedToChannelId": {channelID},
		"maxResults":                   {fmt.Sprintf("%d", limit)},
		"order":                        {"time"},
	}

	var resp commentThreadListResponse
	if err := c.call(ctx, "commentThreads", params, &resp); err != nil {
		return nil, err
	}

	comments := make([]Comment, 0, len(resp.Items))
	for _, item := range resp.Items {
		top := item.Snippet.TopLevelComment.Snippet
		comments = append(comments, Comment{
			Author:      top.AuthorDisplayName,
			Text:        top.TextDisplay,
			LikeCount:   top.LikeCount,
			PublishedAt: top.PublishedAt,
		})
	}
	return comments, nil
}

// GetVideoStats returns per-video statistics for the given IDs.
func (c *Client) GetVideoStats(ctx context.Context, videoIDs []string) ([]VideoStats, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}
	params := url.Values{
		"part": {"snippet,statistics"},
		"id":   {strings.Join(videoIDs, ",")},
	}

	var resp videoListResponse
	if err := c.call(ctx, "videos", params, &resp); err != nil {
		return nil, err
	}

	stats := make([]VideoStats, 0, len(resp.Items))
	for _, item := range resp.Items {
		stats = append(stats, VideoStats{
			VideoID:     item.ID,
			Title:       item.Snippet.Title,
			Views:       int64(item.Statistics.ViewCount),
			Likes:       int64(item.Statistics.LikeCount),
			Comments:    int64(item.Statistics.CommentCount),
			PublishedAt: item.Snippet.PublishedAt,
		})
	}
	return stats, nil
}

// call performs one API request through the breaker and retry profiles and
// decodes the response into out.
func (c *Client) call(ctx context.Context, endpoint string, params url.Values, out any) error {
	start := time.Now()
	err := retry.WithBackoff(ctx, c.retryConfig, func() error {
		_, err := c.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
			return nil, c.doCall(ctx, endpoint, params, out)
		})
		if err != nil {
			var depErr *circuitbreaker.DependencyError
			if errors.As(err, &depErr) {
				slog.Warn("video api circuit breaker open, request rejected",
					slog.String("endpoint", endpoint),
					slog.String("state", c.breaker.State().String()))
			}
		}
		return err
	})
	duration := time.Since(start)

	if err != nil {
		recordAPICall(endpoint, "error", duration)
		return fmt.Errorf("video api %s: %w", endpoint, err)
	}
	recordAPICall(endpoint, "success", duration)
	return nil
}

// doCall performs one HTTP request without retry or circuit breaker.
func (c *Client) doCall(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.config.APIKey != "" {
		params = cloneValues(params)
		params.Set("key", c.config.APIKey)
	}

	reqURL := fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.config.BaseURL, "/"), endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return entity.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("video api %s returned %s", endpoint, resp.Status),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func cloneValues(in url.Values) url.Values {
	out := make(url.Values, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

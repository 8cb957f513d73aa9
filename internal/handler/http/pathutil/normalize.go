package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern pairs a route regex with the template it collapses to.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// pathPatterns lists the dynamic routes, most specific first.
var pathPatterns = []*PathPattern{
	{Pattern: regexp.MustCompile(`^/api/v1/tasks/[0-9a-fA-F-]{36}$`), Template: "/api/v1/tasks/:id"},
	{Pattern: regexp.MustCompile(`^/api/v1/tasks/[^/]+$`), Template: "/api/v1/tasks/:id"},
	{Pattern: regexp.MustCompile(`^/auth/sessions/[0-9a-fA-F-]{36}$`), Template: "/auth/sessions/:id"},
}

// NormalizePath collapses ID-bearing paths to their route template so task
// and session IDs never become metric label values:
//
//	NormalizePath("/api/v1/tasks/8f14e45f-ceea-4e02-a1b2-3c4d5e6f7a8b") // "/api/v1/tasks/:id"
//	NormalizePath("/api/v1/tasks/abc?verbose=1")                        // "/api/v1/tasks/:id"
//	NormalizePath("/api/v1/analyze/")                                   // "/api/v1/analyze"
//
// Static paths such as /health and /auth/token pass through unchanged.
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}

	// Trailing slash, except on the root path.
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}

	return path
}

// GetExpectedCardinality estimates the unique path label count after
// normalization, for alerting on label growth.
func GetExpectedCardinality() int {
	// Static endpoints: /health, /ready, /live, /metrics, /auth/token,
	// /auth/logout, /auth/sessions, /api/v1/analyze, /swagger.
	const staticCount = 9

	return len(pathPatterns) + staticCount
}

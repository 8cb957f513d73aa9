package auth

import (
	"context"

	"creator-insights/internal/domain/entity"
)

type ctxKey string

const (
	ctxUser    ctxKey = "user"
	ctxSession ctxKey = "auth_session"
)

// UserFromContext returns the authenticated user ID, or "" when the request
// did not pass the auth middleware.
func UserFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxUser).(string); ok {
		return v
	}
	return ""
}

// SessionFromContext returns the validated session for the request, or nil.
func SessionFromContext(ctx context.Context) *entity.Session {
	if v, ok := ctx.Value(ctxSession).(*entity.Session); ok {
		return v
	}
	return nil
}

// UserContextKey returns the context key under which the middleware stores
// the authenticated user ID. The user rate limiter's extractor reads it.
func UserContextKey() interface{} { return ctxUser }

// WithIdentity stamps the authenticated user and session onto the context.
// The auth middleware calls this after validation; tests use it to simulate
// an authenticated request.
func WithIdentity(ctx context.Context, user string, sess *entity.Session) context.Context {
	ctx = context.WithValue(ctx, ctxUser, user)
	return context.WithValue(ctx, ctxSession, sess)
}

package entity

import "time"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	// SessionActive is a live session.
	SessionActive SessionStatus = "active"
	// SessionExpired is a session past its expiry time.
	SessionExpired SessionStatus = "expired"
	// SessionRevoked is a session explicitly terminated.
	SessionRevoked SessionStatus = "revoked"
)

// Session represents one authenticated user session. Sessions are owned by the
// session store; callers treat them as read-only snapshots.
type Session struct {
	ID             string            `json:"session_id"`
	UserID         string            `json:"user_id"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
	Status         SessionStatus     `json:"status"`
	IPAddress      string            `json:"ip_address,omitempty"`
	Permissions    []string          `json:"permissions,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	// RememberMe selects the long-lived TTL profile for sliding refreshes.
	RememberMe bool `json:"remember_me,omitempty"`
}

// Expired reports whether the session has passed its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// HasPermission reports whether the session carries the named permission.
func (s *Session) HasPermission(perm string) bool {
	for _, p := range s.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Package session manages user session lifecycle over the shared key-value
// store. Sessions carry an absolute TTL in the store so they self-expire even
// without explicit revocation.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"creator-insights/internal/domain/entity"
	"creator-insights/internal/infra/kvstore"
)

var (
	// ErrSessionInvalid is returned for unknown or revoked sessions.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrSessionExpired is returned for sessions past their expiry.
	ErrSessionExpired = errors.New("session expired")

	// ErrIPMismatch is returned in reject mode when a session is accessed
	// from a different IP than it was created with.
	ErrIPMismatch = errors.New("session ip mismatch")
)

// IPBindingMode controls what happens when a session is accessed from an IP
// other than the one it was created with.
type IPBindingMode string

const (
	// IPBindingOff disables the check entirely.
	IPBindingOff IPBindingMode = "off"
	// IPBindingLog flags mismatches in the audit log but allows access.
	IPBindingLog IPBindingMode = "log"
	// IPBindingReject refuses access on mismatch.
	IPBindingReject IPBindingMode = "reject"
)

// ParseIPBindingMode normalizes a configured mode string, falling back to log.
func ParseIPBindingMode(s string) IPBindingMode {
	switch IPBindingMode(s) {
	case IPBindingOff, IPBindingLog, IPBindingReject:
		return IPBindingMode(s)
	}
	return IPBindingLog
}

// Config holds session store tuning parameters.
type Config struct {
	// Timeout is the standard session lifetime.
	Timeout time.Duration

	// RememberMeTimeout is the long-lived profile used when a session is
	// created with remember-me.
	RememberMeTimeout time.Duration

	// RefreshThreshold triggers a sliding-window refresh when the remaining
	// lifetime falls below it. Accesses above the threshold do not write.
	RefreshThreshold time.Duration

	// MaxSessionsPerUser caps concurrent active sessions; the oldest is
	// revoked when a new session would exceed it.
	MaxSessionsPerUser int

	// IPBinding selects the mismatch policy.
	IPBinding IPBindingMode
}

// DefaultConfig returns the standard session profile.
func DefaultConfig() Config {
	return Config{
		Timeout:            time.Hour,
		RememberMeTimeout:  30 * 24 * time.Hour,
		RefreshThreshold:   15 * time.Minute,
		MaxSessionsPerUser: 5,
		IPBinding:          IPBindingLog,
	}
}

// Stats is a point-in-time view of session store activity.
type Stats struct {
	Created    int64 `json:"created"`
	Revoked    int64 `json:"revoked"`
	Evicted    int64 `json:"evicted"`
	IPMismatch int64 `json:"ip_mismatches"`
}

// Store manages sessions. The per-user session lists are mutated under an
// internal mutex so FIFO eviction at the cap is race-free.
type Store struct {
	kv  kvstore.Store
	cfg Config
	now func() time.Time

	mu         sync.Mutex
	created    int64
	revoked    int64
	evicted    int64
	ipMismatch int64
}

// New creates a session store over the given KV store.
func New(kv kvstore.Store, cfg Config) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.RememberMeTimeout <= 0 {
		cfg.RememberMeTimeout = DefaultConfig().RememberMeTimeout
	}
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = DefaultConfig().RefreshThreshold
	}
	if cfg.MaxSessionsPerUser <= 0 {
		cfg.MaxSessionsPerUser = DefaultConfig().MaxSessionsPerUser
	}
	if cfg.IPBinding == "" {
		cfg.IPBinding = IPBindingLog
	}
	return &Store{kv: kv, cfg: cfg, now: time.Now}
}

// CreateParams are the caller-supplied attributes of a new session.
type CreateParams struct {
	UserID      string
	IPAddress   string
	Permissions []string
	Metadata    map[string]string
	RememberMe  bool
}

// Create issues a new session for the user. If the user is already at the
// session cap, the oldest active session is revoked first.
func (s *Store) Create(ctx context.Context, params CreateParams) (*entity.Session, error) {
	if params.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", entity.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.userSessionIDs(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	// Drop dead entries from the index before applying the cap.
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		if sess, err := s.load(ctx, id); err == nil && sess.Status == entity.SessionActive && !sess.Expired(s.now()) {
			live = append(live, id)
		}
	}

	for len(live) >= s.cfg.MaxSessionsPerUser {
		oldest := live[0]
		live = live[1:]
		if err := s.revokeByID(ctx, oldest); err != nil {
			slog.Warn("failed to evict oldest session",
				slog.String("session_id", oldest),
				slog.Any("error", err))
		}
		s.evicted++
		recordEviction()
		slog.Info("evicted oldest session at cap",
			slog.String("user_id", params.UserID),
			slog.String("session_id", oldest))
	}

	now := s.now()
	timeout := s.cfg.Timeout
	if params.RememberMe {
		timeout = s.cfg.RememberMeTimeout
	}

	sess := &entity.Session{
		ID:             uuid.NewString(),
		UserID:         params.UserID,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(timeout),
		Status:         entity.SessionActive,
		IPAddress:      params.IPAddress,
		Permissions:    params.Permissions,
		Metadata:       params.Metadata,
		RememberMe:     params.RememberMe,
	}

	if err := s.save(ctx, sess, timeout); err != nil {
		return nil, err
	}
	if err := s.saveUserSessionIDs(ctx, params.UserID, append(live, sess.ID)); err != nil {
		return nil, err
	}

	s.created++
	recordCreation()
	return sess, nil
}

// AccessParams describe one session access for Get.
type AccessParams struct {
	// IPAddress is the caller's remote IP, used for the binding check.
	IPAddress string
}

// Get validates and returns the session, applying the sliding-window refresh
// and the configured IP binding policy.
func (s *Store) Get(ctx context.Context, sessionID string, access AccessParams) (*entity.Session, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	if sess.Status == entity.SessionRevoked {
		return nil, ErrSessionInvalid
	}

	now := s.now()
	if sess.Expired(now) {
		return nil, ErrSessionExpired
	}

	if err := s.checkIPBinding(sess, access.IPAddress); err != nil {
		return nil, err
	}

	// Refresh only when close to expiry to limit store writes.
	timeout := s.cfg.Timeout
	if sess.RememberMe {
		timeout = s.cfg.RememberMeTimeout
	}
	if sess.ExpiresAt.Sub(now) < s.cfg.RefreshThreshold {
		sess.ExpiresAt = now.Add(timeout)
		sess.LastAccessedAt = now
		if err := s.save(ctx, sess, timeout); err != nil {
			return nil, err
		}
	}

	return sess, nil
}

// Update replaces the session's metadata and/or permissions. Nil fields are
// left unchanged. The session's expiry is not affected.
func (s *Store) Update(ctx context.Context, sessionID string, metadata map[string]string, permissions []string) error {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return ErrSessionInvalid
		}
		return err
	}
	if sess.Status != entity.SessionActive {
		return ErrSessionInvalid
	}
	if sess.Expired(s.now()) {
		return ErrSessionExpired
	}

	if metadata != nil {
		sess.Metadata = metadata
	}
	if permissions != nil {
		sess.Permissions = permissions
	}
	return s.save(ctx, sess, sess.ExpiresAt.Sub(s.now()))
}

// Revoke terminates a session. Revoking an unknown session is not an error.
func (s *Store) Revoke(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeByID(ctx, sessionID)
}

// RevokeAllForUser terminates every session the user holds, optionally keeping
// one (e.g. the session issuing the revoke-everywhere request).
func (s *Store) RevokeAllForUser(ctx context.Context, userID, except string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.userSessionIDs(ctx, userID)
	if err != nil {
		return err
	}

	kept := ids[:0]
	for _, id := range ids {
		if id == except {
			kept = append(kept, id)
			continue
		}
		if err := s.revokeByID(ctx, id); err != nil {
			return err
		}
	}
	return s.saveUserSessionIDs(ctx, userID, kept)
}

// ListForUser returns the user's active sessions, oldest first.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*entity.Session, error) {
	ids, err := s.userSessionIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sessions := make([]*entity.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.load(ctx, id)
		if err != nil {
			continue
		}
		if sess.Status == entity.SessionActive && !sess.Expired(now) {
			sessions = append(sessions, sess)
		}
	}
	return sessions, nil
}

// Stats returns activity counters since process start.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Created:    s.created,
		Revoked:    s.revoked,
		Evicted:    s.evicted,
		IPMismatch: s.ipMismatch,
	}
}

func (s *Store) checkIPBinding(sess *entity.Session, remoteIP string) error {
	if s.cfg.IPBinding == IPBindingOff || sess.IPAddress == "" || remoteIP == "" {
		return nil
	}
	if sess.IPAddress == remoteIP {
		return nil
	}

	s.mu.Lock()
	s.ipMismatch++
	s.mu.Unlock()
	recordIPMismatch()

	if s.cfg.IPBinding == IPBindingReject {
		slog.Warn("rejected session access from unexpected ip",
			slog.String("session_id", sess.ID),
			slog.String("bound_ip", sess.IPAddress),
			slog.String("remote_ip", remoteIP))
		return ErrIPMismatch
	}

	slog.Warn("session accessed from unexpected ip",
		slog.String("session_id", sess.ID),
		slog.String("bound_ip", sess.IPAddress),
		slog.String("remote_ip", remoteIP))
	return nil
}

// revokeByID marks a session revoked while keeping it readable until its
// original expiry, so audit tooling can still see it. Caller holds s.mu.
func (s *Store) revokeByID(ctx context.Context, sessionID string) error {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	if sess.Status == entity.SessionRevoked {
		return nil
	}

	sess.Status = entity.SessionRevoked
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.save(ctx, sess, ttl); err != nil {
		return err
	}
	s.revoked++
	recordRevocation()
	return nil
}

func sessionKey(id string) string { return "session:" + id }

func userIndexKey(userID string) string { return "session_user:" + userID }

func (s *Store) load(ctx context.Context, sessionID string) (*entity.Session, error) {
	raw, err := s.kv.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, err
	}
	var sess entity.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// expiryGrace keeps entries readable briefly past their logical expiry, so
// Get can distinguish an expired session from an unknown one.
const expiryGrace = 10 * time.Minute

func (s *Store) save(ctx context.Context, sess *entity.Session, ttl time.Duration) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	return s.kv.Set(ctx, sessionKey(sess.ID), raw, ttl+expiryGrace)
}

func (s *Store) userSessionIDs(ctx context.Context, userID string) ([]string, error) {
	raw, err := s.kv.Get(ctx, userIndexKey(userID))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode session index for %s: %w", userID, err)
	}
	return ids, nil
}

func (s *Store) saveUserSessionIDs(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return s.kv.Delete(ctx, userIndexKey(userID))
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode session index for %s: %w", userID, err)
	}
	// The index outlives individual sessions; cap it at the longest profile.
	return s.kv.Set(ctx, userIndexKey(userID), raw, s.cfg.RememberMeTimeout)
}

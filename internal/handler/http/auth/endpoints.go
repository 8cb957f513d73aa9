package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"creator-insights/internal/domain/entity"
	"creator-insights/internal/handler/http/requestid"
	"creator-insights/internal/handler/http/respond"
	"creator-insights/internal/session"
)

var errUnauthenticated = errors.New("unauthenticated")

type sessionListResponse struct {
	Sessions []*entity.Session `json:"sessions"`
	Count    int               `json:"count"`
}

// LogoutHandler revokes the session backing the caller's token. The token
// itself becomes useless the moment the session is gone.
//
// @Summary      Log out
// @Description  Revokes the current session, invalidating its token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      204 "Session revoked"
// @Failure      401 {string} string "Unauthorized"
// @Router       /auth/logout [post]
func LogoutHandler(sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := requestid.FromContext(r.Context())
		sess := SessionFromContext(r.Context())
		if sess == nil {
			respond.Error(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}

		if err := sessions.Revoke(r.Context(), sess.ID); err != nil {
			slog.Error("logout failed",
				slog.String("request_id", requestID),
				slog.String("session_id", sess.ID),
				slog.Any("error", err))
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}

		slog.Info("session revoked",
			slog.String("request_id", requestID),
			slog.String("session_id", sess.ID))
		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionListHandler returns the caller's active sessions, oldest first.
//
// @Summary      List active sessions
// @Description  Returns every active session for the authenticated user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} sessionListResponse
// @Failure      401 {string} string "Unauthorized"
// @Router       /auth/sessions [get]
func SessionListHandler(sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == "" {
			respond.Error(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}

		list, err := sessions.ListForUser(r.Context(), user)
		if err != nil {
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}

		respond.JSON(w, http.StatusOK, sessionListResponse{Sessions: list, Count: len(list)})
	}
}

// RevokeAllHandler revokes every session for the authenticated user except the
// current one. Used after a suspected credential leak.
//
// @Summary      Revoke other sessions
// @Description  Revokes all of the user's sessions except the one making the call
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      204 "Sessions revoked"
// @Failure      401 {string} string "Unauthorized"
// @Router       /auth/sessions/revoke [post]
func RevokeAllHandler(sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := requestid.FromContext(r.Context())
		sess := SessionFromContext(r.Context())
		if sess == nil {
			respond.Error(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}

		if err := sessions.RevokeAllForUser(r.Context(), sess.UserID, sess.ID); err != nil {
			slog.Error("revoke all failed",
				slog.String("request_id", requestID),
				slog.String("user_id", sess.UserID),
				slog.Any("error", err))
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}

		slog.Info("all other sessions revoked",
			slog.String("request_id", requestID),
			slog.String("user_id", sess.UserID))
		w.WriteHeader(http.StatusNoContent)
	}
}

package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"creator-insights/internal/handler/http/middleware"
	"creator-insights/internal/handler/http/requestid"
	"creator-insights/internal/session"

	"github.com/golang-jwt/jwt/v5"
)

type loginRequest struct {
	Email      string `json:"email" example:"admin@example.com"`
	Password   string `json:"password" example:"your_password"`
	RememberMe bool   `json:"remember_me" example:"false"`
}

type tokenResponse struct {
	Token     string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	SessionID string `json:"session_id" example:"8f14e45f-ceea-4e02-a1b2-3c4d5e6f7a8b"`
	ExpiresAt string `json:"expires_at" example:"2025-01-01T12:00:00Z"`
}

// TokenHandler creates an HTTP handler that authenticates users and issues
// session-backed JWT tokens. The token embeds the session ID; revoking the
// session invalidates the token immediately regardless of its expiry.
//
// @Summary      Obtain a JWT token
// @Description  Authenticates with email and password, creates a session, and issues a JWT bound to it
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body loginRequest true "Login credentials"
// @Success      200 {object} tokenResponse "JWT token and session ID"
// @Failure      400 {string} string "Invalid request"
// @Failure      401 {string} string "Authentication failed"
// @Failure      429 {string} string "Too many requests - rate limit exceeded"
// @Failure      500 {string} string "Token generation failed"
// @Router       /auth/token [post]
func TokenHandler(provider Provider, sessions *session.Store, ipExtractor middleware.IPExtractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := requestid.FromContext(r.Context())
		logger := slog.With(slog.String("request_id", requestID))

		logger.Info("authentication attempt started")

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("authentication failed",
				slog.String("reason", "invalid_request"),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
			RecordAuthRequest("failure")
			RecordAuthDuration(time.Since(start).Seconds())
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		creds := Credentials{
			Username: req.Email,
			Password: req.Password,
		}

		if err := provider.ValidateCredentials(r.Context(), creds); err != nil {
			logger.Warn("authentication failed",
				slog.String("reason", "invalid_credentials"),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
			RecordAuthRequest("failure")
			RecordAuthDuration(time.Since(start).Seconds())
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		clientIP, err := ipExtractor.ExtractIP(r)
		if err != nil {
			// A missing client IP disables IP binding for this session but is
			// not a login failure.
			logger.Warn("client ip extraction failed", slog.Any("error", err))
			clientIP = ""
		}

		sess, err := sessions.Create(r.Context(), session.CreateParams{
			UserID:     req.Email,
			IPAddress:  clientIP,
			RememberMe: req.RememberMe,
		})
		if err != nil {
			logger.Error("session creation failed",
				slog.String("error", err.Error()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
			RecordAuthRequest("failure")
			RecordAuthDuration(time.Since(start).Seconds())
			http.Error(w, "session creation failed", http.StatusInternalServerError)
			return
		}

		// The token expiry mirrors the session expiry. The session's sliding
		// refresh can outlive the token; clients re-login when it does.
		secret := []byte(os.Getenv("JWT_SECRET"))
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": req.Email,
			"sid": sess.ID,
			"iat": time.Now().Unix(),
			"exp": sess.ExpiresAt.Unix(),
		})

		signed, err := token.SignedString(secret)
		if err != nil {
			logger.Error("token generation failed",
				slog.String("error", err.Error()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
			RecordAuthRequest("failure")
			RecordAuthDuration(time.Since(start).Seconds())
			http.Error(w, "token generation failed", http.StatusInternalServerError)
			return
		}

		logger.Info("authentication successful",
			slog.String("session_id", sess.ID),
			slog.Bool("remember_me", req.RememberMe),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		RecordAuthRequest("success")
		RecordAuthDuration(time.Since(start).Seconds())

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(tokenResponse{
			Token:     signed,
			SessionID: sess.ID,
			ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
		}); err != nil {
			logger.Error("response encoding failed", slog.String("error", err.Error()))
		}
	}
}

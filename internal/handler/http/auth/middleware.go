package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"creator-insights/internal/handler/http/middleware"
	"creator-insights/internal/handler/http/respond"
	"creator-insights/internal/session"

	"github.com/golang-jwt/jwt/v5"
)

// Middleware returns an authorization middleware for protected endpoints.
//
// Validation happens in two steps:
//  1. The bearer JWT is verified: HS256 signature, expiry, and claim shape.
//  2. The session named by the token's sid claim is loaded from the session
//     store, which enforces revocation, expiry, and IP binding.
//
// A token that passes signature checks but whose session was revoked is
// rejected. This is the point of binding tokens to sessions: logout and
// revoke-all work instantly, with no token blocklist.
func Middleware(sessions *session.Store, ipExtractor middleware.IPExtractor) func(http.Handler) http.Handler {
	secret := []byte(os.Getenv("JWT_SECRET"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, sid, err := validateJWT(r.Header.Get("Authorization"), secret)
			if err != nil {
				RecordTokenValidation("invalid")
				respond.SafeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized: %w", err))
				return
			}

			clientIP, err := ipExtractor.ExtractIP(r)
			if err != nil {
				clientIP = ""
			}

			sess, err := sessions.Get(r.Context(), sid, session.AccessParams{IPAddress: clientIP})
			if err != nil {
				switch {
				case errors.Is(err, session.ErrSessionExpired):
					RecordTokenValidation("expired")
					respond.SafeError(w, http.StatusUnauthorized, errors.New("session expired"))
				case errors.Is(err, session.ErrIPMismatch):
					RecordTokenValidation("ip_mismatch")
					respond.SafeError(w, http.StatusForbidden, errors.New("forbidden"))
				default:
					RecordTokenValidation("invalid")
					respond.SafeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
				}
				return
			}

			RecordTokenValidation("valid")
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user, sess)))
		})
	}
}

func validateJWT(authz string, secret []byte) (string, string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", "", errors.New("missing bearer token")
	}
	tokenString := strings.TrimPrefix(authz, prefix)
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return "", "", errors.New("invalid token")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return "", "", errors.New("invalid sub claim")
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", "", errors.New("invalid sid claim")
	}
	return sub, sid, nil
}

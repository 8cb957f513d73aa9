// Package auth implements login, session-backed JWT validation, and session
// management endpoints. A token carries the session ID in its claims; the
// session store is the source of truth for revocation and IP binding, so a
// stolen token dies with its session.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"os"
	"strings"
)

// Credentials are the username and password supplied at login.
type Credentials struct {
	Username string
	Password string
}

// Provider validates login credentials.
type Provider interface {
	ValidateCredentials(ctx context.Context, creds Credentials) error
	Name() string
}

// BasicAuthProvider implements environment-based authentication.
type BasicAuthProvider struct {
	minPasswordLength int
	weakPasswords     []string
}

// NewBasicAuthProvider creates a new basic auth provider.
func NewBasicAuthProvider(minPasswordLength int, weakPasswords []string) *BasicAuthProvider {
	return &BasicAuthProvider{
		minPasswordLength: minPasswordLength,
		weakPasswords:     weakPasswords,
	}
}

// ValidateCredentials validates credentials against environment variables.
func (p *BasicAuthProvider) ValidateCredentials(ctx context.Context, creds Credentials) error {
	// Check if credentials are empty
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("credentials must not be empty")
	}

	// Check password length
	if len(creds.Password) < p.minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", p.minPasswordLength)
	}

	// Check for weak passwords
	for _, weak := range p.weakPasswords {
		if creds.Password == weak || strings.HasPrefix(creds.Password, weak) {
			return fmt.Errorf("weak password detected")
		}
	}

	adminUser := os.Getenv("ADMIN_USER")
	adminPass := os.Getenv("ADMIN_USER_PASSWORD")

	// Use constant-time comparison to prevent timing attacks
	userMatch := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(adminUser)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(creds.Password), []byte(adminPass)) == 1

	if !userMatch || !passMatch {
		return fmt.Errorf("invalid credentials")
	}

	return nil
}

// Name returns the provider name.
func (p *BasicAuthProvider) Name() string {
	return "basic"
}

// minSecretLength is the minimum acceptable JWT secret length in bytes.
// HS256 security degrades sharply below the hash block size.
const minSecretLength = 32

// ValidateAuthEnvironment verifies that the variables login and token
// validation depend on are set and sane. Called once at startup so a
// misconfigured deployment fails fast instead of rejecting every login.
func ValidateAuthEnvironment() error {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	if len(secret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", minSecretLength, len(secret))
	}
	if os.Getenv("ADMIN_USER") == "" {
		return fmt.Errorf("ADMIN_USER is not set")
	}
	if os.Getenv("ADMIN_USER_PASSWORD") == "" {
		return fmt.Errorf("ADMIN_USER_PASSWORD is not set")
	}
	return nil
}

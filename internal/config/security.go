package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SecurityConfig mirrors configs/security.yaml: auth provider selection,
// password policy for the basic provider, JWT signing parameters, and the
// endpoints served without a token.
type SecurityConfig struct {
	Security struct {
		Auth            AuthConfig `yaml:"auth"`
		PublicEndpoints []string   `yaml:"public_endpoints"`
		JWT             JWTConfig  `yaml:"jwt"`
	} `yaml:"security"`
}

type AuthConfig struct {
	Provider string          `yaml:"provider"`
	Basic    BasicAuthConfig `yaml:"basic"`
}

type BasicAuthConfig struct {
	MinPasswordLength int      `yaml:"min_password_length"`
	WeakPasswords     []string `yaml:"weak_passwords"`
}

type JWTConfig struct {
	SecretEnv   string `yaml:"secret_env"`
	ExpiryHours int    `yaml:"expiry_hours"`
}

// LoadSecurityConfig reads and validates the security YAML. The path comes
// from a CLI flag or a hardcoded default, never from request input.
func LoadSecurityConfig(path string) (*SecurityConfig, error) {
	// #nosec G304 -- path is provided by trusted source (CLI arg or config), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &SecurityConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *SecurityConfig) validate() error {
	auth := c.Security.Auth
	if auth.Provider == "" {
		return errors.New("auth provider is required")
	}

	// Password policy only applies to the basic provider.
	if auth.Provider == "basic" {
		switch {
		case auth.Basic.MinPasswordLength <= 0:
			return errors.New("min_password_length must be positive")
		case auth.Basic.MinPasswordLength < 8:
			return errors.New("min_password_length must be at least 8")
		}
	}

	jwt := c.Security.JWT
	if jwt.SecretEnv == "" {
		return errors.New("jwt secret_env is required")
	}
	if jwt.ExpiryHours <= 0 {
		return errors.New("jwt expiry_hours must be positive")
	}
	return nil
}

func (c *SecurityConfig) GetAuthProvider() string {
	return c.Security.Auth.Provider
}

func (c *SecurityConfig) GetMinPasswordLength() int {
	return c.Security.Auth.Basic.MinPasswordLength
}

func (c *SecurityConfig) GetWeakPasswords() []string {
	return c.Security.Auth.Basic.WeakPasswords
}

func (c *SecurityConfig) GetPublicEndpoints() []string {
	return c.Security.PublicEndpoints
}

func (c *SecurityConfig) GetJWTSecretEnv() string {
	return c.Security.JWT.SecretEnv
}

func (c *SecurityConfig) GetJWTExpiryHours() int {
	return c.Security.JWT.ExpiryHours
}

package config

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Security SecurityConfig `yaml:"security"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SecurityConfig contains credential and account-protection settings
type SecurityConfig struct {
	// SigningKey signs session tokens. The server refuses to start
	// without it.
	SigningKey string `yaml:"signing_key"`
	SessionTTL string `yaml:"session_ttl"`

	BcryptCost int `yaml:"bcrypt_cost"`

	TOTPIssuer string `yaml:"totp_issuer"`

	LockoutThreshold int    `yaml:"lockout_threshold"`
	LockoutDuration  string `yaml:"lockout_duration"`

	// AllowLegacyPlaintext enables the migration path for accounts whose
	// stored credential predates hashing. Scheduled for removal once all
	// accounts have rotated their passwords.
	AllowLegacyPlaintext bool `yaml:"allow_legacy_plaintext"`

	Password PasswordRulesConfig `yaml:"password"`
}

// PasswordRulesConfig contains password complexity thresholds
type PasswordRulesConfig struct {
	MinLength     int  `yaml:"min_length"`
	RequireUpper  bool `yaml:"require_upper"`
	RequireLower  bool `yaml:"require_lower"`
	RequireDigit  bool `yaml:"require_digit"`
	RequireSymbol bool `yaml:"require_symbol"`
}

// AdminConfig contains admin configuration
type AdminConfig struct {
	Token string `yaml:"token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	// Database validation
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Security validation. A missing signing key is a configuration
	// error, not something to recover from per request.
	if c.Security.SigningKey == "" {
		return fmt.Errorf("security.signing_key is required")
	}
	if _, err := time.ParseDuration(c.Security.SessionTTL); err != nil {
		return fmt.Errorf("security.session_ttl is invalid: %w", err)
	}
	if c.Security.BcryptCost != 0 && (c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost) {
		return fmt.Errorf("security.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Security.LockoutThreshold <= 0 {
		return fmt.Errorf("security.lockout_threshold must be positive")
	}
	if _, err := parseDuration(c.Security.LockoutDuration); err != nil {
		return fmt.Errorf("security.lockout_duration is invalid: %w", err)
	}
	if c.Security.Password.MinLength <= 0 {
		return fmt.Errorf("security.password.min_length must be positive")
	}

	// Admin validation
	if c.Admin.Token == "" {
		return fmt.Errorf("admin.token is required")
	}

	// Logging validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}

	return nil
}

// GetSessionTTL returns the session token validity as time.Duration
func (c *Config) GetSessionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Security.SessionTTL)
	return d
}

// GetLockoutDuration returns the lockout window as time.Duration
func (c *Config) GetLockoutDuration() time.Duration {
	d, _ := parseDuration(c.Security.LockoutDuration)
	return d
}

// parseDuration parses duration with support for days (e.g., "90d")
func parseDuration(s string) (time.Duration, error) {
	// Handle "d" suffix for days
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		var d int
		if _, err := fmt.Sscanf(days, "%d", &d); err != nil {
			return 0, err
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

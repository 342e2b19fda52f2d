// Package common provides shared utilities for the summary service
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the summary service
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Digest      DigestConfig  `toml:"digest"`
	Logging     LoggingConfig `toml:"logging"`
	Auth        AuthConfig    `toml:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds path configuration for the two storage areas.
type StorageConfig struct {
	Credentials AreaConfig `toml:"credentials"` // OAuth credential records (BadgerHold)
	Digests     AreaConfig `toml:"digests"`     // Generated digest entries (BadgerHold)
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Google GoogleConfig `toml:"google"`
	Gemini GeminiConfig `toml:"gemini"`
}

// GoogleConfig holds Google Calendar/Gmail API configuration
type GoogleConfig struct {
	RateLimit  int    `toml:"rate_limit"`
	Timeout    string `toml:"timeout"`
	MaxEvents  int    `toml:"max_events"`
	MaxEmails  int    `toml:"max_emails"`
	WindowSpan string `toml:"window_span"` // calendar look-ahead, duration string
}

// GetTimeout parses and returns the timeout duration
func (c *GoogleConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetWindowSpan parses and returns the calendar look-ahead duration
func (c *GoogleConfig) GetWindowSpan() time.Duration {
	d, err := time.ParseDuration(c.WindowSpan)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the generation timeout duration
func (c *GeminiConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// DigestConfig holds digest cache and sweep configuration.
type DigestConfig struct {
	StalenessWindow string `toml:"staleness_window"` // max cached digest age, duration string
	SweepInterval   string `toml:"sweep_interval"`   // background refresh interval
	SweepWorkers    int    `toml:"sweep_workers"`    // bounded sweep concurrency
}

// GetStalenessWindow parses and returns the staleness window duration.
func (c *DigestConfig) GetStalenessWindow() time.Duration {
	d, err := time.ParseDuration(c.StalenessWindow)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// GetSweepInterval parses and returns the background sweep interval.
func (c *DigestConfig) GetSweepInterval() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil {
		return 60 * time.Minute
	}
	return d
}

// AuthConfig holds authentication configuration for Google OAuth and session JWTs.
type AuthConfig struct {
	JWTSecret     string        `toml:"jwt_secret"`
	SessionExpiry string        `toml:"session_expiry"` // duration string, default "24h"
	RedirectURL   string        `toml:"redirect_url"`
	FrontendURL   string        `toml:"frontend_url"`
	Google        OAuthProvider `toml:"google"`
}

// OAuthProvider holds OAuth client credentials for an external provider.
type OAuthProvider struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// GetSessionExpiry parses and returns the session token expiry duration.
func (c *AuthConfig) GetSessionExpiry() time.Duration {
	d, err := time.ParseDuration(c.SessionExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Storage: StorageConfig{
			Credentials: AreaConfig{Path: "data/credentials"},
			Digests:     AreaConfig{Path: "data/digests"},
		},
		Clients: ClientsConfig{
			Google: GoogleConfig{
				RateLimit:  5,
				Timeout:    "30s",
				MaxEvents:  50,
				MaxEmails:  5,
				WindowSpan: "24h",
			},
			Gemini: GeminiConfig{
				Model:   "gemini-2.0-flash",
				Timeout: "60s",
			},
		},
		Digest: DigestConfig{
			StalenessWindow: "30m",
			SweepInterval:   "60m",
			SweepWorkers:    4,
		},
		Auth: AuthConfig{
			JWTSecret:     "dev-jwt-secret-change-in-production",
			SessionExpiry: "24h",
			RedirectURL:   "http://localhost:5000/api/auth/callback",
			FrontendURL:   "http://localhost:3000",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.Digest.SweepWorkers <= 0 {
		config.Digest.SweepWorkers = 4
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SUMMARY_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("SUMMARY_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("SUMMARY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("SUMMARY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("SUMMARY_DATA_PATH"); path != "" {
		config.Storage.Credentials.Path = path + "/credentials"
		config.Storage.Digests.Path = path + "/digests"
	}

	if v := os.Getenv("SUMMARY_STALENESS_WINDOW"); v != "" {
		config.Digest.StalenessWindow = v
	}
	if v := os.Getenv("SUMMARY_SWEEP_INTERVAL"); v != "" {
		config.Digest.SweepInterval = v
	}

	// Auth overrides
	if v := os.Getenv("SUMMARY_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		config.Auth.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		config.Auth.Google.ClientSecret = v
	}
	if v := os.Getenv("GOOGLE_REDIRECT_URI"); v != "" {
		config.Auth.RedirectURL = v
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		config.Auth.FrontendURL = v
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		config.Clients.Gemini.Model = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable for the server process.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Sweeper    SweeperConfig
	Classifier ClassifierConfig
	Uploads    UploadsConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string // empty means in-memory store
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Address  string // empty means in-process feed cache
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	TokenTTL        time.Duration
	AdminPassphrase string
	// AllowedEmailDomains restricts registration when non-empty.
	AllowedEmailDomains []string
}

type SweeperConfig struct {
	Interval    time.Duration
	GraceWindow time.Duration
}

type ClassifierConfig struct {
	URL     string // empty disables the remote classifier
	APIKey  string
	Model   string
	Timeout time.Duration
}

type UploadsConfig struct {
	Dir string
}

type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	Enabled           bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, applying defaults for
// everything except the JWT secret, which is required.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            envString("SERVER_HOST", "0.0.0.0"),
			Port:            envInt("SERVER_PORT", 8080),
			ShutdownTimeout: envDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             os.Getenv("DATABASE_DSN"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Address:  os.Getenv("REDIS_ADDRESS"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:           os.Getenv("JWT_SECRET"),
			TokenTTL:            envDuration("TOKEN_TTL", 30*time.Minute),
			AdminPassphrase:     os.Getenv("ADMIN_PASSPHRASE"),
			AllowedEmailDomains: envList("ALLOWED_EMAIL_DOMAINS"),
		},
		Sweeper: SweeperConfig{
			Interval:    envDuration("SWEEP_INTERVAL", time.Minute),
			GraceWindow: envDuration("PROOF_GRACE_WINDOW", 24*time.Hour),
		},
		Classifier: ClassifierConfig{
			URL:     os.Getenv("CLASSIFIER_URL"),
			APIKey:  os.Getenv("CLASSIFIER_API_KEY"),
			Model:   envString("CLASSIFIER_MODEL", "llama3.2:1b"),
			Timeout: envDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
		},
		Uploads: UploadsConfig{
			Dir: envString("UPLOADS_DIR", "uploads"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envInt("RATE_LIMIT_RPS", 10),
			Burst:             envInt("RATE_LIMIT_BURST", 20),
			Enabled:           envBool("RATE_LIMIT_ENABLED", true),
		},
		Logging: LoggingConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "text"),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

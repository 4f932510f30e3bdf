// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for the admin middleware.
type JWTConfig interface {
	GetJWTAdminSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// RegistryConfig provides settings for the upstream entity registry API.
type RegistryConfig interface {
	GetRegistryBaseURL() string
	GetRegistryRPS() float64
	GetRegistryBurst() int
	GetRegistryTimeout() time.Duration
	GetRegistryMaxRetries() int
	GetRegistryPageSize() int
}

// CollectorConfig provides settings for the bulk collector.
type CollectorConfig interface {
	GetCollectorConcurrency() int
}

// SchedulerConfig provides settings for the asynq-based job scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	JWTAdminSecret       string
	CORSAllowAll         bool
	CORSOrigins          []string
	RegistryBaseURL      string
	RegistryRPS          float64
	RegistryBurst        int
	RegistryTimeout      time.Duration
	RegistryMaxRetries   int
	RegistryPageSize     int
	CollectorConcurrency int
	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
}

// Load reads configuration from the environment (and an optional .env file).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		JWTAdminSecret:       getEnv("JWT_ADMIN_SECRET", ""),
		CORSAllowAll:         corsAllowAll,
		CORSOrigins:          corsOrigins,
		RegistryBaseURL:      getEnv("REGISTRY_BASE_URL", "https://data.brreg.no/enhetsregisteret/api"),
		RegistryRPS:          mustFloat(getEnv("REGISTRY_RPS", "4")),
		RegistryBurst:        mustInt(getEnv("REGISTRY_BURST", "2")),
		RegistryTimeout:      mustDuration(getEnv("REGISTRY_TIMEOUT", "15s")),
		RegistryMaxRetries:   mustInt(getEnv("REGISTRY_MAX_RETRIES", "3")),
		RegistryPageSize:     mustInt(getEnv("REGISTRY_PAGE_SIZE", "500")),
		CollectorConcurrency: mustInt(getEnv("COLLECTOR_CONCURRENCY", "1")),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisTLSInsecure:     strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:       getEnv("ASYNQ_QUEUE", "collection"),
		AsynqConcurrency:     mustInt(getEnv("ASYNQ_CONCURRENCY", "2")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAdminSecret == "" && !strings.EqualFold(cfg.Env, "development") {
		return nil, fmt.Errorf("JWT_ADMIN_SECRET is required outside development")
	}
	if cfg.RegistryRPS <= 0 {
		return nil, fmt.Errorf("REGISTRY_RPS must be positive")
	}
	if cfg.RegistryPageSize < 1 || cfg.RegistryPageSize > 1000 {
		return nil, fmt.Errorf("REGISTRY_PAGE_SIZE must be between 1 and 1000")
	}
	if cfg.CollectorConcurrency < 1 {
		cfg.CollectorConcurrency = 1
	}

	return cfg, nil
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string    { return c.DatabaseURL }
func (c *Config) GetJWTAdminSecret() string { return c.JWTAdminSecret }

func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

func (c *Config) GetRegistryBaseURL() string        { return c.RegistryBaseURL }
func (c *Config) GetRegistryRPS() float64           { return c.RegistryRPS }
func (c *Config) GetRegistryBurst() int             { return c.RegistryBurst }
func (c *Config) GetRegistryTimeout() time.Duration { return c.RegistryTimeout }
func (c *Config) GetRegistryMaxRetries() int        { return c.RegistryMaxRetries }
func (c *Config) GetRegistryPageSize() int          { return c.RegistryPageSize }

func (c *Config) GetCollectorConcurrency() int { return c.CollectorConcurrency }

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func mustFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

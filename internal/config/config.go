// Package config loads the backend's runtime configuration from the
// environment into a single typed struct, the way cmd/main.go in the
// teacher codebase reads os.Getenv directly but centralized so every other
// package takes a *Config instead of reaching into the environment itself.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/logintel/backend/internal/models"
)

// Config is the flat set of values every component needs at startup.
type Config struct {
	Port int

	DatabaseHost     string
	DatabasePort     int
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabaseSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool

	SearchURL string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	CORSAllowedOrigins []string

	RateLimits map[models.EndpointClass]models.RateLimit

	ModelArtifactDir   string
	AnalyzerWindow     time.Duration
	AnalyzerBatchLimit int

	ReadTimeout   time.Duration
	IngestTimeout time.Duration

	LogLevel string
	Pretty   bool
}

// Load populates a Config from the environment, applying the same defaults
// the teacher's cmd/main.go falls back to when a variable is unset.
func Load() *Config {
	cfg := &Config{
		Port: envInt("PORT", 8080),

		DatabaseHost:     envString("DB_HOST", "localhost"),
		DatabasePort:     envInt("DB_PORT", 5432),
		DatabaseUser:     envString("DB_USER", "logintel"),
		DatabasePassword: envString("DB_PASSWORD", ""),
		DatabaseName:     envString("DB_NAME", "logintel"),
		DatabaseSSLMode:  envString("DB_SSLMODE", "disable"),

		RedisAddr:     envString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: envString("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),
		CacheEnabled:  envBool("CACHE_ENABLED", true),

		SearchURL: envString("SEARCH_URL", "http://localhost:9200"),

		JWTSecret:       envString("JWT_SECRET", ""),
		AccessTokenTTL:  envDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL: envDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", nil),

		RateLimits: defaultRateLimits(),

		ModelArtifactDir:   envString("MODEL_ARTIFACT_DIR", "./models"),
		AnalyzerWindow:     envDuration("ANALYZER_WINDOW", 24*time.Hour),
		AnalyzerBatchLimit: envInt("ANALYZER_BATCH_LIMIT", 1000),

		ReadTimeout:   envDuration("READ_TIMEOUT", 10*time.Second),
		IngestTimeout: envDuration("INGEST_TIMEOUT", 30*time.Second),

		LogLevel: envString("LOG_LEVEL", "info"),
		Pretty:   envBool("LOG_PRETTY", false),
	}
	return cfg
}

// defaultRateLimits mirrors the limits table in spec §4.A.
func defaultRateLimits() map[models.EndpointClass]models.RateLimit {
	return map[models.EndpointClass]models.RateLimit{
		models.EndpointClassLogin:     {Class: models.EndpointClassLogin, Max: 5, Window: 5 * time.Minute},
		models.EndpointClassRegister:  {Class: models.EndpointClassRegister, Max: 3, Window: time.Hour},
		models.EndpointClassSearch:    {Class: models.EndpointClassSearch, Max: 100, Window: 5 * time.Minute},
		models.EndpointClassIngest:    {Class: models.EndpointClassIngest, Max: 1000, Window: time.Hour},
		models.EndpointClassAdmin:     {Class: models.EndpointClassAdmin, Max: 200, Window: 5 * time.Minute},
		models.EndpointClassAnonymous: {Class: models.EndpointClassAnonymous, Max: 100, Window: time.Hour},
		models.EndpointClassAPIKey:    {Class: models.EndpointClassAPIKey, Max: 5000, Window: time.Hour},
	}
}

// Validate rejects a Config that would start the server into a broken
// state, the same fail-fast discipline db.validateConfig applies to
// connection parameters.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("config: JWT_SECRET must be at least 16 characters")
	}
	if strings.TrimSpace(c.DatabaseHost) == "" {
		return fmt.Errorf("config: DB_HOST is required")
	}
	if c.DatabasePort <= 0 || c.DatabasePort > 65535 {
		return fmt.Errorf("config: invalid DB_PORT %d", c.DatabasePort)
	}
	switch c.DatabaseSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("config: invalid DB_SSLMODE %q", c.DatabaseSSLMode)
	}
	for _, origin := range c.CORSAllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("config: CORS_ALLOWED_ORIGINS must not contain a wildcard")
		}
	}
	if c.AnalyzerBatchLimit <= 0 || c.AnalyzerBatchLimit > 1000 {
		return fmt.Errorf("config: ANALYZER_BATCH_LIMIT must be between 1 and 1000")
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

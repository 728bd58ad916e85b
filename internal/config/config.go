// Package config reads the server configuration from the environment.
package config

import (
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// devSecret signs tokens when the server runs on the in-memory store without
// JWT_SECRET.
const devSecret = "dev-secret-change-me"

// Config holds environment-based settings.
type Config struct {
	Addr        string
	DatabaseURL string

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	RedisAddr       string
	RedisUsername   string
	RedisPassword   string
	ProfileCacheTTL time.Duration

	MQTTBroker string

	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	LogLevel             string
	LogFormat            string
	SessionSweepInterval time.Duration
}

// InMemory reports whether no database is configured.
func (c *Config) InMemory() bool { return c.DatabaseURL == "" }

// OIDCEnabled reports whether single sign-on is configured.
func (c *Config) OIDCEnabled() bool { return c.OIDCIssuer != "" && c.OIDCClientID != "" }

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{
		Addr:                 getEnv("ADDR", ":8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		JWTIssuer:            getEnv("JWT_ISSUER", "namaz"),
		TokenTTL:             getDurationEnv("TOKEN_TTL", 72*time.Hour),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisUsername:        os.Getenv("REDIS_USERNAME"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		ProfileCacheTTL:      getDurationEnv("PROFILE_CACHE_TTL", 10*time.Minute),
		MQTTBroker:           os.Getenv("MQTT_BROKER"),
		OIDCIssuer:           os.Getenv("OIDC_ISSUER"),
		OIDCClientID:         os.Getenv("OIDC_CLIENT_ID"),
		OIDCClientSecret:     os.Getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURL:      os.Getenv("OIDC_REDIRECT_URL"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		SessionSweepInterval: getDurationEnv("SESSION_SWEEP_INTERVAL", time.Hour),
	}

	if cfg.JWTSecret == "" {
		if !cfg.InMemory() {
			return nil, errors.New("JWT_SECRET is required")
		}
		cfg.JWTSecret = devSecret
	}
	if cfg.OIDCIssuer != "" && cfg.OIDCRedirectURL == "" {
		return nil, errors.New("OIDC_REDIRECT_URL is required when OIDC_ISSUER is set")
	}
	return cfg, nil
}

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

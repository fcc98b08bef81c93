// Package config loads the control plane's runtime configuration from the
// environment, with safe defaults and clamping instead of startup failure on
// malformed values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the application needs.
type Config struct {
	HTTPAddr string

	LogLevel  string
	LogFormat string

	JWTSecret string

	LiveEngineTimeout     time.Duration
	TraderDataTimeout     time.Duration
	MarketContextCacheTTL time.Duration
	ReconcileInterval     time.Duration

	DatabaseURL string
}

// Load reads a local .env file if present (ignored if absent) and then
// parses the process environment into a Config.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:  getEnv("CONTROLPLANE_HTTP_ADDR", ":8080"),
		LogLevel:  getEnv("CONTROLPLANE_LOG_LEVEL", "info"),
		LogFormat: getEnv("CONTROLPLANE_LOG_FORMAT", "text"),
		JWTSecret: getEnv("PLATFORM_AUTH_JWT_HS256_SECRET", ""),

		LiveEngineTimeout:     getSecondsEnv("LIVE_ENGINE_TIMEOUT_SECONDS", 8.0),
		TraderDataTimeout:     getSecondsEnv("TRADER_DATA_TIMEOUT_SECONDS", 8.0),
		MarketContextCacheTTL: getSecondsEnv("PLATFORM_MARKET_CONTEXT_CACHE_TTL_SECONDS", 120.0),
		ReconcileInterval:     clampSeconds(getSecondsEnv("CONTROLPLANE_RECONCILE_INTERVAL_SECONDS", 30.0), 1.0),

		DatabaseURL: getEnv("DATABASE_URL", ""),
	}
}

// UsesDurableStore reports whether a Postgres DSN was configured.
func (c *Config) UsesDurableStore() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue float64) time.Duration {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return time.Duration(defaultValue * float64(time.Second))
}

func clampSeconds(d time.Duration, minSeconds float64) time.Duration {
	min := time.Duration(minSeconds * float64(time.Second))
	if d < min {
		return min
	}
	return d
}

// String renders the configuration with the JWT secret redacted, safe for
// startup logging.
func (c *Config) String() string {
	secretState := "unset"
	if c.JWTSecret != "" {
		secretState = "set"
	}
	return fmt.Sprintf(
		"httpAddr=%s logLevel=%s logFormat=%s jwtSecret=%s reconcileInterval=%s durableStore=%v",
		c.HTTPAddr, c.LogLevel, c.LogFormat, secretState, c.ReconcileInterval, c.UsesDurableStore(),
	)
}

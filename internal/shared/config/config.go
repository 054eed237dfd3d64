package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the gateway. It is built once at startup
// and passed into constructors; nothing mutates it afterwards.
type Config struct {
	// Server
	Port  string
	Env   string
	Debug bool

	// Stores
	RedisURL    string
	DatabaseURL string

	// Auth
	AdminKey string

	// Upstream
	UpstreamKeys    []string
	UpstreamBaseURL string
	UpstreamTimeout time.Duration

	// Rate limiting
	RateLimitEnabled bool
	RateLimit        int
	RateLimitPeriod  time.Duration

	// Caching
	CacheEnabled bool
	CacheTTL     time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "3000"),
		Env:              getEnv("ENV", "development"),
		Debug:            getEnvBool("DEBUG", false),
		RedisURL:         lookupEnv("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		AdminKey:         getEnv("ADMIN_KEY", ""),
		UpstreamBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		UpstreamTimeout:  time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 60)) * time.Second,
		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimit:        getEnvInt("RATE_LIMIT", 100),
		RateLimitPeriod:  time.Duration(getEnvInt("RATE_LIMIT_PERIOD_MS", 60000)) * time.Millisecond,
		CacheEnabled:     getEnvBool("CACHE_ENABLED", true),
		CacheTTL:         time.Duration(getEnvInt("CACHE_TTL_SECONDS", 604800)) * time.Second,
	}

	for _, k := range strings.Split(getEnv("OPENAI_API_KEYS", ""), ",") {
		if k = strings.TrimSpace(k); k != "" {
			cfg.UpstreamKeys = append(cfg.UpstreamKeys, k)
		}
	}

	if len(cfg.UpstreamKeys) == 0 {
		return nil, fmt.Errorf("OPENAI_API_KEYS is required")
	}
	if cfg.AdminKey == "" {
		return nil, fmt.Errorf("ADMIN_KEY is required")
	}

	return cfg, nil
}

// lookupEnv distinguishes an unset variable from one set to empty, so
// REDIS_URL="" can deliberately select the in-memory store.
func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

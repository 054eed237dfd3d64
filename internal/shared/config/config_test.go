package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEYS", "sk-a, sk-b,")
	t.Setenv("ADMIN_KEY", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if !cfg.RateLimitEnabled {
		t.Error("rate limiting disabled by default, want enabled")
	}
	if cfg.RateLimit != 100 {
		t.Errorf("RateLimit = %d, want 100", cfg.RateLimit)
	}
	if cfg.RateLimitPeriod != time.Minute {
		t.Errorf("RateLimitPeriod = %v, want 1m", cfg.RateLimitPeriod)
	}
	if cfg.CacheTTL != 7*24*time.Hour {
		t.Errorf("CacheTTL = %v, want 168h", cfg.CacheTTL)
	}
	if cfg.UpstreamBaseURL != "https://api.openai.com" {
		t.Errorf("UpstreamBaseURL = %q", cfg.UpstreamBaseURL)
	}
}

func TestLoad_SplitsCredentialPool(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.UpstreamKeys) != 2 || cfg.UpstreamKeys[0] != "sk-a" || cfg.UpstreamKeys[1] != "sk-b" {
		t.Errorf("UpstreamKeys = %v, want [sk-a sk-b]", cfg.UpstreamKeys)
	}
}

func TestLoad_RequiresUpstreamKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEYS", "")
	t.Setenv("ADMIN_KEY", "secret")

	if _, err := Load(); err == nil {
		t.Error("expected error without OPENAI_API_KEYS")
	}
}

func TestLoad_RequiresAdminKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEYS", "sk-a")
	t.Setenv("ADMIN_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("expected error without ADMIN_KEY")
	}
}

func TestLoad_EmptyRedisURLSelectsMemoryStore(t *testing.T) {
	setRequired(t)
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty", cfg.RedisURL)
	}
}

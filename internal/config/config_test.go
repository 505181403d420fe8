package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := FromViper(newViper())

	if cfg.HTTPPort != "8081" {
		t.Errorf("HTTPPort = %q", cfg.HTTPPort)
	}
	if cfg.ScanResetDelay != time.Second {
		t.Errorf("ScanResetDelay = %s", cfg.ScanResetDelay)
	}
	if cfg.PageSize != 10 {
		t.Errorf("PageSize = %d", cfg.PageSize)
	}
	if len(cfg.CORSAllowOrigins) != 1 || cfg.CORSAllowOrigins[0] != "*" {
		t.Errorf("CORSAllowOrigins = %v", cfg.CORSAllowOrigins)
	}
	if cfg.CloudinaryConfigured() {
		t.Error("cloudinary should not be configured by default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("SCAN_RESET_DELAY", "2500ms")
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://wisuda.example, https://admin.example")

	cfg := FromViper(newViper())

	if !cfg.Production() {
		t.Error("expected production")
	}
	if cfg.StoreBackend != "memory" {
		t.Errorf("StoreBackend = %q", cfg.StoreBackend)
	}
	if cfg.ScanResetDelay != 2500*time.Millisecond {
		t.Errorf("ScanResetDelay = %s", cfg.ScanResetDelay)
	}
	if cfg.PageSize != 25 {
		t.Errorf("PageSize = %d", cfg.PageSize)
	}
	if len(cfg.CORSAllowOrigins) != 2 || cfg.CORSAllowOrigins[1] != "https://admin.example" {
		t.Errorf("CORSAllowOrigins = %v", cfg.CORSAllowOrigins)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SCAN_LOCK_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "-3")

	cfg := FromViper(newViper())

	if cfg.ScanLockTTL != 10*time.Second {
		t.Errorf("ScanLockTTL = %s", cfg.ScanLockTTL)
	}
	if cfg.RateLimitPerMin != 120 {
		t.Errorf("RateLimitPerMin = %d", cfg.RateLimitPerMin)
	}
}

func TestMemoryStoreForcesMemoryQueue(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("QUEUE_BACKEND", "redis")

	cfg := FromViper(newViper())
	if cfg.QueueBackend != "memory" {
		t.Fatalf("QueueBackend = %q, want memory", cfg.QueueBackend)
	}
}

package config_test

import (
	"testing"
	"time"

	"github.com/iho/bankito/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}

	if cfg.RedisURL != "" {
		t.Fatalf("expected redis to be disabled by default, got %q", cfg.RedisURL)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.IsolationLevel != "READ_COMMITTED" {
		t.Fatalf("expected READ_COMMITTED by default, got %s", cfg.IsolationLevel)
	}

	if cfg.TransferPause != 0 || cfg.TransferMaxRetries != 0 {
		t.Fatalf("expected no pause and no retries by default, got %s/%d", cfg.TransferPause, cfg.TransferMaxRetries)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("JWT_SECRET", "top-secret")
	t.Setenv("ISOLATION_LEVEL", "SERIALIZABLE")
	t.Setenv("TRANSFER_PAUSE", "5s")
	t.Setenv("TRANSFER_MAX_RETRIES", "4")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected custom database URL, got %s", cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" {
		t.Fatalf("expected custom redis URL, got %s", cfg.RedisURL)
	}

	if cfg.HTTPPort != "9090" {
		t.Fatalf("expected HTTP port override, got %s", cfg.HTTPPort)
	}

	if cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected database timeout override, got %s", cfg.DatabaseTimeout)
	}

	if cfg.JWTSecret != "top-secret" {
		t.Fatalf("expected JWT secret override, got %s", cfg.JWTSecret)
	}

	if cfg.IsolationLevel != "SERIALIZABLE" || cfg.TransferPause != 5*time.Second || cfg.TransferMaxRetries != 4 {
		t.Fatalf("expected transfer settings override, got %s/%s/%d", cfg.IsolationLevel, cfg.TransferPause, cfg.TransferMaxRetries)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("TRANSFER_PAUSE", "not-a-duration")

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

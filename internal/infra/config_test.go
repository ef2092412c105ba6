package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "")
	t.Setenv("TASK_POLL_INTERVAL_MS", "")
	t.Setenv("VIDEO_CONCURRENCY", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.TaskPollInterval != 1500*time.Millisecond {
		t.Fatalf("TaskPollInterval = %s, want 1.5s", cfg.TaskPollInterval)
	}
	if cfg.TaskWaitTimeout != 10*time.Minute {
		t.Fatalf("TaskWaitTimeout = %s, want 10m", cfg.TaskWaitTimeout)
	}
	if cfg.ImageConcurrency != 4 || cfg.VideoConcurrency != 2 {
		t.Fatalf("concurrency = %d/%d, want 4/2", cfg.ImageConcurrency, cfg.VideoConcurrency)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}

func TestLoadConfigParsesOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("TASK_POLL_INTERVAL_MS", "250")
	t.Setenv("TASK_WAIT_TIMEOUT_SECONDS", "30")
	t.Setenv("VIDEO_CONCURRENCY", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.TaskPollInterval != 250*time.Millisecond {
		t.Fatalf("TaskPollInterval = %s, want 250ms", cfg.TaskPollInterval)
	}
	if cfg.TaskWaitTimeout != 30*time.Second {
		t.Fatalf("TaskWaitTimeout = %s, want 30s", cfg.TaskWaitTimeout)
	}
	if cfg.VideoConcurrency != 5 {
		t.Fatalf("VideoConcurrency = %d, want 5", cfg.VideoConcurrency)
	}
}

func TestLoadConfigParsesCORSOrigins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.test , http://b.test ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins = %#v, want 2 entries", cfg.CORSAllowedOrigins)
	}
	if cfg.CORSAllowedOrigins[0] != "http://a.test" || cfg.CORSAllowedOrigins[1] != "http://b.test" {
		t.Fatalf("CORSAllowedOrigins = %#v", cfg.CORSAllowedOrigins)
	}
}

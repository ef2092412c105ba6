package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	StoragePath    string
	StorageBaseURL string

	ImageAPIKey  string
	ImageBaseURL string
	ImageModel   string
	VideoAPIKey  string
	VideoBaseURL string
	VideoModel   string

	TaskPollInterval time.Duration
	TaskWaitTimeout  time.Duration
	ImageConcurrency int
	VideoConcurrency int

	CORSAllowedOrigins []string
	RateLimitPerMin    int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		ImageAPIKey:  os.Getenv("IMAGE_API_KEY"),
		ImageBaseURL: getEnv("IMAGE_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ImageModel:   getEnv("IMAGE_MODEL", "gemini-2.5-flash-image"),
		VideoAPIKey:  os.Getenv("VIDEO_API_KEY"),
		VideoBaseURL: getEnv("VIDEO_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VideoModel:   getEnv("VIDEO_MODEL", "veo-3.0-generate"),

		TaskPollInterval: time.Millisecond * time.Duration(getEnvInt("TASK_POLL_INTERVAL_MS", 1500)),
		TaskWaitTimeout:  time.Second * time.Duration(getEnvInt("TASK_WAIT_TIMEOUT_SECONDS", 600)),
		ImageConcurrency: getEnvInt("IMAGE_CONCURRENCY", 4),
		VideoConcurrency: getEnvInt("VIDEO_CONCURRENCY", 2),

		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = splitAndTrim(origins)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

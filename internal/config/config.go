package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries all process configuration, loaded from the
// environment with development defaults. A .env file in the working
// directory is honored when present.
type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL    string
	SessionTTL  time.Duration
	ScenarioDir string

	LLMProvider     string
	AnthropicAPIKey string
	ModelName       string

	// Investigation turnaround. Cultures take the long delay, all
	// other items the short one.
	LabDelay     time.Duration
	CultureDelay time.Duration
}

func Load() (*Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
		SessionTTL:      getDurationMS("SESSION_TTL_MS", 24*time.Hour),
		ScenarioDir:     getEnv("SCENARIO_DIR", "./data/scenarios"),
		LLMProvider:     getEnv("LLM_PROVIDER", "anthropic"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		ModelName:       getEnv("MODEL_NAME", "claude-sonnet-4-20250514"),
		LabDelay:        getDurationMS("LAB_DELAY_MS", 2*time.Second),
		CultureDelay:    getDurationMS("CULTURE_DELAY_MS", 5*time.Second),
	}

	if cfg.LabDelay <= 0 || cfg.CultureDelay <= 0 {
		return nil, fmt.Errorf("lab delays must be positive")
	}
	if cfg.CultureDelay < cfg.LabDelay {
		return nil, fmt.Errorf("culture delay must not be shorter than the regular lab delay")
	}

	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationMS(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	ms, err := strconv.Atoi(value)
	if err != nil || ms <= 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}

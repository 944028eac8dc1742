package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// TTS worker (Supabase Edge Function)
	TTSWorkerURL string
	TTSWorkerKey string
	WebhookToken string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Usage quota
	DailyGenerationLimit int
	UsageTimezone        string

	// Queue estimate
	SecondsPerJob int

	// Database
	DatabaseURL string

	// Server
	Port        string
	Environment string
	BaseURL     string
}

func Load() (*Config, error) {
	// Local dev convenience; a missing .env is not an error
	_ = godotenv.Load()

	cfg := &Config{
		TTSWorkerURL: getEnv("TTS_WORKER_URL", ""),
		TTSWorkerKey: getEnv("TTS_WORKER_KEY", ""),
		WebhookToken: getEnv("TTS_WEBHOOK_TOKEN", ""),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "voice-references"),

		DailyGenerationLimit: getEnvInt("DAILY_GENERATION_LIMIT", 15),
		UsageTimezone:        getEnv("USAGE_TIMEZONE", "America/Los_Angeles"),

		SecondsPerJob: getEnvInt("QUEUE_SECONDS_PER_JOB", 12),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TTSWorkerURL == "" {
		return fmt.Errorf("TTS_WORKER_URL is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.DailyGenerationLimit <= 0 {
		return fmt.Errorf("DAILY_GENERATION_LIMIT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

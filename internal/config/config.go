package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port            int
	Env             string
	LogLevel        string
	MaxUploadMB     int
	MaxConcurrent   int
	RateLimitPerSec int
	RateLimitBurst  int
	WorkerCount     int
	QueueSize       int
	JobTimeout      time.Duration
	PresetsFile     string
}

// Load reads .env files when present, then environment variables with defaults.
// Variables already set in the environment take precedence over .env values.
func Load() *Config {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		Port:            getEnvInt("PORT", 8080),
		Env:             getEnv("APP_ENV", "production"),
		LogLevel:        getEnv("LOG_LEVEL", ""),
		MaxUploadMB:     getEnvInt("MAX_UPLOAD_MB", 20),
		MaxConcurrent:   getEnvInt("MAX_CONCURRENT", 50),
		RateLimitPerSec: getEnvInt("RATE_LIMIT", 10),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 20),
		WorkerCount:     getEnvInt("WORKER_COUNT", 4),
		JobTimeout:      time.Duration(getEnvInt("JOB_TIMEOUT_SEC", 30)) * time.Second,
		PresetsFile:     getEnv("PRESETS_FILE", ""),
	}
	cfg.QueueSize = getEnvInt("QUEUE_SIZE", cfg.WorkerCount*2)
	return cfg
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}

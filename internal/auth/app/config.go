package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer string // Issuer claim for session tokens

	DatabaseFile string // Path to the SQLite database file (default: ./facegate.db)
	PepperFile   string // Path to the password hashing pepper file (default: ./pepper)

	TrackerDriver string // Attempt/session tracker backend: memory or redis (default: memory)
	RedisAddr     string // Redis address, required when TrackerDriver is redis

	SessionTTL time.Duration // Lifetime of an authenticated session (default: 12h)

	SMTPAddr     string // SMTP relay host:port; empty disables real email delivery
	SMTPFrom     string // From address for login codes
	SMTPUsername string // Optional SMTP AUTH credentials
	SMTPPassword string

	FaceExtractorURL string // Base URL of the embedding service; empty disables biometrics

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Tracker sweep interval (default: 5m)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:               getEnvOrDefault("FACEGATE_ISSUER", "facegate"),
		DatabaseFile:         getEnvOrDefault("FACEGATE_DATABASE_FILE", "facegate.db"),
		PepperFile:           getEnvOrDefault("FACEGATE_PEPPER_FILE", "pepper"),
		TrackerDriver:        getEnvOrDefault("FACEGATE_TRACKER", "memory"),
		RedisAddr:            os.Getenv("FACEGATE_REDIS_ADDR"),
		SessionTTL:           getEnvDurationOrDefault("FACEGATE_SESSION_TTL", 12*time.Hour),
		SMTPAddr:             os.Getenv("FACEGATE_SMTP_ADDR"),
		SMTPFrom:             getEnvOrDefault("FACEGATE_SMTP_FROM", "noreply@localhost"),
		SMTPUsername:         os.Getenv("FACEGATE_SMTP_USERNAME"),
		SMTPPassword:         os.Getenv("FACEGATE_SMTP_PASSWORD"),
		FaceExtractorURL:     os.Getenv("FACEGATE_FACE_EXTRACTOR_URL"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 5*time.Minute),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	return defaultValue
}

package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	LogFormat      string
	LogFile        string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string
	AdminJWTSecret string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	// Pipeline
	InputRedaction string

	// Redis history
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	HistoryLimit  int
	HistoryTTL    time.Duration

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	AnalysisQueueURL    string
	AnalysisJobsTable   string
	ArchiveBucket       string

	// Urgent alerts
	EmailProvider    string
	SendGridAPIKey   string
	EmailFrom        string
	EmailFromName    string
	UrgentAlertEmail string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first; variables already set win.
func Load() *Config {
	_ = loadDotEnv(".env")
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
		LogFile:        getEnv("LOG_FILE", ""),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		CORSOrigins:    getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 20),

		InputRedaction: strings.ToLower(strings.TrimSpace(getEnv("INPUT_REDACTION", "pii"))),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		HistoryLimit:  getEnvAsInt("HISTORY_LIMIT", 100),
		HistoryTTL:    getEnvAsDuration("HISTORY_TTL", 24*time.Hour),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		AnalysisQueueURL:    getEnv("ANALYSIS_QUEUE_URL", ""),
		AnalysisJobsTable:   getEnv("ANALYSIS_JOBS_TABLE", "analysis_jobs"),
		ArchiveBucket:       getEnv("ARCHIVE_BUCKET", ""),

		EmailProvider:    strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:        getEnv("EMAIL_FROM", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Requirements Analyzer"),
		UrgentAlertEmail: getEnv("URGENT_ALERT_EMAIL", ""),
	}
}

// loadDotEnv applies the given env files without overriding existing variables.
// Missing files are not an error.
// UsesSES reports whether urgent alerts go out through SES. Configs built
// by hand may carry an unnormalized provider, so it is compared loosely.
func (c *Config) UsesSES() bool {
	if c == nil || strings.TrimSpace(c.UrgentAlertEmail) == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(c.EmailProvider), "ses")
}

func loadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

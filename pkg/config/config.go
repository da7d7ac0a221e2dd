package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	OpenAI    OpenAIConfig
	Email     EmailConfig
	Google    GoogleConfig
	Sync      SyncConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host       string
	Port       int
	CronSecret string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey         string
	Model          string
	RateLimitRPM   int
	RateLimitBurst int
}

// EmailConfig holds the transactional email API configuration
type EmailConfig struct {
	APIKey      string
	FromAddress string
	BaseURL     string
}

// GoogleConfig holds Google Business Profile review API configuration
type GoogleConfig struct {
	APIBaseURL  string
	AccessToken string
}

// SyncConfig holds review pipeline tuning knobs
type SyncConfig struct {
	SourceBatchSize   int
	SyncPageSize      int
	WebhookPageSize   int
	AutopilotDraftCap int
	ReplyMaxAttempts  int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host:       getEnv("SERVER_HOST", "0.0.0.0"),
			Port:       getEnvAsInt("SERVER_PORT", 8080),
			CronSecret: getEnv("CRON_SECRET", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "localpresence"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			RateLimitRPM:   getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
		},
		Email: EmailConfig{
			APIKey:      getEnv("EMAIL_API_KEY", ""),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "alerts@localpresence.app"),
			BaseURL:     getEnv("EMAIL_API_BASE_URL", "https://api.resend.com"),
		},
		Google: GoogleConfig{
			APIBaseURL:  getEnv("GOOGLE_REVIEWS_API_URL", "https://mybusiness.googleapis.com/v4"),
			AccessToken: getEnv("GOOGLE_REVIEWS_ACCESS_TOKEN", ""),
		},
		Sync: SyncConfig{
			SourceBatchSize:   getEnvAsInt("SYNC_SOURCE_BATCH_SIZE", 20),
			SyncPageSize:      getEnvAsInt("SYNC_PAGE_SIZE", 50),
			WebhookPageSize:   getEnvAsInt("SYNC_WEBHOOK_PAGE_SIZE", 10),
			AutopilotDraftCap: getEnvAsInt("AUTOPILOT_DRAFT_CAP", 10),
			ReplyMaxAttempts:  getEnvAsInt("REPLY_QUEUE_MAX_ATTEMPTS", 8),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "localpresence"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

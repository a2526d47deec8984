package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration resolved from the environment.
type Config struct {
	AppEnv           string
	LogLevel         string
	MetricsNamespace string

	HTTPListenAddr string
	PublicBasePath string

	DatabaseURL string
	DBSchema    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	// WhatsApp provider HTTP gateway.
	WppBaseURL     string
	WppAPIToken    string
	WppTimeout     time.Duration
	WebhookSecret  string
	InternalAPIKey string

	// AI endpoint (OpenAI compatible).
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAITimeout time.Duration

	MediaTimeout time.Duration

	Timezone string

	WorkerCount int
	QueueSize   int
}

// Load reads configuration from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "pixzen"),
		HTTPListenAddr:   getEnv("HTTP_LISTEN_ADDR", ":8080"),
		PublicBasePath:   getEnv("PUBLIC_BASE_PATH", ""),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DBSchema:         getEnv("DB_SCHEMA", "public"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisTLS:         getEnvBool("REDIS_TLS", false),
		WppBaseURL:       os.Getenv("WPP_BASE_URL"),
		WppAPIToken:      os.Getenv("WPP_API_TOKEN"),
		WppTimeout:       getEnvDuration("WPP_TIMEOUT", 30*time.Second),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		InternalAPIKey:   os.Getenv("INTERNAL_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAITimeout:    getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		MediaTimeout:     getEnvDuration("MEDIA_TIMEOUT", 60*time.Second),
		Timezone:         getEnv("TIMEZONE", "America/Sao_Paulo"),
		WorkerCount:      getEnvInt("WORKER_COUNT", 4),
		QueueSize:        getEnvInt("QUEUE_SIZE", 256),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.WppBaseURL == "" {
		return nil, fmt.Errorf("WPP_BASE_URL is required")
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

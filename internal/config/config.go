package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL    string
	RedisURL       string
	RabbitMQURL    string
	OpenAIKey      string
	AIModel        string
	AIBaseURL      string
	IMAPAddr       string
	IMAPUsername   string
	IMAPPassword   string
	ArchiveMailbox string
	Timezone       string

	MaxRuntime         time.Duration
	MaxItemsPerRun     int
	APICallSafetyLimit int
	BatchSize          int
	ProcessRecentMail  bool
	RecentMailAge      time.Duration
	PreviewCharLimit   int

	RuleCacheTTL        time.Duration
	DecisionCacheTTL    time.Duration
	RejectionCacheTTL   time.Duration
	SuggestionThreshold int
	SuggestionScanLimit int
	FollowUpDelay       time.Duration

	WorkerDebugMode bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:    getEnv("RABBITMQ_URL", ""),
		OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
		AIModel:        getEnv("AI_MODEL", ""),
		AIBaseURL:      getEnv("AI_BASE_URL", ""),
		IMAPAddr:       getEnv("IMAP_ADDR", ""),
		IMAPUsername:   getEnv("IMAP_USERNAME", ""),
		IMAPPassword:   getEnv("IMAP_PASSWORD", ""),
		ArchiveMailbox: getEnv("ARCHIVE_MAILBOX", "Archive"),
		Timezone:       getEnv("TRIAGE_TIMEZONE", "America/Denver"),

		MaxRuntime:         getEnvDuration("MAX_RUNTIME", 5*time.Minute),
		MaxItemsPerRun:     getEnvInt("MAX_ITEMS_PER_RUN", 1000),
		APICallSafetyLimit: getEnvInt("API_CALL_SAFETY_LIMIT", 15000),
		BatchSize:          getEnvInt("BATCH_SIZE", 25),
		ProcessRecentMail:  getEnvBool("PROCESS_RECENT_MAIL", true),
		RecentMailAge:      getEnvDuration("RECENT_MAIL_AGE", 48*time.Hour),
		PreviewCharLimit:   getEnvInt("PREVIEW_CHAR_LIMIT", 1500),

		RuleCacheTTL:        getEnvDuration("RULE_CACHE_TTL", time.Hour),
		DecisionCacheTTL:    getEnvDuration("DECISION_CACHE_TTL", 6*time.Hour),
		RejectionCacheTTL:   getEnvDuration("REJECTION_CACHE_TTL", 7*24*time.Hour),
		SuggestionThreshold: getEnvInt("SUGGESTION_THRESHOLD", 3),
		SuggestionScanLimit: getEnvInt("SUGGESTION_SCAN_LIMIT", 500),
		FollowUpDelay:       getEnvDuration("FOLLOW_UP_DELAY", time.Minute),

		WorkerDebugMode: getEnvBool("WORKER_DEBUG_MODE", false),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IMAPAddr == "" {
		return nil, fmt.Errorf("IMAP_ADDR is required")
	}

	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

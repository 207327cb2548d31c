package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries everything both binaries read from the environment.
type Config struct {
	AWSRegion        string
	MainQueueURL     string
	DLQueueURL       string
	IdempotencyTable string

	// BatchSize is the number of deliveries pulled per receive (1-10).
	BatchSize int64
	// WaitTimeSeconds is the long-polling window for the consumer.
	WaitTimeSeconds int64
	// ReplayWaitTimeSeconds is the short wait used when paging the DLQ, so
	// an empty queue terminates the replay promptly.
	ReplayWaitTimeSeconds int64
	// InvocationTimeout bounds one batch invocation. Keep it well below the
	// queue's visibility window (reference: 30s against 180s).
	InvocationTimeout time.Duration
	// IdempotencyTTL is the idempotency record lifetime.
	IdempotencyTTL time.Duration
	// ReceiveErrorDelay is the pause before retrying a failed receive.
	ReceiveErrorDelay time.Duration

	LogLevel string
}

// Load reads the environment. Only MAIN_QUEUE_URL is unconditionally
// required; each binary validates its own extras.
func Load() (*Config, error) {
	cfg := &Config{
		AWSRegion:             getEnvOrDefault("AWS_REGION", "us-east-1"),
		MainQueueURL:          os.Getenv("MAIN_QUEUE_URL"),
		DLQueueURL:            os.Getenv("DLQ_URL"),
		IdempotencyTable:      os.Getenv("IDEMPOTENCY_TABLE"),
		BatchSize:             getEnvAsInt64("BATCH_SIZE", 5),
		WaitTimeSeconds:       getEnvAsInt64("WAIT_TIME_SECONDS", 20),
		ReplayWaitTimeSeconds: getEnvAsInt64("REPLAY_WAIT_TIME_SECONDS", 2),
		InvocationTimeout:     getEnvAsDuration("INVOCATION_TIMEOUT", 30*time.Second),
		IdempotencyTTL:        getEnvAsDuration("IDEMPOTENCY_TTL", 168*time.Hour),
		ReceiveErrorDelay:     getEnvAsDuration("RECEIVE_ERROR_DELAY", 5*time.Second),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
	}
	if cfg.MainQueueURL == "" {
		return nil, fmt.Errorf("missing required environment variable MAIN_QUEUE_URL")
	}
	return cfg, nil
}

// ValidateConsumer checks the variables the consumer daemon needs.
func (c *Config) ValidateConsumer() error {
	if c.IdempotencyTable == "" {
		return fmt.Errorf("missing required environment variable IDEMPOTENCY_TABLE")
	}
	return nil
}

// ValidateReplay checks the variables the replay tool needs.
func (c *Config) ValidateReplay() error {
	if c.DLQueueURL == "" {
		return fmt.Errorf("missing required environment variable DLQ_URL")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnvOrDefault(key, strconv.FormatInt(defaultValue, 10))
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

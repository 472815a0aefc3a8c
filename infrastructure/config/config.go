package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion           string
	DynamoDBTable       string
	MembershipIndexName string // GSI1 - carpool-side membership lookups
	StatusIndexName     string // GSI2 - available carpool listings
	EventBusName        string

	// Lambda configuration
	IsLambda bool

	// Table lock
	LockRetryInterval time.Duration
	LockMaxAttempts   int

	// Membership index convergence poller
	PollInterval    time.Duration
	PollMaxAttempts int

	// Logging and features
	LogLevel      string
	EnableMetrics bool
	EnableEvents  bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		AWSRegion:           getEnv("AWS_REGION", "ap-northeast-1"),
		DynamoDBTable:       getEnv("TABLE_NAME", "carpool"),
		MembershipIndexName: getEnv("MEMBERSHIP_INDEX_NAME", "MembershipIndex"),
		StatusIndexName:     getEnv("STATUS_INDEX_NAME", "StatusIndex"),
		EventBusName:        getEnv("EVENT_BUS_NAME", "carpool-events"),

		IsLambda: getEnv("AWS_LAMBDA_FUNCTION_NAME", "") != "",

		LockRetryInterval: getEnvDuration("LOCK_RETRY_INTERVAL", 300*time.Millisecond),
		LockMaxAttempts:   getEnvInt("LOCK_MAX_ATTEMPTS", 15),

		PollInterval:    getEnvDuration("POLL_INTERVAL", 500*time.Millisecond),
		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 20),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableEvents:  getEnvBool("ENABLE_EVENTS", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.DynamoDBTable == "" {
		return fmt.Errorf("TABLE_NAME is required")
	}
	if c.LockMaxAttempts <= 0 {
		return fmt.Errorf("LOCK_MAX_ATTEMPTS must be positive")
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	if c.Environment == "production" {
		if c.EnableEvents && c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required when events are enabled")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

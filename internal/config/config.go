package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser          string
	DBPass          string
	DBHost          string
	DBPort          string
	DBName          string
	SSLMode         string
	RedisHost       string
	RedisPort       string
	NatsHost        string
	NatsPort        string
	ApiPort         string
	ApiEnabled      string
	NotifierEnabled string
	DispatchWorkers int
	DispatchTimeout time.Duration
}

// New loads and validates configuration from environment variables.
// HTTP server is optional: if FUNDS_API_ENABLED != "true", ApiAddr() returns
// an error and the HTTP server simply won't start. The same applies to the
// embedded notifier worker via FUNDS_NOTIFIER_ENABLED.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:          os.Getenv("FUNDS_POSTGRES_USER"),
		DBPass:          os.Getenv("FUNDS_POSTGRES_PASSWORD"),
		DBHost:          os.Getenv("FUNDS_POSTGRES_HOST"),
		DBPort:          os.Getenv("FUNDS_POSTGRES_PORT"),
		DBName:          os.Getenv("FUNDS_POSTGRES_DB"),
		SSLMode:         os.Getenv("FUNDS_POSTGRES_SSLMODE"),
		RedisHost:       os.Getenv("FUNDS_REDIS_HOST"),
		RedisPort:       os.Getenv("FUNDS_REDIS_PORT"),
		NatsHost:        os.Getenv("FUNDS_NATS_HOST"),
		NatsPort:        os.Getenv("FUNDS_NATS_PORT"),
		ApiPort:         os.Getenv("FUNDS_API_PORT"),
		ApiEnabled:      os.Getenv("FUNDS_API_ENABLED"),
		NotifierEnabled: os.Getenv("FUNDS_NOTIFIER_ENABLED"),
		DispatchWorkers: getEnvInt("FUNDS_DISPATCH_WORKERS", 8),
		DispatchTimeout: time.Duration(getEnvInt("FUNDS_DISPATCH_TIMEOUT_MS", 5000)) * time.Millisecond,
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: FUNDS_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis (notification dedup and contact registry)
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: FUNDS_REDIS_HOST/PORT")
	}

	// Required: nats (change feed, commands, outbound delivery)
	if cfg.NatsHost == "" || cfg.NatsPort == "" {
		return nil, fmt.Errorf("missing required env for nats: FUNDS_NATS_HOST/PORT")
	}

	if cfg.DispatchWorkers < 1 {
		return nil, fmt.Errorf("FUNDS_DISPATCH_WORKERS must be >= 1")
	}

	// Optional: HTTP API. ApiAddr() will return an error if not enabled.

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

// ApiAddr returns the HTTP listen address if the API is enabled.
// Returns an error if FUNDS_API_ENABLED != "true"; callers should skip
// starting the HTTP server.
func (c *Config) ApiAddr() (string, error) {
	if c.ApiEnabled == "true" {
		if c.ApiPort == "" {
			return "", fmt.Errorf("FUNDS_API_PORT is required when FUNDS_API_ENABLED=true")
		}
		return ":" + c.ApiPort, nil
	}
	return "", fmt.Errorf("HTTP API is disabled (FUNDS_API_ENABLED != true)")
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var intVal int
	if _, err := fmt.Sscanf(val, "%d", &intVal); err != nil {
		return defaultVal
	}
	return intVal
}

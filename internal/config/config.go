package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	LogLevel        string
	LogFormat       string
	StoreDriver     string // "memory" or "sqlite"
	ShutdownTimeout time.Duration

	// Client side.
	APIURL        string
	Watch         bool
	TelegramToken string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", "memory")),
		ShutdownTimeout: 10 * time.Second,
		APIURL:          strings.TrimRight(getEnv("TASKS_API_URL", "http://localhost:8080"), "/"),
		Watch:           true,
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("PORT must be numeric, got %q", cfg.Port)
	}

	switch cfg.StoreDriver {
	case "memory", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q", v)
		}
		cfg.ShutdownTimeout = d
	}

	if v := os.Getenv("TASKS_WATCH"); v != "" {
		watch, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TASKS_WATCH %q", v)
		}
		cfg.Watch = watch
	}

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

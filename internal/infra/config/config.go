package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	minJWTSecretLength = 16
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	StorageDriver       string
	DatabaseURL         string
	HTTPAddr            string
	LoginPassword       string
	JWTSecret           string
	TokenTTL            time.Duration
	RequireHTTPS        bool // marks the auth cookie Secure
	SellBalancePolicy   string
	TelegramToken       string // bot disabled when empty
	AdminTelegramID     int64
	CronSpecDailyDigest string
	LogLevel            string
	Environment         string
}

// BotEnabled reports whether the Telegram bot and the digest job should run.
func (c *AppConfig) BotEnabled() bool {
	return c.TelegramToken != ""
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres))
	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case StorageDriverMemory:
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q: expected postgres or memory", cfg.StorageDriver)
	}

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":3000")

	cfg.LoginPassword = os.Getenv("LOGIN_PASSWORD")
	if cfg.LoginPassword == "" {
		return nil, fmt.Errorf("LOGIN_PASSWORD is not set")
	}

	cfg.JWTSecret = os.Getenv("AUTH_JWT_SECRET")
	if len(cfg.JWTSecret) < minJWTSecretLength {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}

	cfg.TokenTTL, err = time.ParseDuration(getEnv("AUTH_TOKEN_TTL", "720h"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_TOKEN_TTL: %w", err)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("AUTH_TOKEN_TTL must be positive")
	}

	cfg.RequireHTTPS, err = strconv.ParseBool(getEnv("REQUIRE_HTTPS", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUIRE_HTTPS: %w", err)
	}

	cfg.SellBalancePolicy = strings.ToLower(getEnv("SELL_BALANCE_POLICY", "permissive"))
	if cfg.SellBalancePolicy != "permissive" && cfg.SellBalancePolicy != "strict" {
		return nil, fmt.Errorf("invalid SELL_BALANCE_POLICY %q: expected permissive or strict", cfg.SellBalancePolicy)
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
		if adminIDStr == "" {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
		}
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.CronSpecDailyDigest = getEnv("CRON_SPEC_DAILY_DIGEST", "0 21 * * *") // Default: 9 PM daily

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

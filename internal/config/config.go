// Package config reads the bot configuration from environment
// variables, with a .env file honored in development.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Telegram
	BotToken string

	// Watched page
	TargetURL   string
	TargetLabel string

	// Poll cadence
	CheckInterval time.Duration
	InitialDelay  time.Duration

	// Cache and fetch behavior
	CacheTTL     time.Duration
	FetchTimeout time.Duration
	RetryBackoff time.Duration

	// Storage
	DataDir string

	// Optional vocabulary file; empty means the built-in default.
	VocabPath string

	// Observability
	MetricsAddr string
	LogLevel    string
}

// Load reads configuration from environment variables.
// It automatically loads a .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		BotToken:    strings.TrimSpace(getEnv("BOT_TOKEN", "")),
		TargetURL:   strings.TrimSpace(getEnv("TARGET_URL", "https://www.kaikatsu.jp/shop/detail/vacancy.html?store_code=20328")),
		TargetLabel: strings.TrimSpace(getEnv("TARGET_LABEL", "ダーツ")),
		DataDir:     getEnv("DATA_DIR", "./data"),
		VocabPath:   getEnv("VOCAB_PATH", ""),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	var err error
	cfg.CheckInterval, err = getEnvSeconds("CHECK_INTERVAL_SEC", 120)
	if err != nil {
		return nil, err
	}
	cfg.InitialDelay, err = getEnvSeconds("INITIAL_DELAY_SEC", 5)
	if err != nil {
		return nil, err
	}
	cfg.CacheTTL, err = getEnvSeconds("CACHE_TTL_SEC", 60)
	if err != nil {
		return nil, err
	}
	cfg.FetchTimeout, err = getEnvSeconds("FETCH_TIMEOUT_SEC", 45)
	if err != nil {
		return nil, err
	}

	backoffMS, err := getEnvInt("RETRY_BACKOFF_MS", 1200)
	if err != nil {
		return nil, err
	}
	cfg.RetryBackoff = time.Duration(backoffMS) * time.Millisecond

	return cfg, nil
}

// DatabasePath is the SQLite file under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "kaikatsubot.db")
}

// Validate checks the configuration every command relies on.
func (c *Config) Validate() error {
	if c.TargetURL == "" {
		return fmt.Errorf("TARGET_URL is required")
	}
	if c.TargetLabel == "" {
		return fmt.Errorf("TARGET_LABEL is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("CHECK_INTERVAL_SEC must be positive")
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("INITIAL_DELAY_SEC must not be negative")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL_SEC must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT_SEC must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("RETRY_BACKOFF_MS must not be negative")
	}
	return nil
}

// ValidateForServe checks all configuration needed for serve mode.
func (c *Config) ValidateForServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required for serve")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvSeconds(key string, defaultVal int) (time.Duration, error) {
	n, err := getEnvInt(key, defaultVal)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

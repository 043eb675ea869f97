// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	HTTPAddr  string `mapstructure:"HTTP_ADDR"`

	StoreDriver    string `mapstructure:"STORE_DRIVER"`
	DBURL          string `mapstructure:"DB_URL" masq:"secret"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`

	GithubAPIURL         string        `mapstructure:"GITHUB_API_URL"`
	GithubRequestTimeout time.Duration `mapstructure:"GITHUB_REQUEST_TIMEOUT"`
	GithubRetryBaseDelay time.Duration `mapstructure:"GITHUB_RETRY_BASE_DELAY"`
	GithubRetryMaxDelay  time.Duration `mapstructure:"GITHUB_RETRY_MAX_DELAY"`
	GithubMaxAttempts    int           `mapstructure:"GITHUB_MAX_ATTEMPTS"`
	SyncConcurrency      int           `mapstructure:"SYNC_CONCURRENCY"`

	WebhookSecret string `mapstructure:"WEBHOOK_SECRET" masq:"secret"`

	EventPublisher string `mapstructure:"EVENT_PUBLISHER"`
	EventChannel   string `mapstructure:"EVENT_CHANNEL"`

	SentryDSN string `mapstructure:"SENTRY_DSN" masq:"secret"`
	SentryEnv string `mapstructure:"SENTRY_ENV"`
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	PublisherLog      = "log"
	PublisherPostgres = "postgres"
)

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_URL", "")
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")
	v.SetDefault("GITHUB_API_URL", "")
	v.SetDefault("GITHUB_REQUEST_TIMEOUT", "10s")
	v.SetDefault("GITHUB_RETRY_BASE_DELAY", "1s")
	v.SetDefault("GITHUB_RETRY_MAX_DELAY", "10s")
	v.SetDefault("GITHUB_MAX_ATTEMPTS", 3)
	v.SetDefault("SYNC_CONCURRENCY", 0)
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("EVENT_PUBLISHER", PublisherLog)
	v.SetDefault("EVENT_CHANNEL", "github.repo.synced")
	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("SENTRY_ENV", "")

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DBURL == "" {
			return errors.New("DB_URL is a required configuration field for the postgres store")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}

	switch c.EventPublisher {
	case PublisherLog:
	case PublisherPostgres:
		if c.StoreDriver != StoreDriverPostgres {
			return errors.New("EVENT_PUBLISHER=postgres requires STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("EVENT_PUBLISHER must be %q or %q, got %q", PublisherLog, PublisherPostgres, c.EventPublisher)
	}

	if c.GithubMaxAttempts < 1 {
		return errors.New("GITHUB_MAX_ATTEMPTS must be at least 1")
	}
	if c.GithubRetryBaseDelay <= 0 || c.GithubRetryMaxDelay < c.GithubRetryBaseDelay {
		return errors.New("GITHUB_RETRY_BASE_DELAY must be positive and not exceed GITHUB_RETRY_MAX_DELAY")
	}
	if c.SyncConcurrency < 0 {
		return errors.New("SYNC_CONCURRENCY must not be negative")
	}
	return nil
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("log_level", c.LogLevel),
		slog.String("log_format", c.LogFormat),
		slog.String("http_addr", c.HTTPAddr),
		slog.String("store_driver", c.StoreDriver),
		slog.String("github_api_url", c.GithubAPIURL),
		slog.Int("github_max_attempts", c.GithubMaxAttempts),
		slog.Int("sync_concurrency", c.SyncConcurrency),
		slog.String("event_publisher", c.EventPublisher),
		slog.Bool("webhook_signature_check", c.WebhookSecret != ""),
		slog.Bool("sentry_enabled", c.SentryDSN != ""),
	)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Batch   BatchConfig   `yaml:"batch"`
	Fetcher FetcherConfig `yaml:"fetcher"`
	Store   StoreConfig   `yaml:"store"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8000"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"30m"`
	SessionTTL   time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" default:"24h"`
	LogLevel     string        `yaml:"log_level" envconfig:"LOG_LEVEL" default:"info"`
}

// StorageConfig holds filesystem storage configuration.
type StorageConfig struct {
	BasePath        string `yaml:"base_path" envconfig:"STORAGE_PATH" default:"downloads"`
	MaxSessionBytes int64  `yaml:"max_session_bytes" envconfig:"MAX_SESSION_BYTES" default:"5368709120"` // 5GB
	MaxUploadBytes  int64  `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`    // 10MB
}

// BatchConfig holds batch scheduling configuration.
type BatchConfig struct {
	Concurrency   int           `yaml:"concurrency" envconfig:"BATCH_CONCURRENCY" default:"3"`
	DispatchDelay time.Duration `yaml:"dispatch_delay" envconfig:"BATCH_DISPATCH_DELAY" default:"500ms"`
	PingInterval  time.Duration `yaml:"ping_interval" envconfig:"BATCH_PING_INTERVAL" default:"10s"`
	DrainTimeout  time.Duration `yaml:"drain_timeout" envconfig:"BATCH_DRAIN_TIMEOUT" default:"10s"`
}

// FetcherConfig holds yt-dlp configuration.
type FetcherConfig struct {
	AutoInstall   bool          `yaml:"auto_install" envconfig:"FETCHER_AUTO_INSTALL" default:"false"`
	FFmpegPath    string        `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH"`
	Attempts      int           `yaml:"attempts" envconfig:"FETCHER_ATTEMPTS" default:"2"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"FETCHER_RETRY_DELAY" default:"5s"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"FETCHER_MAX_RETRY_DELAY" default:"60s"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"FETCHER_TIMEOUT" default:"30m"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver     string `yaml:"driver" envconfig:"STORE_DRIVER" default:"sqlite"`
	SQLitePath string `yaml:"sqlite_path" envconfig:"SQLITE_PATH" default:"clipbatch.db"`
	RedisURL   string `yaml:"redis_url" envconfig:"REDIS_URL"`
}

// Load reads configuration from file and environment variables.
// Variables from a .env file in the working directory are loaded first;
// environment variables override file values.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Storage.BasePath == "" {
		return fmt.Errorf("STORAGE_PATH is required")
	}
	if c.Storage.MaxSessionBytes <= 0 {
		return fmt.Errorf("MAX_SESSION_BYTES must be positive")
	}
	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be at least 1")
	}
	if c.Batch.DispatchDelay < 0 {
		return fmt.Errorf("BATCH_DISPATCH_DELAY cannot be negative")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Level returns the slog level for LogLevel, defaulting to info.
func (c *ServerConfig) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package config provides configuration management for the courier server.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// environment variables prefixed with COURIER_ (highest priority).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
	"github.com/coregx/courier/retry"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "COURIER_"

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "COURIER_CONFIG"

// DefaultConfigPath is read when ConfigPathEnvVar is unset and the file exists.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for the courier server.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Worker     WorkerConfig     `koanf:"worker"`
	Publishing PublishingConfig `koanf:"publishing"`
	Email      EmailConfig      `koanf:"email"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	BaseURL         string        `koanf:"base_url"` // Public URL used in confirmation links
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver       string `koanf:"driver"` // postgres, mysql, sqlite3
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	User         string `koanf:"user"`
	Password     string `koanf:"password"`
	Name         string `koanf:"name"` // Database name, or file path for sqlite3
	SSLMode      string `koanf:"ssl_mode"`
	Prefix       string `koanf:"prefix"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// WorkerConfig holds delivery worker configuration.
type WorkerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Count        int           `koanf:"count"`
	IdleWait     time.Duration `koanf:"idle_wait"`
	ErrorBackoff time.Duration `koanf:"error_backoff"`
}

// PublishingConfig holds publish request handling configuration.
type PublishingConfig struct {
	Mode             string        `koanf:"mode"` // queued or direct
	RedirectLocation string        `koanf:"redirect_location"`
	InFlightAttempts int           `koanf:"in_flight_attempts"`
	InFlightInterval time.Duration `koanf:"in_flight_interval"`
}

// EmailConfig holds outbound email configuration.
type EmailConfig struct {
	Kind            string        `koanf:"kind"` // api or smtp
	Sender          string        `koanf:"sender"`
	BaseURL         string        `koanf:"base_url"`
	AuthToken       string        `koanf:"auth_token"`
	Timeout         time.Duration `koanf:"timeout"`
	SMTPHost        string        `koanf:"smtp_host"`
	SMTPPort        int           `koanf:"smtp_port"`
	SMTPUsername    string        `koanf:"smtp_username"`
	SMTPPassword    string        `koanf:"smtp_password"`
	BreakerFailures uint32        `koanf:"breaker_failures"` // 0 disables the circuit breaker
	BreakerOpenFor  time.Duration `koanf:"breaker_open_for"`
	RatePerSecond   float64       `koanf:"rate_per_second"` // 0 disables rate limiting
	RateBurst       int           `koanf:"rate_burst"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			BaseURL:         "http://127.0.0.1:8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			Host:         "localhost",
			Port:         5432,
			User:         "postgres",
			Name:         "newsletter",
			SSLMode:      "disable",
			Prefix:       courier.DefaultTablePrefix,
			MaxOpenConns: 10,
			AutoMigrate:  true,
		},
		Worker: WorkerConfig{
			Enabled:      true,
			Count:        1,
			IdleWait:     10 * time.Second,
			ErrorBackoff: time.Second,
		},
		Publishing: PublishingConfig{
			Mode:             string(courier.ModeQueued),
			RedirectLocation: courier.DefaultRedirectLocation,
			InFlightAttempts: 0,
			InFlightInterval: 100 * time.Millisecond,
		},
		Email: EmailConfig{
			Kind:            "api",
			BaseURL:         "http://localhost:8090",
			Timeout:         10 * time.Second,
			SMTPPort:        587,
			BreakerFailures: 5,
			BreakerOpenFor:  30 * time.Second,
			RatePerSecond:   0,
			RateBurst:       1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads defaults, the optional config file and COURIER_* environment
// variables, in that order, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	if _, err := os.Stat(DefaultConfigPath); err == nil {
		return DefaultConfigPath
	}
	return ""
}

// envTransformFunc maps COURIER_DATABASE_MAX_OPEN_CONNS to database.max_open_conns.
// ConfigPathEnvVar itself maps to nothing.
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validatePublishing(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if _, err := url.ParseRequestURI(c.Server.BaseURL); err != nil {
		return fmt.Errorf("server.base_url is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be postgres, mysql or sqlite3, got %q", c.Database.Driver)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("database.max_open_conns cannot be negative")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if !c.Worker.Enabled {
		return nil
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker.count must be at least 1 when workers are enabled")
	}
	return c.WorkerPolicy().Validate()
}

func (c *Config) validatePublishing() error {
	switch courier.DeliveryMode(c.Publishing.Mode) {
	case courier.ModeQueued, courier.ModeDirect:
	default:
		return fmt.Errorf("publishing.mode must be queued or direct, got %q", c.Publishing.Mode)
	}
	if c.Publishing.RedirectLocation == "" {
		return fmt.Errorf("publishing.redirect_location is required")
	}
	if c.Publishing.InFlightAttempts < 0 {
		return fmt.Errorf("publishing.in_flight_attempts cannot be negative")
	}
	if c.Publishing.InFlightAttempts > 0 && c.Publishing.InFlightInterval <= 0 {
		return fmt.Errorf("publishing.in_flight_interval must be positive when polling is enabled")
	}
	return nil
}

func (c *Config) validateEmail() error {
	if _, err := model.ParseSubscriberEmail(c.Email.Sender); err != nil {
		return fmt.Errorf("email.sender is invalid: %w", err)
	}
	switch c.Email.Kind {
	case "api":
		if _, err := url.ParseRequestURI(c.Email.BaseURL); err != nil {
			return fmt.Errorf("email.base_url is invalid: %w", err)
		}
		if c.Email.AuthToken == "" {
			return fmt.Errorf("email.auth_token is required for the api transport")
		}
		if c.Email.Timeout <= 0 {
			return fmt.Errorf("email.timeout must be positive")
		}
	case "smtp":
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("email.smtp_host is required for the smtp transport")
		}
	default:
		return fmt.Errorf("email.kind must be api or smtp, got %q", c.Email.Kind)
	}
	if c.Email.BreakerFailures > 0 && c.Email.BreakerOpenFor <= 0 {
		return fmt.Errorf("email.breaker_open_for must be positive when the breaker is enabled")
	}
	if c.Email.RatePerSecond < 0 {
		return fmt.Errorf("email.rate_per_second cannot be negative")
	}
	if c.Email.RatePerSecond > 0 && c.Email.RateBurst < 1 {
		return fmt.Errorf("email.rate_burst must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
}

// DSN returns the database connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Name)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	case "sqlite3":
		return "file:" + c.Name + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	default:
		return ""
	}
}

// WorkerPolicy returns the worker loop pauses.
func (c *Config) WorkerPolicy() retry.Policy {
	return retry.Policy{IdleWait: c.Worker.IdleWait, ErrorBackoff: c.Worker.ErrorBackoff}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the tile coverage prober
type Config struct {
	// Tile service settings
	Mapillary MapillaryConfig `yaml:"mapillary" json:"mapillary"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry policy for transient fetch failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Probe run settings
	Probe ProbeConfig `yaml:"probe" json:"probe"`

	// Catalogue database settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Prometheus metrics exposure
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// MapillaryConfig holds tile service configuration
type MapillaryConfig struct {
	AccessToken    string        `yaml:"access_token" json:"access_token"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	Tileset        string        `yaml:"tileset" json:"tileset"`
	Layer          string        `yaml:"layer" json:"layer"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// RateLimitConfig holds the aggregate request rate ceiling.
// The sustained rate is MaxRequestsPerMinute * SafetyFactor; an explicit
// RequestsPerSecond only lowers it further, never raises it.
type RateLimitConfig struct {
	MaxRequestsPerMinute int     `yaml:"max_requests_per_minute" json:"max_requests_per_minute"`
	SafetyFactor         float64 `yaml:"safety_factor" json:"safety_factor"`
	RequestsPerSecond    float64 `yaml:"requests_per_second" json:"requests_per_second"`
}

// RetryConfig holds the backoff policy for transient fetch failures
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base" json:"backoff_base"`
	BackoffCap  time.Duration `yaml:"backoff_cap" json:"backoff_cap"`
}

// ProbeConfig holds probe run settings
type ProbeConfig struct {
	Zoom      int `yaml:"zoom" json:"zoom"`
	Tiles     int `yaml:"tiles" json:"tiles"`
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// Concurrency caps how many fetches run at once under the shared pacer
	Concurrency int `yaml:"concurrency" json:"concurrency"`
	// KeepCoverageOnError leaves a previously stored coverage verdict in
	// place when a re-check exhausts its retries; only the error status and
	// detail are recorded. Set false to null the verdict so later runs
	// re-select the tile.
	KeepCoverageOnError bool `yaml:"keep_coverage_on_error" json:"keep_coverage_on_error"`
}

// DatabaseConfig holds catalogue database configuration
type DatabaseConfig struct {
	Path       string `yaml:"path" json:"path"`
	LogQueries bool   `yaml:"log_queries" json:"log_queries"`
}

// MetricsConfig holds Prometheus exposure settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mapillary: MapillaryConfig{
			BaseURL:        "https://tiles.mapillary.com",
			Tileset:        "mly1_public",
			Layer:          "image",
			UserAgent:      "tilecov/1.0",
			RequestTimeout: 20 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MaxRequestsPerMinute: 50000,
			SafetyFactor:         0.85,
			RequestsPerSecond:    0, // 0 derives the rate from the ceiling
		},
		Retry: RetryConfig{
			MaxAttempts: 8,
			BackoffBase: 250 * time.Millisecond,
			BackoffCap:  5 * time.Second,
		},
		Probe: ProbeConfig{
			Zoom:                14,
			Tiles:               100,
			BatchSize:           2000,
			Concurrency:         200,
			KeepCoverageOnError: true,
		},
		Database: DatabaseConfig{
			Path:       "data/plants.db",
			LogQueries: false,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9091",
		},
		Notifications: NotificationConfig{
			Enabled:          false,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables. The access
// token follows the tile provider's conventional variable names; pipeline
// knobs use the TILECOV_ prefix.
func (c *Config) LoadFromEnv() error {
	if token := os.Getenv("MAPILLARY_ACCESS_TOKEN"); token != "" {
		c.Mapillary.AccessToken = token
	} else if token := os.Getenv("MAPILLARY_TOKEN"); token != "" {
		c.Mapillary.AccessToken = token
	}

	if baseURL := os.Getenv("TILECOV_BASE_URL"); baseURL != "" {
		c.Mapillary.BaseURL = baseURL
	}
	if timeout := os.Getenv("TILECOV_REQUEST_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			c.Mapillary.RequestTimeout = d
		}
	}

	// Rate ceiling
	if rpm := os.Getenv("TILECOV_MAX_REQUESTS_PER_MINUTE"); rpm != "" {
		if val, err := strconv.Atoi(rpm); err == nil && val > 0 {
			c.RateLimit.MaxRequestsPerMinute = val
		}
	}
	if factor := os.Getenv("TILECOV_RATE_SAFETY"); factor != "" {
		if val, err := strconv.ParseFloat(factor, 64); err == nil && val > 0 {
			c.RateLimit.SafetyFactor = val
		}
	}
	if rps := os.Getenv("TILECOV_RPS"); rps != "" {
		if val, err := strconv.ParseFloat(rps, 64); err == nil && val > 0 {
			c.RateLimit.RequestsPerSecond = val
		}
	}

	// Retry policy
	if attempts := os.Getenv("TILECOV_MAX_RETRIES"); attempts != "" {
		if val, err := strconv.Atoi(attempts); err == nil && val > 0 {
			c.Retry.MaxAttempts = val
		}
	}

	// Probe run settings
	if tiles := os.Getenv("TILECOV_TILES"); tiles != "" {
		if val, err := strconv.Atoi(tiles); err == nil && val > 0 {
			c.Probe.Tiles = val
		}
	}
	if batch := os.Getenv("TILECOV_BATCH_SIZE"); batch != "" {
		if val, err := strconv.Atoi(batch); err == nil && val > 0 {
			c.Probe.BatchSize = val
		}
	}
	if concurrency := os.Getenv("TILECOV_CONCURRENCY"); concurrency != "" {
		if val, err := strconv.Atoi(concurrency); err == nil && val > 0 {
			c.Probe.Concurrency = val
		}
	}

	// Database path
	if path := os.Getenv("TILECOV_DB_PATH"); path != "" {
		c.Database.Path = path
	}

	// Notifications
	if notifEnabled := os.Getenv("TILECOV_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}

	// Logging level
	if logLevel := os.Getenv("TILECOV_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".tilecov.yaml",
		".tilecov.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "tilecov", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "tilecov", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".tilecov.yaml"),
		filepath.Join(os.Getenv("HOME"), ".tilecov.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. The access token is not
// checked here: commands that talk to the tile service resolve it through
// the credential stores and fail there with a more helpful message.
func (c *Config) Validate() error {
	var errs []error

	if c.Mapillary.BaseURL == "" {
		errs = append(errs, errors.New("tile service base URL is required"))
	}
	if c.Mapillary.Tileset == "" {
		errs = append(errs, errors.New("tileset is required"))
	}
	if c.Mapillary.Layer == "" {
		errs = append(errs, errors.New("coverage layer name is required"))
	}
	if c.Mapillary.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.RateLimit.MaxRequestsPerMinute <= 0 {
		errs = append(errs, errors.New("max requests per minute must be positive"))
	}
	if c.RateLimit.SafetyFactor <= 0 || c.RateLimit.SafetyFactor > 1 {
		errs = append(errs, errors.New("safety factor must be in (0, 1]"))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests per second cannot be negative"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}
	if c.Retry.BackoffBase <= 0 {
		errs = append(errs, errors.New("backoff base must be positive"))
	}
	if c.Retry.BackoffCap < c.Retry.BackoffBase {
		errs = append(errs, errors.New("backoff cap cannot be below backoff base"))
	}

	if c.Probe.Zoom < 0 || c.Probe.Zoom > 22 {
		errs = append(errs, errors.New("zoom must be between 0 and 22"))
	}
	if c.Probe.Tiles <= 0 {
		errs = append(errs, errors.New("per-run tile cap must be positive"))
	}
	if c.Probe.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.Probe.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics address is required when metrics are enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if token, ok := flags["access-token"].(string); ok && token != "" {
		c.Mapillary.AccessToken = token
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.Mapillary.RequestTimeout = timeout
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm > 0 {
		c.RateLimit.MaxRequestsPerMinute = rpm
	}
	if rps, ok := flags["rps"].(float64); ok && rps > 0 {
		c.RateLimit.RequestsPerSecond = rps
	}
	if attempts, ok := flags["max-retries"].(int); ok && attempts > 0 {
		c.Retry.MaxAttempts = attempts
	}
	if zoom, ok := flags["zoom"].(int); ok && zoom > 0 {
		c.Probe.Zoom = zoom
	}
	if tiles, ok := flags["tiles"].(int); ok && tiles > 0 {
		c.Probe.Tiles = tiles
	}
	if batch, ok := flags["batch-size"].(int); ok && batch > 0 {
		c.Probe.BatchSize = batch
	}
	if concurrency, ok := flags["concurrency"].(int); ok && concurrency > 0 {
		c.Probe.Concurrency = concurrency
	}
	if keep, ok := flags["keep-coverage-on-error"].(bool); ok {
		c.Probe.KeepCoverageOnError = keep
	}
	if path, ok := flags["db"].(string); ok && path != "" {
		c.Database.Path = path
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Addr = addr
	}
	if enabled, ok := flags["notifications-enabled"].(bool); ok {
		c.Notifications.Enabled = enabled
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tilecov.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

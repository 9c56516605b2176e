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

	"secevents/pkg/models"
)

// ConnectorSection is the top-level YAML key holding the connector settings
const ConnectorSection = "secureEvents_connector"

// Config holds all configuration options for the security events connector
type Config struct {
	// Connector settings: endpoint, credential and query window
	Connector ConnectorConfig `yaml:"secureEvents_connector" json:"secureEvents_connector"`

	// Where fetched pages are written
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ConnectorConfig holds the security-analytics API settings
type ConnectorConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	StoreFilename     string        `yaml:"store_filename" json:"store_filename"`
	AccessToken       string        `yaml:"access_token" json:"access_token"`
	From              string        `yaml:"from" json:"from"`
	To                string        `yaml:"to" json:"to"`
	Limit             int           `yaml:"limit" json:"limit"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	CredentialProfile string        `yaml:"credential_profile" json:"credential_profile"`
}

// OutputConfig selects and configures the page sink
type OutputConfig struct {
	Backend   string      `yaml:"backend" json:"backend"`
	Directory string      `yaml:"directory" json:"directory"`
	Redis     RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig holds the Redis page sink settings
type RedisConfig struct {
	Addr      string        `yaml:"addr" json:"addr"`
	Password  string        `yaml:"password" json:"password"`
	DB        int           `yaml:"db" json:"db"`
	KeyPrefix string        `yaml:"key_prefix" json:"key_prefix"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	Console bool   `yaml:"console" json:"console"`
}

// MetricsConfig holds metrics export configuration
type MetricsConfig struct {
	// Textfile is the node-exporter textfile path; empty disables the export
	Textfile string `yaml:"textfile" json:"textfile"`
}

const (
	BackendFile  = "file"
	BackendRedis = "redis"

	DefaultLogFile        = "secureEvents_connector.log"
	DefaultRequestTimeout = 30 * time.Second
	DefaultProfile        = "default"
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Connector: ConnectorConfig{
			Limit:             models.DefaultPageSizeLimit,
			MaxRetries:        models.DefaultMaxRetries,
			RequestTimeout:    DefaultRequestTimeout,
			CredentialProfile: DefaultProfile,
		},
		Output: OutputConfig{
			Backend:   BackendFile,
			Directory: ".",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "secevents:",
			},
		},
		Logging: LoggingConfig{
			Level:   "info",
			File:    DefaultLogFile,
			Console: false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if baseURL := os.Getenv("SECEVENTS_BASE_URL"); baseURL != "" {
		c.Connector.BaseURL = baseURL
	}
	if token := os.Getenv("SECEVENTS_ACCESS_TOKEN"); token != "" {
		c.Connector.AccessToken = token
	}
	if from := os.Getenv("SECEVENTS_FROM"); from != "" {
		c.Connector.From = from
	}
	if to := os.Getenv("SECEVENTS_TO"); to != "" {
		c.Connector.To = to
	}

	if logLevel := os.Getenv("SECEVENTS_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if outputDir := os.Getenv("SECEVENTS_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}
	if redisAddr := os.Getenv("SECEVENTS_REDIS_ADDR"); redisAddr != "" {
		c.Output.Redis.Addr = redisAddr
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Required connector keys
	if c.Connector.BaseURL == "" {
		errs = append(errs, fmt.Errorf("%s.base_url is required", ConnectorSection))
	}
	if c.Connector.From == "" {
		errs = append(errs, fmt.Errorf("%s.from is required", ConnectorSection))
	}
	if c.Connector.To == "" {
		errs = append(errs, fmt.Errorf("%s.to is required", ConnectorSection))
	}

	if c.Connector.Limit <= 0 {
		errs = append(errs, errors.New("limit must be positive"))
	}
	if c.Connector.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Connector.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	switch c.Output.Backend {
	case BackendFile:
		if c.Output.Directory == "" {
			errs = append(errs, errors.New("output directory is required"))
		}
	case BackendRedis:
		if c.Output.Redis.Addr == "" {
			errs = append(errs, errors.New("redis address is required"))
		}
		if c.Output.Redis.TTL < 0 {
			errs = append(errs, errors.New("redis ttl cannot be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid output backend %q", c.Output.Backend))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Session builds the immutable fetch session from the connector settings
func (c *Config) Session() models.Session {
	return models.Session{
		AccessToken:   c.Connector.AccessToken,
		BaseURL:       c.Connector.BaseURL,
		StartTime:     c.Connector.From,
		EndTime:       c.Connector.To,
		PageSizeLimit: c.Connector.Limit,
		MaxRetries:    c.Connector.MaxRetries,
	}
}

// Redacted returns a copy of the configuration with secrets masked
func (c *Config) Redacted() *Config {
	clone := *c
	clone.Connector.AccessToken = mask(c.Connector.AccessToken)
	clone.Output.Redis.Password = mask(c.Output.Redis.Password)
	return &clone
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
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

// Load loads configuration from all sources with proper precedence
// Precedence order: Environment variables > .env file > Config file > Defaults
func Load(configPath string) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(filepath.Dir(configPath), ".env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// ParseEpochNanos parses a from/to value as nanoseconds since the Unix epoch.
// It is used only for log output; the raw string is what the API receives.
func ParseEpochNanos(value string) (time.Time, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch timestamp %q: %w", value, err)
	}
	return time.Unix(0, n).UTC(), nil
}

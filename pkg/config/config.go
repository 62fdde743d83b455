package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration settings for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Database    DatabaseConfig `mapstructure:"database"`
	App         AppConfig      `mapstructure:"app"`
	Maintenance MaintConfig    `mapstructure:"maintenance"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL       string        `mapstructure:"url"`
	MaxConns  int           `mapstructure:"max_conns"`
	Timeout   time.Duration `mapstructure:"timeout"`
	SSLMode   string        `mapstructure:"ssl_mode"`
	Embedded  bool          `mapstructure:"embedded"`
	SchemaDir string        `mapstructure:"schema_dir"`
}

// AppConfig holds poll application settings
type AppConfig struct {
	PollCreationAllowed bool `mapstructure:"poll_creation_allowed"`
	// RelevantOffsetDays widens the relevance window: polls stay in default
	// listings this many days past their threshold.
	RelevantOffsetDays int `mapstructure:"relevant_offset_days"`
}

// MaintConfig holds maintenance job settings
type MaintConfig struct {
	// AutoArchiveAfterDays archives polls closed longer than this; 0
	// disables the sweep.
	AutoArchiveAfterDays int    `mapstructure:"auto_archive_after_days"`
	SweepSchedule        string `mapstructure:"sweep_schedule"`
}

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default configuration values
	setDefaults(v)

	// Read the config file
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, will rely on defaults and env vars
	}

	// Override with environment variables
	v.SetEnvPrefix("POLLHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Parse the configuration
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	// General defaults
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// App defaults
	v.SetDefault("app.poll_creation_allowed", true)
	v.SetDefault("app.relevant_offset_days", 30)

	// Maintenance defaults
	v.SetDefault("maintenance.auto_archive_after_days", 0)
	v.SetDefault("maintenance.sweep_schedule", "0 0 3 * * *")

	// Database defaults
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.timeout", "30s")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.embedded", false)
	v.SetDefault("database.schema_dir", "./sql/schema")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.validateApp(); err != nil {
		return fmt.Errorf("app config: %w", err)
	}

	if err := c.validateMaintenance(); err != nil {
		return fmt.Errorf("maintenance config: %w", err)
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.URL == "" && !c.Database.Embedded {
		return fmt.Errorf("database URL cannot be empty")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("max_conns must be positive")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func (c *Config) validateApp() error {
	if c.App.RelevantOffsetDays < 0 {
		return fmt.Errorf("relevant_offset_days cannot be negative")
	}
	return nil
}

func (c *Config) validateMaintenance() error {
	if c.Maintenance.AutoArchiveAfterDays < 0 {
		return fmt.Errorf("auto_archive_after_days cannot be negative")
	}
	if c.Maintenance.SweepSchedule == "" {
		return fmt.Errorf("sweep_schedule cannot be empty")
	}
	return nil
}

// GetLogLevel returns a zap log level based on the configured string
func (c *Config) GetLogLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "info":
		level.SetLevel(zap.InfoLevel)
	case "warn":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}
	return level
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}

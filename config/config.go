package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RATE_ENGINE_SERVER_PORT.
const EnvPrefix = "RATE_ENGINE"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	PMS       PMSConfig       `mapstructure:"pms"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig points at the SQLite file. ":memory:" keeps everything in process.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// PMSConfig configures the PMS client. With Sandbox set, no network calls are made.
type PMSConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoffMs  int           `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int           `mapstructure:"max_backoff_ms"`
	Sandbox           bool          `mapstructure:"sandbox"`
}

// CalendarConfig holds calendar load defaults.
type CalendarConfig struct {
	WindowDays   int `mapstructure:"window_days"`
	PickupWindow int `mapstructure:"pickup_window"`
}

// SchedulerConfig controls the background calendar refresh.
type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Env   string `mapstructure:"env"`
	Level string `mapstructure:"level"`
}

// Load reads defaults, then the optional config file, then RATE_ENGINE_* env vars.
// Callers apply their own overrides and then call Validate.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if !c.PMS.Sandbox && c.PMS.BaseURL == "" {
		return errors.New("pms.base_url is required unless pms.sandbox is set")
	}
	if c.Calendar.WindowDays <= 0 {
		return fmt.Errorf("calendar.window_days must be positive: %d", c.Calendar.WindowDays)
	}
	if c.Calendar.PickupWindow <= 0 {
		return fmt.Errorf("calendar.pickup_window must be positive: %d", c.Calendar.PickupWindow)
	}
	if c.Scheduler.Enabled && c.Scheduler.RefreshInterval <= 0 {
		return errors.New("scheduler.refresh_interval must be positive when the scheduler is enabled")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("database.path", "./data/rates.db")

	v.SetDefault("pms.base_url", "")
	v.SetDefault("pms.api_key", "")
	v.SetDefault("pms.timeout", 10*time.Second)
	v.SetDefault("pms.requests_per_second", 5)
	v.SetDefault("pms.burst", 10)
	v.SetDefault("pms.max_retries", 3)
	v.SetDefault("pms.initial_backoff_ms", 200)
	v.SetDefault("pms.max_backoff_ms", 5000)
	v.SetDefault("pms.sandbox", false)

	v.SetDefault("calendar.window_days", 365)
	v.SetDefault("calendar.pickup_window", 1)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.refresh_interval", 15*time.Minute)

	v.SetDefault("logging.env", "prod")
	v.SetDefault("logging.level", "info")
}

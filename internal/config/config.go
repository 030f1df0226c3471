package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
	Storage   StorageConfig   `toml:"storage"`
	OpenF1    OpenF1Config    `toml:"openf1"`
	Collector CollectorConfig `toml:"collector"`
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// LoggingConfig holds the logger settings
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json, console
}

// StorageConfig holds the SQLite settings
type StorageConfig struct {
	Path string `toml:"path"`
}

// OpenF1Config holds the remote API client settings
type OpenF1Config struct {
	BaseURL               string `toml:"base_url"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	MaxRetries            int    `toml:"max_retries"`
	BackoffBaseMS         int    `toml:"backoff_base_ms"`
	ServerErrorRetryMS    int    `toml:"server_error_retry_ms"`
}

// CollectorConfig holds the data collection pipeline settings
type CollectorConfig struct {
	Concurrency             int  `toml:"concurrency"`
	EntityRetries           int  `toml:"entity_retries"`
	EntityRetryDelayMS      int  `toml:"entity_retry_delay_ms"`
	PaceDelayMS             int  `toml:"pace_delay_ms"`
	LocationWindowMinutes   int  `toml:"location_window_minutes"`
	WindowPaceMS            int  `toml:"window_pace_ms"`
	WeatherToleranceMinutes int  `toml:"weather_tolerance_minutes"`
	RetainSessions          int  `toml:"retain_sessions"`
	SeasonStartMonth        int  `toml:"season_start_month"`
	UpdateOnStart           bool `toml:"update_on_start"`
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Path: "f1_strategy.db",
		},
		OpenF1: OpenF1Config{
			BaseURL:               "https://api.openf1.org/v1",
			RequestTimeoutSeconds: 60,
			MaxRetries:            3,
			BackoffBaseMS:         1000,
			ServerErrorRetryMS:    1000,
		},
		Collector: CollectorConfig{
			Concurrency:             2,
			EntityRetries:           3,
			EntityRetryDelayMS:      2000,
			PaceDelayMS:             500,
			LocationWindowMinutes:   30,
			WindowPaceMS:            150,
			WeatherToleranceMinutes: 5,
			RetainSessions:          5,
			SeasonStartMonth:        3,
			UpdateOnStart:           false,
		},
	}
}

// Load reads the TOML configuration file at path on top of the defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.OpenF1.BaseURL == "" {
		return fmt.Errorf("openf1 base_url must not be empty")
	}
	if c.OpenF1.MaxRetries < 1 {
		return fmt.Errorf("openf1 max_retries must be at least 1")
	}
	if c.OpenF1.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("openf1 request_timeout_seconds must be at least 1")
	}
	if c.Collector.Concurrency < 1 {
		return fmt.Errorf("collector concurrency must be at least 1")
	}
	if c.Collector.EntityRetries < 1 {
		return fmt.Errorf("collector entity_retries must be at least 1")
	}
	if c.Collector.LocationWindowMinutes < 1 {
		return fmt.Errorf("collector location_window_minutes must be at least 1")
	}
	if c.Collector.WeatherToleranceMinutes < 0 {
		return fmt.Errorf("collector weather_tolerance_minutes must not be negative")
	}
	if c.Collector.RetainSessions < 1 {
		return fmt.Errorf("collector retain_sessions must be at least 1")
	}
	if c.Collector.SeasonStartMonth < 1 || c.Collector.SeasonStartMonth > 12 {
		return fmt.Errorf("collector season_start_month must be a calendar month")
	}
	return nil
}

// RequestTimeout returns the per-request timeout as a duration
func (c OpenF1Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// BackoffBase returns the retry backoff base as a duration
func (c OpenF1Config) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMS) * time.Millisecond
}

// ServerErrorRetry returns the fixed retry delay for 5xx responses
func (c OpenF1Config) ServerErrorRetry() time.Duration {
	return time.Duration(c.ServerErrorRetryMS) * time.Millisecond
}

// PaceDelay returns the pacing delay applied before each entity task
func (c CollectorConfig) PaceDelay() time.Duration {
	return time.Duration(c.PaceDelayMS) * time.Millisecond
}

// EntityRetryDelay returns the initial delay between entity-level attempts
func (c CollectorConfig) EntityRetryDelay() time.Duration {
	return time.Duration(c.EntityRetryDelayMS) * time.Millisecond
}

// LocationWindow returns the location fetch window size
func (c CollectorConfig) LocationWindow() time.Duration {
	return time.Duration(c.LocationWindowMinutes) * time.Minute
}

// WindowPace returns the pacing delay between location windows
func (c CollectorConfig) WindowPace() time.Duration {
	return time.Duration(c.WindowPaceMS) * time.Millisecond
}

// WeatherTolerance returns the maximum lap-to-weather match distance
func (c CollectorConfig) WeatherTolerance() time.Duration {
	return time.Duration(c.WeatherToleranceMinutes) * time.Minute
}

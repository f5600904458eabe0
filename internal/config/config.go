// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Defaults for the backend API surface and the polling loop. The poll interval
// mirrors the backend's expectation of one observational client per session;
// it is deliberately not user-tunable per session, only globally via config.
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultRequestTimeout = 30 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultHealthInterval = 5 * time.Second
	DefaultMaxSteps       = 20
)

// Config is the full application configuration, populated by viper from the
// config file, ATLASCTL_* environment variables, and command flags.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Poller  PollerConfig  `mapstructure:"poller" yaml:"poller"`
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// APIConfig describes how to reach the backend.
type APIConfig struct {
	// BaseURL of the backend, e.g. http://localhost:8000.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// RequestTimeout bounds each individual HTTP call.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// RateLimit caps outbound requests per second. Zero disables limiting.
	// The poller already paces itself; this guards the one-shot commands when
	// scripted in tight loops.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// PollerConfig controls the session polling loop.
type PollerConfig struct {
	// Interval between polls of /api/session/{id}/full.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// HealthInterval between /health probes for the connection indicator.
	HealthInterval time.Duration `mapstructure:"health_interval" yaml:"health_interval"`
}

// ArchiveConfig enables the optional Postgres transcript archive.
// The archive is off unless URL is set.
type ArchiveConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ReportConfig holds defaults for transcript report generation.
type ReportConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir"`
}

// NewDefaultConfig returns a Config with all defaults applied.
func NewDefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			ServiceName: "atlasctl",
			MaxSize:     10,
			MaxBackups:  3,
			MaxAge:      7,
		},
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			RequestTimeout: DefaultRequestTimeout,
		},
		Poller: PollerConfig{
			Interval:       DefaultPollInterval,
			HealthInterval: DefaultHealthInterval,
		},
		Report: ReportConfig{
			Format: "markdown",
			Dir:    ".",
		},
	}
}

// SetDefaults registers every default with viper so values absent from the
// config file and environment resolve correctly during Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)
	v.SetDefault("logger.service_name", d.Logger.ServiceName)
	v.SetDefault("logger.max_size", d.Logger.MaxSize)
	v.SetDefault("logger.max_backups", d.Logger.MaxBackups)
	v.SetDefault("logger.max_age", d.Logger.MaxAge)
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.request_timeout", d.API.RequestTimeout)
	v.SetDefault("api.rate_limit", 0.0)
	v.SetDefault("poller.interval", d.Poller.Interval)
	v.SetDefault("poller.health_interval", d.Poller.HealthInterval)
	v.SetDefault("report.format", d.Report.Format)
	v.SetDefault("report.dir", d.Report.Dir)
}

// Validate checks the configuration for values that would break at runtime.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not a valid http(s) URL", c.API.BaseURL)
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be positive")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be positive")
	}
	if c.Poller.HealthInterval <= 0 {
		return fmt.Errorf("poller.health_interval must be positive")
	}
	switch strings.ToLower(c.Report.Format) {
	case "markdown", "md", "json":
	default:
		return fmt.Errorf("report.format must be one of markdown, json (got %q)", c.Report.Format)
	}
	if c.Archive.URL != "" && !strings.HasPrefix(c.Archive.URL, "postgres://") && !strings.HasPrefix(c.Archive.URL, "postgresql://") {
		return fmt.Errorf("archive.url must be a postgres:// connection string")
	}
	return nil
}

// ExpandPaths resolves ~ in user supplied file paths. Called once after
// unmarshalling; failures are returned rather than silently ignored so a bad
// HOME setup surfaces immediately.
func (c *Config) ExpandPaths() error {
	var err error
	if c.Logger.LogFile != "" {
		if c.Logger.LogFile, err = homedir.Expand(c.Logger.LogFile); err != nil {
			return fmt.Errorf("failed to expand logger.log_file: %w", err)
		}
	}
	if c.Report.Dir != "" {
		if c.Report.Dir, err = homedir.Expand(c.Report.Dir); err != nil {
			return fmt.Errorf("failed to expand report.dir: %w", err)
		}
	}
	return nil
}

// ArchiveEnabled reports whether the Postgres transcript archive is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.Archive.URL != ""
}

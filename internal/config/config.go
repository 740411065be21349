// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Export ExportConfig `mapstructure:"export" yaml:"export"`
	Enrich EnrichConfig `mapstructure:"enrich" yaml:"enrich"`
	HTTP   HTTPConfig   `mapstructure:"http" yaml:"http"`
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
}

// ServerConfig identifies the JFrog platform instance and how to authenticate
// against it. AccessToken is never written back out to disk.
type ServerConfig struct {
	URL         string        `mapstructure:"url" yaml:"url"`
	AccessToken string        `mapstructure:"access_token" yaml:"-"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// BaseURL returns the platform URL without a trailing slash.
func (s ServerConfig) BaseURL() string {
	return strings.TrimRight(s.URL, "/")
}

// ExportConfig controls the violation export pipeline.
type ExportConfig struct {
	PageSize       int    `mapstructure:"page_size" yaml:"page_size"`
	Format         string `mapstructure:"format" yaml:"format"`
	OutputDir      string `mapstructure:"output_dir" yaml:"output_dir"`
	Output         string `mapstructure:"output" yaml:"output"`
	IncludeDetails bool   `mapstructure:"include_details" yaml:"include_details"`
	KeepRaw        bool   `mapstructure:"keep_raw" yaml:"keep_raw"`
}

// EnrichConfig controls the responsible-user lookups that run after the
// violations have been fetched.
type EnrichConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// HTTPConfig tunes the outbound HTTP client.
type HTTPConfig struct {
	IgnoreTLSErrors bool   `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ForceHTTP2      bool   `mapstructure:"force_http2" yaml:"force_http2"`
	Proxy           string `mapstructure:"proxy" yaml:"proxy"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Server --
	v.SetDefault("server.url", "")
	v.SetDefault("server.timeout", "30s")

	// -- Export --
	v.SetDefault("export.page_size", 100)
	v.SetDefault("export.format", "csv")
	v.SetDefault("export.output_dir", ".")
	v.SetDefault("export.include_details", true)
	v.SetDefault("export.keep_raw", false)

	// -- Enrich --
	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.rate_limit", 8.0)
	v.SetDefault("enrich.request_timeout", "10s")

	// -- HTTP --
	v.SetDefault("http.ignore_tls_errors", false)
	v.SetDefault("http.force_http2", true)
	v.SetDefault("http.proxy", "")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "xviol")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("server.access_token", "XVIOL_SERVER_ACCESS_TOKEN", "JFROG_ACCESS_TOKEN")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is a required configuration field")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.url must be a valid http(s) URL, got %q", c.Server.URL)
	}
	if c.Server.AccessToken == "" {
		return fmt.Errorf("server.access_token is required. Set it in the config file or via XVIOL_SERVER_ACCESS_TOKEN")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be a positive duration")
	}
	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export configuration invalid: %w", err)
	}
	if err := c.Enrich.Validate(); err != nil {
		return fmt.Errorf("enrich configuration invalid: %w", err)
	}
	if c.HTTP.Proxy != "" {
		if _, err := url.Parse(c.HTTP.Proxy); err != nil {
			return fmt.Errorf("http.proxy is not a valid URL: %w", err)
		}
	}
	return nil
}

// Validate checks the export settings.
func (e *ExportConfig) Validate() error {
	if e.PageSize < 1 || e.PageSize > 500 {
		return fmt.Errorf("page_size must be between 1 and 500, got %d", e.PageSize)
	}
	switch e.Format {
	case "csv", "tsv":
	default:
		return fmt.Errorf("format must be one of csv, tsv; got %q", e.Format)
	}
	return nil
}

// Validate checks the enrichment settings.
func (e *EnrichConfig) Validate() error {
	if !e.Enabled {
		return nil
	}
	if e.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be greater than 0")
	}
	if e.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be a positive duration")
	}
	return nil
}

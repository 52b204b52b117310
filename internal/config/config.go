package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/MeKo-Tech/gobar/internal/generator"
)

// Config represents the complete configuration for the gobar application.
// It includes settings for all commands (generate, batch, serve) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file" json:"log_file"`

	// Barcode generation
	Generator GeneratorConfig `mapstructure:"generator" yaml:"generator" json:"generator"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// GeneratorConfig contains encoder and worker pool settings.
type GeneratorConfig struct {
	Encoder        string `mapstructure:"encoder" yaml:"encoder" json:"encoder"`
	Mode           string `mapstructure:"mode" yaml:"mode" json:"mode"`
	NormalizeInput bool   `mapstructure:"normalize_input" yaml:"normalize_input" json:"normalize_input"`
	Workers        int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	QueueSize      int    `mapstructure:"queue_size" yaml:"queue_size" json:"queue_size"`
}

// OutputConfig controls where and how rasters are written to disk.
type OutputConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir" json:"dir"`
	ImageFormat string `mapstructure:"image_format" yaml:"image_format" json:"image_format"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig configures per-client request limits.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int  `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Generator: GeneratorConfig{
			Encoder:        barcode.EncoderZXing,
			Mode:           barcode.ModeBase64.String(),
			NormalizeInput: false,
			Workers:        4,
			QueueSize:      16,
		},
		Output: OutputConfig{
			Dir:         ".",
			ImageFormat: "png",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     10,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 120,
				RequestsPerHour:   3000,
				MaxRequestsPerDay: 20000,
			},
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: true,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if _, err := barcode.NewEncoder(c.Generator.Encoder); err != nil {
		return fmt.Errorf("invalid generator encoder: %w", err)
	}
	if _, err := barcode.ParseMode(c.Generator.Mode); err != nil {
		return fmt.Errorf("invalid generator mode: %w", err)
	}
	if c.Generator.Workers <= 0 {
		return fmt.Errorf("invalid generator workers: %d (must be positive)", c.Generator.Workers)
	}
	if c.Generator.QueueSize < 0 {
		return fmt.Errorf("invalid generator queue size: %d (must not be negative)", c.Generator.QueueSize)
	}

	if !slices.Contains(barcode.SupportedImageExtensions, "."+strings.ToLower(c.Output.ImageFormat)) {
		return fmt.Errorf("invalid output image format: %s (must be one of: %s)",
			c.Output.ImageFormat, strings.Join(imageFormats(), ", "))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %d (must not be negative)", c.Server.ShutdownTimeout)
	}
	if rl := c.Server.RateLimit; rl.Enabled {
		if rl.RequestsPerMinute <= 0 || rl.RequestsPerHour <= 0 {
			return fmt.Errorf("invalid rate limit: %d/min, %d/hour (must be positive)", rl.RequestsPerMinute, rl.RequestsPerHour)
		}
		if rl.MaxRequestsPerDay < 0 {
			return fmt.Errorf("invalid daily request quota: %d (must not be negative)", rl.MaxRequestsPerDay)
		}
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	return nil
}

// Mode returns the configured default output mode, falling back to base64.
func (c *Config) Mode() barcode.Mode {
	m, err := barcode.ParseMode(c.Generator.Mode)
	if err != nil {
		return barcode.ModeBase64
	}
	return m
}

// ToGeneratorConfig converts the config to the generator package format.
func (c *Config) ToGeneratorConfig() generator.Config {
	return generator.Config{
		Encoder:   c.Generator.Encoder,
		Normalize: c.Generator.NormalizeInput,
		Workers:   c.Generator.Workers,
		QueueSize: c.Generator.QueueSize,
	}
}

func imageFormats() []string {
	out := make([]string, 0, len(barcode.SupportedImageExtensions))
	for _, e := range barcode.SupportedImageExtensions {
		out = append(out, strings.TrimPrefix(e, "."))
	}
	return out
}

// Package config is the process-wide configuration surface of the tracing
// core, read once at startup. Environment variables are the primary source;
// a YAML file can override them for deployments that ship config files.
//
// Configuration errors are the one class of error allowed to abort
// initialization; after Load returns, nothing here changes or fails again.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all tracing configuration.
type Config struct {
	Service  ServiceConfig
	Sanitize SanitizeConfig
	Logging  LogConfig
	Exporter ExporterConfig
}

// ServiceConfig identifies the instrumented service.
type ServiceConfig struct {
	Name string `envconfig:"TRACE_SERVICE_NAME" default:"unknown-service"`
}

// SanitizeConfig controls statement sanitization. A single boolean by
// design: it is read once into the sanitizer and never consulted again.
type SanitizeConfig struct {
	StatementsEnabled bool `envconfig:"TRACE_SANITIZE_STATEMENTS" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"TRACE_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"TRACE_LOG_DEV" default:"false"`
}

// ExporterConfig holds span export configuration. An empty endpoint selects
// the log exporter.
type ExporterConfig struct {
	Endpoint      string        `envconfig:"TRACE_EXPORT_ENDPOINT" default:""`
	BufferSize    int           `envconfig:"TRACE_EXPORT_BUFFER" default:"1024"`
	BatchSize     int           `envconfig:"TRACE_EXPORT_BATCH" default:"64"`
	FlushInterval time.Duration `envconfig:"TRACE_EXPORT_FLUSH" default:"5s"`
	Compression   bool          `envconfig:"TRACE_EXPORT_COMPRESSION" default:"true"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fileConfig is the YAML shape. Only fields present in the file override;
// durations are strings so "250ms" style values work.
type fileConfig struct {
	Service *struct {
		Name *string `yaml:"name"`
	} `yaml:"service"`
	Sanitize *struct {
		StatementsEnabled *bool `yaml:"statements_enabled"`
	} `yaml:"sanitize"`
	Logging *struct {
		Level       *string `yaml:"level"`
		Development *bool   `yaml:"development"`
	} `yaml:"logging"`
	Exporter *struct {
		Endpoint      *string `yaml:"endpoint"`
		BufferSize    *int    `yaml:"buffer_size"`
		BatchSize     *int    `yaml:"batch_size"`
		FlushInterval *string `yaml:"flush_interval"`
		Compression   *bool   `yaml:"compression"`
	} `yaml:"exporter"`
}

// LoadFile reads configuration from the environment, then overlays the YAML
// file at path.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := overlay(&cfg, &file); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Service:  ServiceConfig{Name: "unknown-service"},
		Sanitize: SanitizeConfig{StatementsEnabled: true},
		Logging:  LogConfig{Level: "info"},
		Exporter: ExporterConfig{
			BufferSize:    1024,
			BatchSize:     64,
			FlushInterval: 5 * time.Second,
			Compression:   true,
		},
	}
}

// Validate rejects configurations the core cannot run with.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	if c.Exporter.BufferSize <= 0 {
		return fmt.Errorf("exporter buffer size must be positive, got %d", c.Exporter.BufferSize)
	}
	if c.Exporter.BatchSize <= 0 {
		return fmt.Errorf("exporter batch size must be positive, got %d", c.Exporter.BatchSize)
	}
	if c.Exporter.FlushInterval <= 0 {
		return fmt.Errorf("exporter flush interval must be positive, got %s", c.Exporter.FlushInterval)
	}
	return nil
}

func overlay(cfg *Config, file *fileConfig) error {
	if file.Service != nil && file.Service.Name != nil {
		cfg.Service.Name = *file.Service.Name
	}
	if file.Sanitize != nil && file.Sanitize.StatementsEnabled != nil {
		cfg.Sanitize.StatementsEnabled = *file.Sanitize.StatementsEnabled
	}
	if file.Logging != nil {
		if file.Logging.Level != nil {
			cfg.Logging.Level = *file.Logging.Level
		}
		if file.Logging.Development != nil {
			cfg.Logging.Development = *file.Logging.Development
		}
	}
	if file.Exporter != nil {
		if file.Exporter.Endpoint != nil {
			cfg.Exporter.Endpoint = *file.Exporter.Endpoint
		}
		if file.Exporter.BufferSize != nil {
			cfg.Exporter.BufferSize = *file.Exporter.BufferSize
		}
		if file.Exporter.BatchSize != nil {
			cfg.Exporter.BatchSize = *file.Exporter.BatchSize
		}
		if file.Exporter.FlushInterval != nil {
			d, err := time.ParseDuration(*file.Exporter.FlushInterval)
			if err != nil {
				return fmt.Errorf("invalid flush interval %q: %w", *file.Exporter.FlushInterval, err)
			}
			cfg.Exporter.FlushInterval = d
		}
		if file.Exporter.Compression != nil {
			cfg.Exporter.Compression = *file.Exporter.Compression
		}
	}
	return nil
}

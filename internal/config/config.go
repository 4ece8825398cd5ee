package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "ivfeatures/internal/errors"
	"ivfeatures/internal/features"
	"ivfeatures/internal/measurement"
	"ivfeatures/internal/waveform"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Metrics  MetricsConfig  `yaml:"metrics" envconfig:"METRICS"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gte=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	DataDir         string          `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// MetricsConfig controls the OpenTelemetry exporters
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"ENABLED"`
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT" validate:"required_if=Enabled true"`
	// Tracing writes spans to stdout
	Tracing bool `yaml:"tracing" envconfig:"TRACING"`
}

// AnalysisConfig holds everything that shapes how sessions are analysed
type AnalysisConfig struct {
	Params    features.Params    `yaml:"params" envconfig:"PARAMS"`
	Protocols waveform.Protocols `yaml:"protocols" envconfig:"PROTOCOLS"`
	// Duration overrides the sweep length stored in the files; zero keeps it
	Duration   float64  `yaml:"duration" envconfig:"DURATION" validate:"gte=0"`
	Extension  string   `yaml:"extension" envconfig:"EXTENSION"`
	Exclude    []string `yaml:"exclude" envconfig:"EXCLUDE"`
	Strict     bool     `yaml:"strict" envconfig:"STRICT"`
	Precompute bool     `yaml:"precompute" envconfig:"PRECOMPUTE"`
	Workers    int      `yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
}

// Options converts the analysis settings into loader options
func (a AnalysisConfig) Options(logger *slog.Logger) measurement.Options {
	return measurement.Options{
		Params: a.Params,
		Waveform: waveform.LoadOptions{
			Protocols: a.Protocols,
			Duration:  a.Duration,
		},
		Extension:  a.Extension,
		Exclude:    append([]string(nil), a.Exclude...),
		Strict:     a.Strict,
		Precompute: a.Precompute,
		Workers:    a.Workers,
		Logger:     logger,
	}
}

// Load reads the configuration file named by IVF_CONFIG, or the first one
// found in the usual locations, and applies IVF_* environment overrides
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then the environment
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config from file", err).
				WithContext("path", path)
		}
	}

	// unset variables leave the file values in place
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile decodes the YAML file at filePath over cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

var configValidator = validator.New()

// Validate checks every section, including the analysis parameters
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("config validation failed: %v", err), err)
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return apperrors.NewConfigError("logging to a file needs logging.file_path", nil)
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}

	for _, location := range configLocations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			DataDir:         DefaultDataDir,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
		Analysis: AnalysisConfig{
			Params:    features.DefaultParams(),
			Protocols: waveform.DefaultProtocols(),
			Extension: DefaultExtension,
		},
	}
}

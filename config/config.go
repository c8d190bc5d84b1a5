package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/bagofwords1/bagofwords-sub001/datasource"
	"github.com/bagofwords1/bagofwords-sub001/sandbox"
)

// EnvPrefix prefixes environment variable overrides, e.g.
// TABLEGEN_PIPELINE_MAX_RETRIES.
const EnvPrefix = "TABLEGEN"

// Config represents the application configuration
type Config struct {
	Server      ServerConfig        `mapstructure:"server"`
	Sandbox     SandboxConfig       `mapstructure:"sandbox"`
	Pipeline    PipelineConfig      `mapstructure:"pipeline"`
	Logging     LoggingConfig       `mapstructure:"logging"`
	Metrics     MetricsConfig       `mapstructure:"metrics"`
	DataSources []datasource.Config `mapstructure:"data_sources"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	TimeoutSec     int    `mapstructure:"timeout_sec"`
	MaxSteps       uint64 `mapstructure:"max_steps"`
	MaxOutputBytes int    `mapstructure:"max_output_bytes"`
	MaxCodeBytes   int    `mapstructure:"max_code_bytes"`
}

// PipelineConfig holds pipeline defaults
type PipelineConfig struct {
	MaxRetries   int  `mapstructure:"max_retries"`
	MaxRows      int  `mapstructure:"max_rows"`
	Validate     bool `mapstructure:"validate"`
	SummaryLimit int  `mapstructure:"summary_limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode   string `mapstructure:"mode"`
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// New loads and validates the application configuration from config.yaml
// in the working directory or ./config.
func New() (*Config, error) {
	return Load("")
}

// Load reads configuration from path, or searches the default locations
// when path is empty. A missing file in the default locations is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)

	v.SetDefault("sandbox.timeout_sec", 30)
	v.SetDefault("sandbox.max_steps", 100_000_000)
	v.SetDefault("sandbox.max_output_bytes", 64*1024)
	v.SetDefault("sandbox.max_code_bytes", sandbox.DefaultMaxCodeBytes)

	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.max_rows", 1000)
	v.SetDefault("pipeline.validate", true)
	v.SetDefault("pipeline.summary_limit", 300)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("data_sources", []map[string]any{})
}

// validate ensures the configuration is valid. Every problem found is
// reported.
func (c *Config) validate() error {
	var errs []error

	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		errs = append(errs, fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport))
	}
	if c.Server.Transport == "http" && !validPort(c.Server.HTTPPort) {
		errs = append(errs, fmt.Errorf("server.http_port must be between 1 and 65535, got: %d", c.Server.HTTPPort))
	}

	if c.Sandbox.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec))
	}
	if c.Sandbox.MaxOutputBytes <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.max_output_bytes must be positive, got: %d", c.Sandbox.MaxOutputBytes))
	}
	if c.Sandbox.MaxCodeBytes <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.max_code_bytes must be positive, got: %d", c.Sandbox.MaxCodeBytes))
	}

	if c.Pipeline.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("pipeline.max_retries must be at least 1, got: %d", c.Pipeline.MaxRetries))
	}
	if c.Pipeline.MaxRows < 1 {
		errs = append(errs, fmt.Errorf("pipeline.max_rows must be at least 1, got: %d", c.Pipeline.MaxRows))
	}
	if c.Pipeline.SummaryLimit < 1 {
		errs = append(errs, fmt.Errorf("pipeline.summary_limit must be at least 1, got: %d", c.Pipeline.SummaryLimit))
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		errs = append(errs, fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode))
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s", c.Logging.Level))
	}

	if c.Metrics.Enabled {
		if !validPort(c.Metrics.Port) {
			errs = append(errs, fmt.Errorf("metrics.port must be between 1 and 65535, got: %d", c.Metrics.Port))
		} else if c.Server.Transport == "http" && c.Metrics.Port == c.Server.HTTPPort {
			errs = append(errs, fmt.Errorf("metrics.port must differ from server.http_port, both are %d", c.Metrics.Port))
		}
	}

	seen := make(map[string]bool, len(c.DataSources))
	for i, ds := range c.DataSources {
		switch {
		case ds.Name == "":
			errs = append(errs, fmt.Errorf("data_sources[%d].name must not be empty", i))
		case seen[ds.Name]:
			errs = append(errs, fmt.Errorf("data_sources[%d].name %q is duplicated", i, ds.Name))
		}
		seen[ds.Name] = true

		switch ds.Driver {
		case datasource.DriverSQLite, datasource.DriverPostgres, datasource.DriverMySQL:
		default:
			errs = append(errs, fmt.Errorf("data_sources[%d].driver %q is not supported", i, ds.Driver))
		}
		if ds.DSN == "" {
			errs = append(errs, fmt.Errorf("data_sources[%d].dsn must not be empty", i))
		}
	}

	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// ExecutorConfig returns the sandbox limits.
func (c *Config) ExecutorConfig() sandbox.Config {
	return sandbox.Config{
		Timeout:        c.GetTimeout(),
		MaxSteps:       c.Sandbox.MaxSteps,
		MaxOutputBytes: c.Sandbox.MaxOutputBytes,
	}
}

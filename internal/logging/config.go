package logging

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	agenterrors "eks-upgrade-agent/internal/errors"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Rotating file sink limits.
const (
	maxLogSizeMB  = 10
	maxLogBackups = 5
)

// Config holds the logging configuration for the agent.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"log_level"`

	// Format selects the renderer: "json" or "console".
	Format string `yaml:"log_format"`

	// File is the log file path. Empty disables the file sink.
	// Files rotate at 10 MiB with 5 retained backups.
	File string `yaml:"log_file"`

	// CloudWatchGroup is the CloudWatch Logs group name. Empty disables
	// the CloudWatch sink regardless of EnableCloudWatch.
	CloudWatchGroup string `yaml:"cloudwatch_log_group"`

	// CloudWatchRegion is the AWS region for the CloudWatch sink.
	CloudWatchRegion string `yaml:"cloudwatch_region"`

	// EnableConsole enables the stdout sink.
	EnableConsole bool `yaml:"enable_console"`

	// EnableCloudWatch enables the CloudWatch sink. Normalize forces it
	// false when no group name is configured.
	EnableCloudWatch bool `yaml:"enable_cloudwatch"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Format:           FormatJSON,
		CloudWatchRegion: "us-east-1",
		EnableConsole:    true,
		EnableCloudWatch: false,
	}
}

// LoadConfig reads a Config from a YAML file, applying defaults for any
// keys the file omits.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, agenterrors.NewConfigurationError(
			fmt.Sprintf("failed to read logging config: %v", err),
			agenterrors.ConfigurationDetail{File: path},
			agenterrors.WithCause(err),
		)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, agenterrors.NewConfigurationError(
			fmt.Sprintf("failed to parse logging config: %v", err),
			agenterrors.ConfigurationDetail{File: path},
			agenterrors.WithCause(err),
		)
	}

	if err := cfg.Normalize(); err != nil {
		if ae, ok := err.(*agenterrors.AgentError); ok {
			return nil, ae.AddContext("config_file", path)
		}
		return nil, err
	}
	return cfg, nil
}

// Normalize applies defaults and derived fields, and validates the format.
// EnableCloudWatch is a derived field: it is forced false when no log group
// name is given.
func (c *Config) Normalize() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Format != FormatJSON && c.Format != FormatConsole {
		return agenterrors.NewConfigurationError(
			fmt.Sprintf("unknown log format %q", c.Format),
			agenterrors.ConfigurationDetail{
				InvalidValues: map[string]any{"log_format": c.Format},
			},
		)
	}
	if c.CloudWatchRegion == "" {
		c.CloudWatchRegion = "us-east-1"
	}
	c.EnableCloudWatch = c.EnableCloudWatch && c.CloudWatchGroup != ""
	return nil
}

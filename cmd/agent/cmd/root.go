// Package cmd provides the CLI commands for the EKS upgrade agent.
package cmd

import (
	"github.com/spf13/cobra"

	"eks-upgrade-agent/internal/logging"
)

var (
	cfgFile          string
	logLevel         string
	logFormat        string
	logFile          string
	cloudWatchGroup  string
	cloudWatchRegion string
	verbose          bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "eks-upgrade-agent",
	Short: "Autonomous EKS cluster upgrade agent",
	Long: `The EKS upgrade agent automates cluster upgrades through perception,
planning, execution, and validation phases.

Every phase reports through a structured logging pipeline that writes
JSON (or colorized console output) to stdout, a rotating local file,
and CloudWatch Logs with local fallback.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./eks-upgrade-agent.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json or console)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "path for the rotating log file")
	rootCmd.PersistentFlags().StringVar(&cloudWatchGroup, "cloudwatch-group", "", "CloudWatch Logs group name")
	rootCmd.PersistentFlags().StringVar(&cloudWatchRegion, "cloudwatch-region", "", "AWS region for CloudWatch Logs")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(forwardCmd)
	rootCmd.AddCommand(checkCmd)
}

// resolveConfig builds the logging configuration from the config file and
// flag overrides. Flags win over the file, the file over defaults.
func resolveConfig() (*logging.Config, error) {
	var cfg *logging.Config
	if cfgFile != "" {
		loaded, err := logging.LoadConfig(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = logging.DefaultConfig()
	}

	if logLevel != "" {
		cfg.Level = logLevel
	}
	if verbose {
		cfg.Level = "debug"
	}
	if logFormat != "" {
		cfg.Format = logFormat
	}
	if logFile != "" {
		cfg.File = logFile
	}
	if cloudWatchGroup != "" {
		cfg.CloudWatchGroup = cloudWatchGroup
		cfg.EnableCloudWatch = true
	}
	if cloudWatchRegion != "" {
		cfg.CloudWatchRegion = cloudWatchRegion
	}
	return cfg, nil
}

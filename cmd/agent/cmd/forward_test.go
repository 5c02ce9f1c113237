package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultForwardOptions tests the default options.
func TestDefaultForwardOptions(t *testing.T) {
	opts := DefaultForwardOptions()

	assert.False(t, opts.TailMode)
	assert.Equal(t, 100, opts.BatchSize)
	assert.Equal(t, 5*time.Second, opts.BatchTimeout)
	assert.Equal(t, 10000, opts.BufferSize)
	assert.False(t, opts.DropOnFull)
}

// TestResolveConfig tests config resolution precedence: flags over file,
// file over defaults.
func TestResolveConfig(t *testing.T) {
	reset := func() {
		cfgFile, logLevel, logFormat, logFile = "", "", "", ""
		cloudWatchGroup, cloudWatchRegion = "", ""
		verbose = false
	}

	t.Run("defaults with no flags", func(t *testing.T) {
		reset()
		t.Cleanup(reset)

		cfg, err := resolveConfig()
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.Level)
		assert.Equal(t, "json", cfg.Format)
		assert.False(t, cfg.EnableCloudWatch)
	})

	t.Run("flags override defaults", func(t *testing.T) {
		reset()
		t.Cleanup(reset)

		logLevel = "warn"
		logFormat = "console"
		logFile = "/var/log/eks-upgrade/agent.log"
		cloudWatchGroup = "/eks/upgrades"
		cloudWatchRegion = "eu-west-1"

		cfg, err := resolveConfig()
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.Level)
		assert.Equal(t, "console", cfg.Format)
		assert.Equal(t, "/var/log/eks-upgrade/agent.log", cfg.File)
		assert.Equal(t, "/eks/upgrades", cfg.CloudWatchGroup)
		assert.Equal(t, "eu-west-1", cfg.CloudWatchRegion)
		assert.True(t, cfg.EnableCloudWatch)
	})

	t.Run("verbose forces debug", func(t *testing.T) {
		reset()
		t.Cleanup(reset)

		logLevel = "error"
		verbose = true

		cfg, err := resolveConfig()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Level)
	})

	t.Run("flags override config file", func(t *testing.T) {
		reset()
		t.Cleanup(reset)

		path := filepath.Join(t.TempDir(), "agent.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nlog_format: console\n"), 0644))

		cfgFile = path
		logFormat = "json"

		cfg, err := resolveConfig()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Level, "file value should survive")
		assert.Equal(t, "json", cfg.Format, "flag should win over file")
	})

	t.Run("cloudwatch group from config file alone", func(t *testing.T) {
		reset()
		t.Cleanup(reset)

		path := filepath.Join(t.TempDir(), "agent.yaml")
		require.NoError(t, os.WriteFile(path, []byte("cloudwatch_log_group: /eks/upgrades\ncloudwatch_region: ap-southeast-2\n"), 0644))

		cfgFile = path

		cfg, err := resolveConfig()
		require.NoError(t, err)
		assert.Equal(t, "/eks/upgrades", cfg.CloudWatchGroup, "file group must reach the resolved config without the flag")
		assert.Equal(t, "ap-southeast-2", cfg.CloudWatchRegion)

		// Flag still wins over the file.
		cloudWatchGroup = "/eks/override"
		cfg, err = resolveConfig()
		require.NoError(t, err)
		assert.Equal(t, "/eks/override", cfg.CloudWatchGroup)
	})

	t.Run("missing config file errors", func(t *testing.T) {
		reset()
		t.Cleanup(reset)

		cfgFile = filepath.Join(t.TempDir(), "absent.yaml")
		_, err := resolveConfig()
		require.Error(t, err)
	})
}

// Package logging provides structured logging for the EKS upgrade agent.
//
// Records flow through a fixed pipeline: level filter, common-context
// processor (timestamp, level, process id, goroutine label), exception
// projection, then a JSON or colorized console renderer. The rendered line
// fans out to the configured sinks: stdout, a rotating file, and CloudWatch
// Logs with local fallback.
//
// JSON output is one object per line:
//
//	{"timestamp":"2024-03-01T12:00:00.000Z","level":"INFO","process_id":4242,"thread_name":"goroutine-1","event":"Upgrade step started","step_name":"provision_cluster"}
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// loggerName is the fixed name every logger handle is bound to.
const loggerName = "eks-upgrade-agent"

var (
	mu           sync.Mutex
	globalLogger *zap.Logger
	globalSugar  *zap.SugaredLogger
)

// Setup builds the logging pipeline from cfg, installs it as the
// process-wide default, emits a startup event summarizing the resolved
// configuration, and returns the logger handle.
func Setup(cfg *Config) (*zap.Logger, error) {
	logger, err := build(cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	globalLogger = logger
	globalSugar = logger.Sugar()
	mu.Unlock()

	return logger, nil
}

func build(cfg *Config) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var sinks []zapcore.WriteSyncer
	if cfg.EnableConsole {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxLogSizeMB,
			MaxBackups: maxLogBackups,
			LocalTime:  false, // UTC for consistency
		}))
	}
	if cfg.EnableCloudWatch {
		handler := NewCloudWatchHandler(context.Background(), cfg.CloudWatchGroup, "", cfg.CloudWatchRegion)
		sinks = append(sinks, handler)
	}
	if len(sinks) == 0 {
		sinks = append(sinks, zapcore.AddSync(io.Discard))
	}

	procs := []Processor{CommonContext, ExceptionInfo}
	core := newPipelineCore(level, cfg.Format, procs, zapcore.NewMultiWriteSyncer(sinks...))
	logger := zap.New(core).Named(loggerName)

	logger.Info("Logging system initialized",
		zap.String("log_level", cfg.Level),
		zap.String("log_format", cfg.Format),
		zap.Bool("console_enabled", cfg.EnableConsole),
		zap.Bool("file_enabled", cfg.File != ""),
		zap.Bool("cloudwatch_enabled", cfg.EnableCloudWatch),
	)

	return logger, nil
}

// L returns the process-wide logger, initializing it with defaults on
// first use when Setup has not run.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		// Defaults cannot fail validation.
		logger, _ := build(DefaultConfig())
		globalLogger = logger
		globalSugar = logger.Sugar()
	}
	return globalLogger
}

// S returns the sugared form of the process-wide logger.
func S() *zap.SugaredLogger {
	L()
	mu.Lock()
	defer mu.Unlock()
	return globalSugar
}

// With creates a child logger with additional fields.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// WithUpgrade creates a child logger bound to one upgrade run.
func WithUpgrade(upgradeID, clusterName string) *zap.Logger {
	return L().With(
		zap.String("upgrade_id", upgradeID),
		zap.String("cluster_name", clusterName),
	)
}

// Sync flushes any buffered log entries.
func Sync() error {
	mu.Lock()
	logger := globalLogger
	mu.Unlock()
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// Field constructors for common log fields

// ClusterName returns a field for the target cluster name.
func ClusterName(name string) zap.Field {
	return zap.String("cluster_name", name)
}

// UpgradeID returns a field for the upgrade run identifier.
func UpgradeID(id string) zap.Field {
	return zap.String("upgrade_id", id)
}

// StepName returns a field for upgrade step names.
func StepName(name string) zap.Field {
	return zap.String("step_name", name)
}

// Phase returns a field for the agent phase (perception, planning, ...).
func Phase(phase string) zap.Field {
	return zap.String("phase", phase)
}

// ErrorCode returns a field for agent error codes.
func ErrorCode(code string) zap.Field {
	return zap.String("error_code", code)
}

// Duration returns a field for time durations.
func Duration(d time.Duration) zap.Field {
	return zap.Duration("duration", d)
}

// TargetVersion returns a field for the Kubernetes version being upgraded to.
func TargetVersion(version string) zap.Field {
	return zap.String("target_version", version)
}

// NodeGroup returns a field for node group identifiers.
func NodeGroup(name string) zap.Field {
	return zap.String("node_group", name)
}

// Package forward ships agent log files to CloudWatch Logs.
//
// A Source reads log lines (whole file, tailed file, or stdin) and turns
// them into timestamped events; the Forwarder pumps those events through a
// batch processor into the CloudWatch handler.
package forward

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nxadm/tail"
	"go.uber.org/zap"

	"eks-upgrade-agent/internal/models"
)

// Source is the interface log inputs must implement.
type Source interface {
	// Read sends log events to the channel until the context is
	// cancelled or the source is exhausted.
	Read(ctx context.Context, events chan<- models.LogEvent) error

	// Name returns a human-readable name for this source.
	Name() string

	// Close releases any resources held by the source.
	Close() error
}

// FileSource reads log events from a file, either in one pass or by
// tailing it for new lines.
type FileSource struct {
	path   string
	tail   bool
	logger *zap.Logger
}

// NewFileSource creates a file source. With tailMode set the source
// follows the file and survives rotation.
func NewFileSource(path string, tailMode bool, logger *zap.Logger) *FileSource {
	return &FileSource{
		path:   path,
		tail:   tailMode,
		logger: logger,
	}
}

// Name returns the source name.
func (f *FileSource) Name() string {
	return fmt.Sprintf("file:%s", f.path)
}

// Read reads log events from the file.
func (f *FileSource) Read(ctx context.Context, events chan<- models.LogEvent) error {
	if f.tail {
		return f.readTail(ctx, events)
	}
	return f.readBatch(ctx, events)
}

func (f *FileSource) readBatch(ctx context.Context, events chan<- models.LogEvent) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// Long JSON lines with embedded stack traces exceed the default limit.
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		select {
		case events <- parseLine(scanner.Text()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return scanner.Err()
}

func (f *FileSource) readTail(ctx context.Context, events chan<- models.LogEvent) error {
	t, err := tail.TailFile(f.path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail file: %w", err)
	}
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				f.logger.Warn("Error reading line", zap.Error(line.Err))
				continue
			}
			select {
			case events <- parseLine(line.Text):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close releases resources.
func (f *FileSource) Close() error {
	return nil
}

// StdinSource reads log events from standard input.
type StdinSource struct {
	logger *zap.Logger
}

// NewStdinSource creates a stdin source.
func NewStdinSource(logger *zap.Logger) *StdinSource {
	return &StdinSource{logger: logger}
}

// Name returns the source name.
func (s *StdinSource) Name() string {
	return "stdin"
}

// Read reads log events from stdin.
func (s *StdinSource) Read(ctx context.Context, events chan<- models.LogEvent) error {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		select {
		case events <- parseLine(scanner.Text()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return scanner.Err()
}

// Close releases resources.
func (s *StdinSource) Close() error {
	return nil
}

// parseLine turns one log line into an event. Lines emitted by the agent's
// JSON pipeline carry their own timestamp; anything else is stamped with
// the read time so CloudWatch ordering still holds.
func parseLine(line string) models.LogEvent {
	ts := time.Now()
	if strings.HasPrefix(strings.TrimSpace(line), "{") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err == nil {
			if raw, ok := entry["timestamp"].(string); ok {
				if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
					ts = parsed
				}
			}
		}
	}
	return models.NewLogEvent(ts, line)
}

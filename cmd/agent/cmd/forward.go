package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eks-upgrade-agent/internal/batch"
	"eks-upgrade-agent/internal/forward"
	"eks-upgrade-agent/internal/logging"
	"eks-upgrade-agent/internal/models"
)

// ForwardOptions holds options for the forward command.
type ForwardOptions struct {
	Path         string
	TailMode     bool
	BatchSize    int
	BatchTimeout time.Duration
	BufferSize   int
	DropOnFull   bool
}

// DefaultForwardOptions returns the default forward options.
func DefaultForwardOptions() *ForwardOptions {
	return &ForwardOptions{
		TailMode:     false,
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		BufferSize:   10000,
		DropOnFull:   false,
	}
}

// forwardCmd ships a log file (or stdin) to CloudWatch Logs.
var forwardCmd = &cobra.Command{
	Use:   "forward [path]",
	Short: "Forward a log file to CloudWatch Logs",
	Long: `Forward log lines from a file or stdin to CloudWatch Logs.
Supports batch mode (read the entire file) and tail mode (follow new
lines across rotation).

Examples:
  eks-upgrade-agent forward /var/log/eks-upgrade/agent.jsonl --cloudwatch-group /eks/upgrades
  eks-upgrade-agent forward /var/log/eks-upgrade/agent.jsonl --tail --cloudwatch-group /eks/upgrades
  kubectl logs my-pod | eks-upgrade-agent forward - --cloudwatch-group /eks/upgrades`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := DefaultForwardOptions()
		opts.Path = args[0]
		opts.TailMode, _ = cmd.Flags().GetBool("tail")
		opts.BatchSize, _ = cmd.Flags().GetInt("batch-size")
		opts.BatchTimeout, _ = cmd.Flags().GetDuration("batch-timeout")
		opts.DropOnFull, _ = cmd.Flags().GetBool("drop-on-full")
		return runForward(cmd.Context(), opts)
	},
}

func init() {
	forwardCmd.Flags().Bool("tail", false, "follow file for new lines (like tail -f)")
	forwardCmd.Flags().Int("batch-size", 100, "events per CloudWatch submission")
	forwardCmd.Flags().Duration("batch-timeout", 5*time.Second, "longest a partial batch waits before flushing")
	forwardCmd.Flags().Bool("drop-on-full", false, "drop events instead of blocking when the buffer is full")
}

func runForward(ctx context.Context, opts *ForwardOptions) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	// The forwarder writes its own operational logs to the console only;
	// shipping them to the same CloudWatch group it forwards to would echo.
	cfg.EnableCloudWatch = false
	logger, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logging.Sync() }()

	if cfg.CloudWatchGroup == "" {
		return fmt.Errorf("a CloudWatch log group is required (--cloudwatch-group or the config file)")
	}

	handler := logging.NewCloudWatchHandler(ctx, cfg.CloudWatchGroup, "", cfg.CloudWatchRegion)
	if !handler.Enabled() {
		return fmt.Errorf("CloudWatch Logs is unreachable, cannot forward")
	}

	proc, err := batch.NewProcessor(&batch.Config{
		MaxBatchSize: opts.BatchSize,
		MaxWaitTime:  opts.BatchTimeout,
		BufferSize:   opts.BufferSize,
		FlushTimeout: 30 * time.Second,
		DropOnFull:   opts.DropOnFull,
		Logger:       logger,
	}, batch.HandlerFunc(func(ctx context.Context, events []models.LogEvent) (int, error) {
		if err := handler.PutBatch(ctx, events); err != nil {
			return 0, err
		}
		return len(events), nil
	}))
	if err != nil {
		return err
	}

	var source forward.Source
	if opts.Path == "-" {
		source = forward.NewStdinSource(logger)
	} else {
		source = forward.NewFileSource(opts.Path, opts.TailMode, logger)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	return forward.NewForwarder(source, proc, logger).Run(ctx)
}

package forward

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"eks-upgrade-agent/internal/batch"
	"eks-upgrade-agent/internal/logging"
	"eks-upgrade-agent/internal/models"
)

// Forwarder pumps events from a source through a batch processor.
type Forwarder struct {
	source    Source
	processor *batch.Processor
	logger    *zap.Logger
}

// NewForwarder wires a source to a batch processor. The processor's
// handler decides where batches go; in the agent that is the CloudWatch
// handler's PutBatch.
func NewForwarder(source Source, processor *batch.Processor, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = logging.L()
	}
	return &Forwarder{
		source:    source,
		processor: processor,
		logger:    logger.With(zap.String("component", "forwarder")),
	}
}

// Run reads the source until it is exhausted or the context is cancelled,
// then closes the processor so buffered events are flushed. Context
// cancellation is a normal shutdown, not an error.
func (f *Forwarder) Run(ctx context.Context) error {
	f.logger.Info("Forwarder started", zap.String("source", f.source.Name()))

	events := make(chan models.LogEvent, 256)
	readErr := make(chan error, 1)

	go func() {
		defer close(events)
		readErr <- f.source.Read(ctx, events)
	}()

	for event := range events {
		if err := f.processor.Add(event); err != nil {
			f.logger.Warn("Failed to queue event", zap.Error(err))
		}
	}

	err := <-readErr
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	if closeErr := f.processor.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if srcErr := f.source.Close(); srcErr != nil && err == nil {
		err = srcErr
	}

	m := f.processor.GetMetrics()
	f.logger.Info("Forwarder stopped",
		zap.String("source", f.source.Name()),
		zap.Int64("events", m.TotalEvents),
		zap.Int64("sent", m.TotalSent),
		zap.Int64("dropped", m.TotalDropped),
	)
	return err
}

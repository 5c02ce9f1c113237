// Package batch accumulates log events before shipping them upstream.
//
// CloudWatch Logs charges per PutLogEvents call and enforces per-call
// quotas, so the forwarder batches events instead of submitting them one
// by one. The processor flushes on whichever threshold trips first: batch
// size or wait time. Back-pressure is configurable; the buffer either
// blocks producers or drops new events when full.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	agenterrors "eks-upgrade-agent/internal/errors"
	"eks-upgrade-agent/internal/logging"
	"eks-upgrade-agent/internal/models"
)

var (
	// ErrProcessorClosed is returned when operations are attempted on a
	// closed processor.
	ErrProcessorClosed = errors.New("batch processor is closed")

	// ErrBufferFull is returned when DropOnFull is set and the event
	// buffer is at capacity.
	ErrBufferFull = errors.New("event buffer is full")

	// ErrHandlerFailed wraps errors from the batch handler.
	ErrHandlerFailed = errors.New("batch handler failed")
)

// Handler ships a batch of log events upstream. The CloudWatch handler is
// the usual implementation; tests substitute their own.
type Handler interface {
	// HandleBatch submits a batch and returns how many events made it.
	HandleBatch(ctx context.Context, events []models.LogEvent) (sent int, err error)
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, events []models.LogEvent) (int, error)

// HandleBatch implements Handler.
func (f HandlerFunc) HandleBatch(ctx context.Context, events []models.LogEvent) (int, error) {
	return f(ctx, events)
}

// Metrics holds batch processor counters.
type Metrics struct {
	// TotalEvents is the number of events accepted by Add.
	TotalEvents int64

	// TotalBatches is the number of batches flushed.
	TotalBatches int64

	// TotalSent is the number of events the handler confirmed.
	TotalSent int64

	// TotalDropped counts events lost to a full buffer or handler errors.
	TotalDropped int64

	// LastFlushTime is when the last flush completed.
	LastFlushTime time.Time

	// LastFlushDuration is how long the last flush took.
	LastFlushDuration time.Duration

	// LastBatchSize is the size of the last flushed batch.
	LastBatchSize int
}

// Config holds batch processor configuration.
type Config struct {
	// MaxBatchSize is the event count that triggers an immediate flush.
	// Default: 100
	MaxBatchSize int

	// MaxWaitTime is the longest a partial batch sits before flushing.
	// Default: 5 seconds
	MaxWaitTime time.Duration

	// BufferSize is the capacity of the internal event buffer.
	// Default: 10000
	BufferSize int

	// FlushTimeout bounds a single handler call.
	// Default: 30 seconds
	FlushTimeout time.Duration

	// DropOnFull drops new events instead of blocking when the buffer
	// is full. Default: false
	DropOnFull bool

	// Logger is the logger instance.
	Logger *zap.Logger
}

// DefaultConfig returns the default batch processor configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxBatchSize: 100,
		MaxWaitTime:  5 * time.Second,
		BufferSize:   10000,
		FlushTimeout: 30 * time.Second,
		DropOnFull:   false,
		Logger:       logging.L(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MaxBatchSize <= 0 {
		return agenterrors.NewConfigurationError("MaxBatchSize must be positive", agenterrors.ConfigurationDetail{
			InvalidValues: map[string]any{"MaxBatchSize": c.MaxBatchSize},
		})
	}
	if c.MaxWaitTime <= 0 {
		return agenterrors.NewConfigurationError("MaxWaitTime must be positive", agenterrors.ConfigurationDetail{
			InvalidValues: map[string]any{"MaxWaitTime": c.MaxWaitTime.String()},
		})
	}
	if c.BufferSize <= 0 {
		return agenterrors.NewConfigurationError("BufferSize must be positive", agenterrors.ConfigurationDetail{
			InvalidValues: map[string]any{"BufferSize": c.BufferSize},
		})
	}
	if c.FlushTimeout <= 0 {
		return agenterrors.NewConfigurationError("FlushTimeout must be positive", agenterrors.ConfigurationDetail{
			InvalidValues: map[string]any{"FlushTimeout": c.FlushTimeout.String()},
		})
	}
	return nil
}

// Processor accumulates log events and flushes them to a handler when
// either the size or time threshold is reached.
type Processor struct {
	config  *Config
	handler Handler
	logger  *zap.Logger

	eventCh chan models.LogEvent

	batch   []models.LogEvent
	batchMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// closeMu serializes producers against Close: Add sends while holding
	// the read lock, Close marks closed and closes eventCh under the write
	// lock, so no send can race the close.
	closeMu   sync.RWMutex
	closed    atomic.Bool
	closeOnce sync.Once

	metrics     Metrics
	metricsLock sync.RWMutex
}

// NewProcessor creates a batch processor and starts its flush loop.
func NewProcessor(cfg *Config, handler Handler) (*Processor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if handler == nil {
		return nil, agenterrors.NewConfigurationError("batch handler is required", agenterrors.ConfigurationDetail{
			MissingKeys: []string{"handler"},
		})
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.L()
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Processor{
		config:  cfg,
		handler: handler,
		logger:  logger.With(zap.String("component", "batch_processor")),
		eventCh: make(chan models.LogEvent, cfg.BufferSize),
		batch:   make([]models.LogEvent, 0, cfg.MaxBatchSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	p.wg.Add(1)
	go p.flushLoop()

	p.logger.Info("Batch processor started",
		zap.Int("max_batch_size", cfg.MaxBatchSize),
		zap.Duration("max_wait_time", cfg.MaxWaitTime),
		zap.Int("buffer_size", cfg.BufferSize),
	)

	return p, nil
}

// Add queues a log event for the next batch.
// With DropOnFull unset, Add blocks while the buffer is full. With it set,
// the event is dropped and ErrBufferFull returned.
func (p *Processor) Add(event models.LogEvent) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed.Load() {
		return ErrProcessorClosed
	}

	if p.config.DropOnFull {
		select {
		case p.eventCh <- event:
			atomic.AddInt64(&p.metrics.TotalEvents, 1)
			return nil
		default:
			atomic.AddInt64(&p.metrics.TotalDropped, 1)
			p.logger.Warn("Event dropped, buffer full")
			return ErrBufferFull
		}
	}

	select {
	case p.eventCh <- event:
		atomic.AddInt64(&p.metrics.TotalEvents, 1)
		return nil
	case <-p.ctx.Done():
		return ErrProcessorClosed
	}
}

// AddBatch queues multiple log events.
func (p *Processor) AddBatch(events []models.LogEvent) error {
	for _, event := range events {
		if err := p.Add(event); err != nil {
			return err
		}
	}
	return nil
}

// Flush forces an immediate flush of the accumulated batch.
func (p *Processor) Flush(ctx context.Context) error {
	if p.closed.Load() {
		return ErrProcessorClosed
	}

	p.batchMu.Lock()
	batch := p.batch
	p.batch = make([]models.LogEvent, 0, p.config.MaxBatchSize)
	p.batchMu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	return p.flushBatch(ctx, batch)
}

// Close stops the processor and flushes any remaining events. The event
// channel is closed first and the flush loop drains it to completion
// before the context is cancelled, so nothing buffered is lost.
func (p *Processor) Close() error {
	var closeErr error
	p.closeOnce.Do(func() {
		p.closeMu.Lock()
		p.closed.Store(true)
		close(p.eventCh)
		p.closeMu.Unlock()

		p.wg.Wait()
		p.cancel()

		p.batchMu.Lock()
		remaining := p.batch
		p.batch = nil
		p.batchMu.Unlock()

		if len(remaining) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), p.config.FlushTimeout)
			defer cancel()
			if err := p.flushBatch(ctx, remaining); err != nil {
				p.logger.Error("Final flush failed", zap.Error(err))
				closeErr = err
			}
		}

		p.logger.Info("Batch processor stopped",
			zap.Int64("total_events", p.metrics.TotalEvents),
			zap.Int64("total_batches", p.metrics.TotalBatches),
			zap.Int64("total_sent", p.metrics.TotalSent),
			zap.Int64("total_dropped", p.metrics.TotalDropped),
		)
	})
	return closeErr
}

// GetMetrics returns a copy of the current metrics.
func (p *Processor) GetMetrics() Metrics {
	p.metricsLock.RLock()
	defer p.metricsLock.RUnlock()

	return Metrics{
		TotalEvents:       atomic.LoadInt64(&p.metrics.TotalEvents),
		TotalBatches:      atomic.LoadInt64(&p.metrics.TotalBatches),
		TotalSent:         atomic.LoadInt64(&p.metrics.TotalSent),
		TotalDropped:      atomic.LoadInt64(&p.metrics.TotalDropped),
		LastFlushTime:     p.metrics.LastFlushTime,
		LastFlushDuration: p.metrics.LastFlushDuration,
		LastBatchSize:     p.metrics.LastBatchSize,
	}
}

func (p *Processor) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.MaxWaitTime)
	defer ticker.Stop()

	// The closed event channel is the only shutdown signal: the loop must
	// drain every buffered event before returning so Close can flush them.
	for {
		select {
		case event, ok := <-p.eventCh:
			if !ok {
				return
			}

			p.batchMu.Lock()
			p.batch = append(p.batch, event)
			shouldFlush := len(p.batch) >= p.config.MaxBatchSize
			var batch []models.LogEvent
			if shouldFlush {
				batch = p.batch
				p.batch = make([]models.LogEvent, 0, p.config.MaxBatchSize)
			}
			p.batchMu.Unlock()

			if shouldFlush {
				ctx, cancel := context.WithTimeout(p.ctx, p.config.FlushTimeout)
				if err := p.flushBatch(ctx, batch); err != nil {
					p.logger.Error("Batch flush failed", zap.Error(err))
				}
				cancel()
			}

		case <-ticker.C:
			p.batchMu.Lock()
			batch := p.batch
			p.batch = make([]models.LogEvent, 0, p.config.MaxBatchSize)
			p.batchMu.Unlock()

			if len(batch) > 0 {
				ctx, cancel := context.WithTimeout(p.ctx, p.config.FlushTimeout)
				if err := p.flushBatch(ctx, batch); err != nil {
					p.logger.Error("Periodic flush failed", zap.Error(err))
				}
				cancel()
			}
		}
	}
}

func (p *Processor) flushBatch(ctx context.Context, batch []models.LogEvent) error {
	if len(batch) == 0 {
		return nil
	}

	startTime := time.Now()
	sent, err := p.handler.HandleBatch(ctx, batch)
	duration := time.Since(startTime)

	atomic.AddInt64(&p.metrics.TotalBatches, 1)
	atomic.AddInt64(&p.metrics.TotalSent, int64(sent))

	p.metricsLock.Lock()
	p.metrics.LastFlushTime = time.Now()
	p.metrics.LastFlushDuration = duration
	p.metrics.LastBatchSize = len(batch)
	p.metricsLock.Unlock()

	if err != nil {
		dropped := len(batch) - sent
		atomic.AddInt64(&p.metrics.TotalDropped, int64(dropped))

		p.logger.Error("Batch handler failed",
			zap.Int("batch_size", len(batch)),
			zap.Int("sent", sent),
			zap.Int("dropped", dropped),
			zap.Duration("duration", duration),
			zap.Error(err),
		)

		return fmt.Errorf("%w: %v", ErrHandlerFailed, err)
	}

	p.logger.Debug("Batch flushed",
		zap.Int("batch_size", len(batch)),
		zap.Int("sent", sent),
		zap.Duration("duration", duration),
	)

	return nil
}

package consumers

import (
	"context"
	"time"

	"tradelens/internal/adapters/kafka"
	"tradelens/pkg/logger"
)

// MessageSource is the part of a Kafka consumer a batch consumer needs
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ MessageSource = (*kafka.Consumer)(nil)

// BatchConsumer defines the interface for batch-based consumers
// that accumulate messages and flush them periodically
type BatchConsumer interface {
	// FlushBatch flushes the current batch to storage
	FlushBatch(ctx context.Context) error

	// LogStats logs consumer statistics (final should be true on shutdown)
	LogStats(final bool)
}

// BatchConsumerConfig holds configuration for batch consumer lifecycle
type BatchConsumerConfig struct {
	ConsumerName  string
	FlushInterval time.Duration
	StatsInterval time.Duration
	Logger        *logger.Logger
}

// BatchConsumerLifecycle owns the flush and stats tickers of a batch
// consumer and its shutdown sequence: stop tickers, final flush, final
// stats, close the source.
type BatchConsumerLifecycle struct {
	config        BatchConsumerConfig
	flushTicker   *time.Ticker
	statsTicker   *time.Ticker
	source        MessageSource
	batchConsumer BatchConsumer
}

// NewBatchConsumerLifecycle creates a new batch consumer lifecycle manager
func NewBatchConsumerLifecycle(
	config BatchConsumerConfig,
	source MessageSource,
	batchConsumer BatchConsumer,
) *BatchConsumerLifecycle {
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.StatsInterval <= 0 {
		config.StatsInterval = time.Minute
	}
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	return &BatchConsumerLifecycle{
		config:        config,
		source:        source,
		batchConsumer: batchConsumer,
	}
}

// Start initializes tickers and returns the cleanup function
//
//	lifecycle := NewBatchConsumerLifecycle(config, source, batchConsumer)
//	cleanup := lifecycle.Start(ctx)
//	defer cleanup()
//	lifecycle.StartBackgroundWorkers(ctx)
func (l *BatchConsumerLifecycle) Start(ctx context.Context) func() {
	l.config.Logger.Infow("Starting batch consumer lifecycle",
		"consumer", l.config.ConsumerName,
		"flush_interval", l.config.FlushInterval,
		"stats_interval", l.config.StatsInterval,
	)

	l.flushTicker = time.NewTicker(l.config.FlushInterval)
	l.statsTicker = time.NewTicker(l.config.StatsInterval)

	return func() {
		l.config.Logger.Infow("Closing batch consumer", "consumer", l.config.ConsumerName)

		l.flushTicker.Stop()
		l.statsTicker.Stop()

		// main ctx is cancelled by now
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := l.batchConsumer.FlushBatch(flushCtx); err != nil {
			l.config.Logger.Errorw("Failed to flush final batch",
				"consumer", l.config.ConsumerName,
				"error", err,
			)
		}

		l.batchConsumer.LogStats(true)

		if err := l.source.Close(); err != nil {
			l.config.Logger.Errorw("Failed to close Kafka consumer",
				"consumer", l.config.ConsumerName,
				"error", err,
			)
		} else {
			l.config.Logger.Infow("Batch consumer closed", "consumer", l.config.ConsumerName)
		}
	}
}

// StartBackgroundWorkers starts periodic flush and stats logging goroutines
func (l *BatchConsumerLifecycle) StartBackgroundWorkers(ctx context.Context) {
	go l.periodicFlush(ctx)
	go l.periodicStatsLog(ctx)
}

func (l *BatchConsumerLifecycle) periodicFlush(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.flushTicker.C:
			if err := l.batchConsumer.FlushBatch(ctx); err != nil {
				l.config.Logger.Warnw("Periodic flush failed",
					"consumer", l.config.ConsumerName,
					"error", err,
				)
			}
		}
	}
}

func (l *BatchConsumerLifecycle) periodicStatsLog(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.statsTicker.C:
			l.batchConsumer.LogStats(false)
		}
	}
}

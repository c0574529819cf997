package consumers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tradelens/internal/adapters/kafka"
	"tradelens/internal/events"
	"tradelens/internal/metrics"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// ActivitySink writes a batch of activity events synchronously
type ActivitySink interface {
	InsertBatch(ctx context.Context, batch []events.ActivityEvent) error
}

// ActivityConsumerConfig tunes batching
type ActivityConsumerConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	StatsInterval time.Duration
}

// ActivityConsumer moves activity events from Kafka to ClickHouse. Offsets
// are committed only after the batch holding them is stored, so delivery
// is at-least-once. Undecodable messages are skipped and committed.
type ActivityConsumer struct {
	source    MessageSource
	sink      ActivitySink
	cfg       ActivityConsumerConfig
	log       *logger.Logger
	lifecycle *BatchConsumerLifecycle

	mu      sync.Mutex
	flushMu sync.Mutex
	pending []events.ActivityEvent
	msgs    []kafka.Message

	received atomic.Int64
	stored   atomic.Int64
	invalid  atomic.Int64
	failures atomic.Int64
}

var _ BatchConsumer = (*ActivityConsumer)(nil)

// NewActivityConsumer creates a new activity consumer
func NewActivityConsumer(source MessageSource, sink ActivitySink, cfg ActivityConsumerConfig, log *logger.Logger) *ActivityConsumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if log == nil {
		log = logger.Get()
	}
	c := &ActivityConsumer{
		source: source,
		sink:   sink,
		cfg:    cfg,
		log:    log.With("component", "activity_consumer"),
	}
	c.lifecycle = NewBatchConsumerLifecycle(BatchConsumerConfig{
		ConsumerName:  "activity",
		FlushInterval: cfg.FlushInterval,
		StatsInterval: cfg.StatsInterval,
		Logger:        c.log,
	}, source, c)
	return c
}

// Start consumes until ctx is cancelled. Buffered events are flushed and
// the source is closed before it returns.
func (c *ActivityConsumer) Start(ctx context.Context) error {
	cleanup := c.lifecycle.Start(ctx)
	defer cleanup()
	c.lifecycle.StartBackgroundWorkers(ctx)

	maxPending := c.cfg.BatchSize * 10

	for {
		if ctx.Err() != nil {
			c.log.Infow("Activity consumer stopping (context cancelled)")
			return nil
		}

		// storage is behind; stop fetching until a flush succeeds
		if c.backlog() >= maxPending {
			if err := c.FlushBatch(ctx); err != nil {
				sleep(ctx, time.Second)
			}
			continue
		}

		msg, err := c.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Infow("Activity consumer stopping (context cancelled)")
				return nil
			}
			c.log.Warnw("Failed to fetch activity event", "error", err)
			sleep(ctx, time.Second)
			continue
		}

		if c.handle(msg) >= c.cfg.BatchSize {
			if err := c.FlushBatch(ctx); err != nil {
				c.log.Warnw("Batch flush failed", "error", err)
			}
		}
	}
}

// handle buffers one message and returns the number of buffered events
func (c *ActivityConsumer) handle(msg kafka.Message) int {
	c.received.Add(1)

	ev, err := events.DecodeActivity(msg.Value)
	metrics.RecordActivity("consumed", err)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.msgs = append(c.msgs, msg)
	if err != nil {
		c.invalid.Add(1)
		c.log.Warnw("Skipping invalid activity event",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return len(c.pending)
	}
	c.pending = append(c.pending, ev)
	return len(c.pending)
}

// FlushBatch stores buffered events and commits their offsets. On a store
// failure the batch is kept for the next attempt.
func (c *ActivityConsumer) FlushBatch(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	batch, msgs := c.pending, c.msgs
	c.pending, c.msgs = nil, nil
	c.mu.Unlock()

	if len(msgs) == 0 {
		return nil
	}

	if len(batch) > 0 {
		if err := c.sink.InsertBatch(ctx, batch); err != nil {
			c.failures.Add(1)
			c.mu.Lock()
			c.pending = append(batch, c.pending...)
			c.msgs = append(msgs, c.msgs...)
			c.mu.Unlock()
			return errors.Wrap(err, "store activity batch")
		}
		c.stored.Add(int64(len(batch)))
	}

	if err := c.source.Commit(ctx, msgs...); err != nil {
		// rows are stored; a redelivery after restart duplicates them
		return errors.Wrap(err, "commit activity offsets")
	}
	return nil
}

func (c *ActivityConsumer) backlog() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// LogStats logs consumer statistics
func (c *ActivityConsumer) LogStats(final bool) {
	msg := "Activity consumer stats"
	if final {
		msg = "Activity consumer final stats"
	}
	c.log.Infow(msg,
		"received", c.received.Load(),
		"stored", c.stored.Load(),
		"invalid", c.invalid.Load(),
		"failed_flushes", c.failures.Load(),
		"pending", c.backlog(),
	)
}

// Stats returns counters for tests and health output
func (c *ActivityConsumer) Stats() (received, stored, invalid int64) {
	return c.received.Load(), c.stored.Load(), c.invalid.Load()
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

package clickhouse

import (
	"context"
	"sync"
	"time"

	"tradelens/pkg/logger"
)

// FlushFunc writes one batch of rows. It is called outside the buffer lock.
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// FlushObserver is notified after every flush attempt
type FlushObserver func(rows int, duration time.Duration, err error)

// BatchWriter accumulates rows in memory and writes them in batches.
// Single-row inserts are slow in ClickHouse; callers Add rows and the writer
// flushes on size, on age, and on Stop.
//
// A failed batch is put back at the front of the buffer so the next flush
// retries it. Rows beyond MaxPending are dropped oldest first.
type BatchWriter[T any] struct {
	flushFunc FlushFunc[T]
	observer  FlushObserver
	buffer    []T
	mu        sync.Mutex
	flushMu   sync.Mutex
	log       *logger.Logger

	maxBatchSize int
	maxPending   int
	maxAge       time.Duration
	tableName    string

	lastFlush time.Time
	flushed   int64
	dropped   int64
	stopCh    chan struct{}
	wg        sync.WaitGroup
	running   bool
}

// BatchWriterConfig contains configuration for BatchWriter
type BatchWriterConfig[T any] struct {
	FlushFunc    FlushFunc[T]
	Observer     FlushObserver
	TableName    string
	MaxBatchSize int           // Default: 500
	MaxPending   int           // Default: 10 * MaxBatchSize
	MaxAge       time.Duration // Default: 5s
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter[T any](cfg BatchWriterConfig[T]) *BatchWriter[T] {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}
	if cfg.MaxPending < cfg.MaxBatchSize {
		cfg.MaxPending = 10 * cfg.MaxBatchSize
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Second
	}

	return &BatchWriter[T]{
		flushFunc:    cfg.FlushFunc,
		observer:     cfg.Observer,
		buffer:       make([]T, 0, cfg.MaxBatchSize),
		maxBatchSize: cfg.MaxBatchSize,
		maxPending:   cfg.MaxPending,
		maxAge:       cfg.MaxAge,
		tableName:    cfg.TableName,
		lastFlush:    time.Now(),
		stopCh:       make(chan struct{}),
		log:          logger.Get().With("component", "batch_writer", "table", cfg.TableName),
	}
}

// Start begins the background flush loop
func (bw *BatchWriter[T]) Start(ctx context.Context) {
	bw.mu.Lock()
	if bw.running {
		bw.mu.Unlock()
		return
	}
	bw.running = true
	bw.mu.Unlock()

	bw.wg.Add(1)
	go bw.flushLoop(ctx)

	bw.log.Infow("BatchWriter started", "max_batch_size", bw.maxBatchSize, "max_age", bw.maxAge)
}

// Add buffers rows and flushes when the buffer reaches MaxBatchSize
func (bw *BatchWriter[T]) Add(ctx context.Context, rows ...T) error {
	if len(rows) == 0 {
		return nil
	}

	bw.mu.Lock()
	bw.buffer = append(bw.buffer, rows...)
	bw.trimLocked()
	shouldFlush := len(bw.buffer) >= bw.maxBatchSize
	bw.mu.Unlock()

	if shouldFlush {
		return bw.Flush(ctx)
	}
	return nil
}

// Flush writes everything buffered, in batches of at most MaxBatchSize.
// It stops at the first failing batch and returns its error.
func (bw *BatchWriter[T]) Flush(ctx context.Context) error {
	bw.flushMu.Lock()
	defer bw.flushMu.Unlock()

	for {
		bw.mu.Lock()
		if len(bw.buffer) == 0 {
			bw.mu.Unlock()
			return nil
		}
		n := len(bw.buffer)
		if n > bw.maxBatchSize {
			n = bw.maxBatchSize
		}
		batch := make([]T, n)
		copy(batch, bw.buffer[:n])
		bw.buffer = append(bw.buffer[:0], bw.buffer[n:]...)
		bw.lastFlush = time.Now()
		bw.mu.Unlock()

		start := time.Now()
		err := bw.flushFunc(ctx, batch)
		duration := time.Since(start)
		if bw.observer != nil {
			bw.observer(len(batch), duration, err)
		}

		if err != nil {
			bw.requeue(batch)
			bw.log.Errorw("Failed to flush batch",
				"rows", len(batch),
				"duration", duration,
				"error", err,
			)
			return err
		}

		bw.mu.Lock()
		bw.flushed += int64(len(batch))
		bw.mu.Unlock()
		bw.log.Debugw("Flushed batch", "rows", len(batch), "duration", duration)
	}
}

// requeue puts a failed batch back in front of rows added meanwhile
func (bw *BatchWriter[T]) requeue(batch []T) {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	bw.buffer = append(batch, bw.buffer...)
	bw.trimLocked()
}

// trimLocked drops the oldest rows above maxPending. Caller holds mu.
func (bw *BatchWriter[T]) trimLocked() {
	if over := len(bw.buffer) - bw.maxPending; over > 0 {
		bw.buffer = append(bw.buffer[:0], bw.buffer[over:]...)
		bw.dropped += int64(over)
		bw.log.Warnw("Batch buffer full, dropped oldest rows", "dropped", over)
	}
}

func (bw *BatchWriter[T]) flushLoop(ctx context.Context) {
	defer bw.wg.Done()

	ticker := time.NewTicker(bw.maxAge)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			bw.log.Infow("BatchWriter stopping, performing final flush")
			if err := bw.Flush(context.Background()); err != nil {
				bw.log.Errorw("Final flush failed", "error", err)
			}
			return

		case <-bw.stopCh:
			bw.log.Infow("BatchWriter received stop signal, performing final flush")
			if err := bw.Flush(context.Background()); err != nil {
				bw.log.Errorw("Final flush failed", "error", err)
			}
			return

		case <-ticker.C:
			if bw.BufferSize() > 0 {
				if err := bw.Flush(ctx); err != nil {
					bw.log.Warnw("Periodic flush failed", "error", err)
				}
			}
		}
	}
}

// Stop flushes remaining rows and waits for the loop to exit
func (bw *BatchWriter[T]) Stop(ctx context.Context) error {
	bw.mu.Lock()
	if !bw.running {
		bw.mu.Unlock()
		return bw.Flush(ctx)
	}
	bw.running = false
	bw.mu.Unlock()

	close(bw.stopCh)

	done := make(chan struct{})
	go func() {
		bw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		bw.log.Infow("BatchWriter stopped gracefully")
		// rows added after the loop exited on context cancellation
		return bw.Flush(ctx)
	case <-ctx.Done():
		bw.log.Warnw("BatchWriter stop timed out", "pending", bw.BufferSize())
		return ctx.Err()
	}
}

// BufferSize returns the number of rows waiting to be written
func (bw *BatchWriter[T]) BufferSize() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// BatchWriterStats is a snapshot for monitoring
type BatchWriterStats struct {
	BufferSize   int
	Flushed      int64
	Dropped      int64
	LastFlushAge time.Duration
	MaxBatchSize int
	MaxAge       time.Duration
	Running      bool
}

// GetStats returns current statistics
func (bw *BatchWriter[T]) GetStats() BatchWriterStats {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	return BatchWriterStats{
		BufferSize:   len(bw.buffer),
		Flushed:      bw.flushed,
		Dropped:      bw.dropped,
		LastFlushAge: time.Since(bw.lastFlush),
		MaxBatchSize: bw.maxBatchSize,
		MaxAge:       bw.maxAge,
		Running:      bw.running,
	}
}

package persist

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tradelens/internal/domain/saved"
	"tradelens/internal/metrics"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// Saver stores one analysis
type Saver interface {
	Create(ctx context.Context, in saved.CreateInput) (*saved.SavedAnalysis, error)
}

// Job is one analysis waiting to be stored
type Job struct {
	Input saved.CreateInput
	// Done, when set, is called from the worker goroutine with the outcome
	Done func(*saved.SavedAnalysis, error)
}

// Config tunes the worker pool
type Config struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// Stats is a snapshot of persister counters
type Stats struct {
	Enqueued  int64
	Succeeded int64
	Failed    int64
	Dropped   int64
	Queued    int
}

// Persister stores finished analyses off the request path. Enqueue never
// blocks; failures are logged and counted and never reach the caller that
// produced the result.
type Persister struct {
	saver   Saver
	cfg     Config
	queue   chan Job
	errs    chan error
	log     *logger.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
	ctx     context.Context

	enqueued  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// New creates a persister. Start must be called before jobs are processed.
func New(saver Saver, cfg Config) *Persister {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Second
	}
	return &Persister{
		saver: saver,
		cfg:   cfg,
		queue: make(chan Job, cfg.QueueSize),
		errs:  make(chan error, cfg.QueueSize),
		log:   logger.Get().With("component", "persister"),
	}
}

// Start launches the workers
func (p *Persister) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.Wrap(errors.ErrInternal, "persister already started")
	}
	if p.closed {
		return errors.Wrap(errors.ErrInternal, "persister stopped")
	}
	p.started = true
	p.ctx = ctx

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}

	p.log.Infow("Persister started", "workers", p.cfg.Workers, "queue_size", p.cfg.QueueSize)
	return nil
}

// Enqueue hands a job to the workers. It returns false when the queue is
// full or the persister is stopped; the job is then dropped.
func (p *Persister) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(job, "stopped")
		return false
	}

	select {
	case p.queue <- job:
		p.enqueued.Add(1)
		metrics.PersistQueueDepth.Set(float64(len(p.queue)))
		return true
	default:
		p.drop(job, "queue full")
		return false
	}
}

func (p *Persister) drop(job Job, reason string) {
	p.dropped.Add(1)
	metrics.PersistJobs.WithLabelValues("dropped").Inc()
	p.log.Warnw("Dropping persistence job",
		"reason", reason,
		"user_id", job.Input.UserID,
		"title", job.Input.Title,
	)
}

// Stop refuses new jobs and waits for queued ones to finish or ctx to end
func (p *Persister) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Infow("Persister stopped",
			"succeeded", p.succeeded.Load(),
			"failed", p.failed.Load(),
			"dropped", p.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		p.log.Warnw("Persister shutdown timed out", "queued", len(p.queue))
		return errors.Wrap(ctx.Err(), "persister shutdown")
	}
}

// Errors exposes job failures. The channel is buffered and failures that
// find it full are only logged.
func (p *Persister) Errors() <-chan error {
	return p.errs
}

// Stats returns the current counters
func (p *Persister) Stats() Stats {
	return Stats{
		Enqueued:  p.enqueued.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
		Queued:    len(p.queue),
	}
}

func (p *Persister) run(worker int) {
	defer p.wg.Done()
	for job := range p.queue {
		metrics.PersistQueueDepth.Set(float64(len(p.queue)))
		p.process(worker, job)
	}
}

func (p *Persister) process(worker int, job Job) {
	// queued jobs still run after the parent ctx is cancelled during shutdown
	ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), p.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.save(ctx, job)
	if err != nil {
		p.failed.Add(1)
		metrics.PersistJobs.WithLabelValues("error").Inc()
		p.log.Errorw("Failed to persist analysis",
			"worker", worker,
			"user_id", job.Input.UserID,
			"error", err,
		)
		select {
		case p.errs <- err:
		default:
		}
	} else {
		p.succeeded.Add(1)
		metrics.PersistJobs.WithLabelValues("success").Inc()
		p.log.Debugw("Analysis persisted",
			"worker", worker,
			"id", result.ID,
			"duration", time.Since(start),
		)
	}

	if job.Done != nil {
		job.Done(result, err)
	}
}

func (p *Persister) save(ctx context.Context, job Job) (result *saved.SavedAnalysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.Wrapf(errors.ErrInternal, "persist panic: %v", r)
		}
	}()
	return p.saver.Create(ctx, job.Input)
}

package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// Scheduler runs registered workers on their intervals
type Scheduler struct {
	workers []Worker
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	log     *logger.Logger
	started bool
}

// NewScheduler creates a scheduler
func NewScheduler(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Get()
	}
	return &Scheduler{
		log: log.With("component", "scheduler"),
	}
}

// RegisterWorker adds a worker. Registration after Start is ignored.
func (s *Scheduler) RegisterWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnw("Cannot register worker after scheduler has started", "worker", w.Name())
		return
	}
	s.workers = append(s.workers, w)
	s.log.Infow("Worker registered", "worker", w.Name(), "interval", w.Interval())
}

// Start runs every enabled worker in its own goroutine
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.Wrap(errors.ErrInternal, "scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	running := 0
	for _, w := range s.workers {
		if !w.Enabled() {
			s.log.Infow("Skipping disabled worker", "worker", w.Name())
			continue
		}
		s.wg.Add(1)
		go s.runWorker(w)
		running++
	}

	s.log.Infow("Worker scheduler started", "workers", running)
	return nil
}

// Stop cancels all workers and waits for in-flight runs until ctx expires
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.log.Info("All workers stopped")
	case <-ctx.Done():
		err = errors.Wrap(ctx.Err(), "scheduler shutdown")
		s.log.Warnw("Worker shutdown timed out", "error", err)
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return err
}

func (s *Scheduler) runWorker(w Worker) {
	defer s.wg.Done()

	ticker := time.NewTicker(w.Interval())
	defer ticker.Stop()

	s.executeWorker(w)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.executeWorker(w)
		}
	}
}

// executeWorker runs one iteration; panics are turned into run errors
func (s *Scheduler) executeWorker(w Worker) {
	start := time.Now()
	err := s.safeRun(w)
	duration := time.Since(start)

	rec, tracked := w.(healthRecorder)
	if err != nil {
		if s.ctx.Err() == nil {
			s.log.Errorw("Worker execution failed", "worker", w.Name(), "error", err, "duration", duration)
		}
		if tracked {
			rec.RecordError(err, duration)
		}
		return
	}

	s.log.Debugw("Worker execution completed", "worker", w.Name(), "duration", duration)
	if tracked {
		rec.RecordRun(duration)
	}
}

func (s *Scheduler) safeRun(w Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(errors.ErrInternal, fmt.Sprintf("worker %s panicked: %v", w.Name(), r))
		}
	}()
	return w.Run(s.ctx)
}

// GetWorkers returns the registered workers in registration order
func (s *Scheduler) GetWorkers() []Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Worker, len(s.workers))
	copy(out, s.workers)
	return out
}

// Health reports run bookkeeping for workers that keep it
func (s *Scheduler) Health() map[string]WorkerHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]WorkerHealth, len(s.workers))
	for _, w := range s.workers {
		if rec, ok := w.(healthRecorder); ok {
			out[w.Name()] = rec.Health()
		}
	}
	return out
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

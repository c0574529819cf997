package workers

import (
	"context"
	"sync"
	"time"

	"tradelens/pkg/logger"
)

// Worker is a periodic background task
type Worker interface {
	// Name identifies the worker in logs and health reports
	Name() string

	// Run performs one iteration and returns. The scheduler calls it again
	// after Interval.
	Run(ctx context.Context) error

	Interval() time.Duration
	Enabled() bool
}

// healthRecorder is implemented by workers embedding BaseWorker
type healthRecorder interface {
	RecordRun(duration time.Duration)
	RecordError(err error, duration time.Duration)
	Health() WorkerHealth
}

// WorkerHealth summarizes past runs of a worker
type WorkerHealth struct {
	LastRun     time.Time     `json:"lastRun"`
	LastError   string        `json:"lastError,omitempty"`
	RunCount    int64         `json:"runCount"`
	ErrorCount  int64         `json:"errorCount"`
	AvgDuration time.Duration `json:"avgDuration"`
	Enabled     bool          `json:"enabled"`
}

// BaseWorker carries the name, interval and run bookkeeping shared by workers
type BaseWorker struct {
	name     string
	interval time.Duration
	log      *logger.Logger

	mu            sync.RWMutex
	enabled       bool
	lastRun       time.Time
	lastError     error
	runCount      int64
	errorCount    int64
	totalDuration time.Duration
}

// NewBaseWorker creates a base worker
func NewBaseWorker(name string, interval time.Duration, enabled bool) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  enabled,
		log:      logger.Get().With("worker", name),
	}
}

func (w *BaseWorker) Name() string {
	return w.name
}

func (w *BaseWorker) Interval() time.Duration {
	return w.interval
}

func (w *BaseWorker) Enabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

// SetEnabled toggles the worker; the scheduler skips disabled workers at start
func (w *BaseWorker) SetEnabled(enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enabled = enabled
}

func (w *BaseWorker) Log() *logger.Logger {
	return w.log
}

// Health returns a snapshot of the run bookkeeping
func (w *BaseWorker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var avg time.Duration
	if w.runCount > 0 {
		avg = w.totalDuration / time.Duration(w.runCount)
	}
	h := WorkerHealth{
		LastRun:     w.lastRun,
		RunCount:    w.runCount,
		ErrorCount:  w.errorCount,
		AvgDuration: avg,
		Enabled:     w.enabled,
	}
	if w.lastError != nil {
		h.LastError = w.lastError.Error()
	}
	return h
}

// RecordRun records a successful run
func (w *BaseWorker) RecordRun(duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastRun = time.Now()
	w.runCount++
	w.totalDuration += duration
	w.lastError = nil
}

// RecordError records a failed run
func (w *BaseWorker) RecordError(err error, duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastRun = time.Now()
	w.runCount++
	w.errorCount++
	w.totalDuration += duration
	w.lastError = err
}

package maintenance

import (
	"context"
	"time"

	"tradelens/internal/metrics"
	"tradelens/internal/workers"
	"tradelens/internal/workers/persist"
)

// PersistSource is the part of the persister the monitor reads
type PersistSource interface {
	Stats() persist.Stats
	Errors() <-chan error
}

var _ PersistSource = (*persist.Persister)(nil)

// PersistMonitor drains persister failures into the log and reports queue
// depth. Failures reach nobody else: the request that produced the result
// has already been answered.
type PersistMonitor struct {
	*workers.BaseWorker
	source PersistSource
	last   persist.Stats

	// maxDrain bounds the errors logged per run
	maxDrain int
}

// NewPersistMonitor creates the monitor worker
func NewPersistMonitor(source PersistSource, interval time.Duration) *PersistMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &PersistMonitor{
		BaseWorker: workers.NewBaseWorker("persist_monitor", interval, source != nil),
		source:     source,
		maxDrain:   100,
	}
}

// Run logs pending failures and the counter deltas since the previous run
func (m *PersistMonitor) Run(ctx context.Context) error {
	failures := m.drain(ctx)

	stats := m.source.Stats()
	metrics.PersistQueueDepth.Set(float64(stats.Queued))

	if dropped := stats.Dropped - m.last.Dropped; dropped > 0 {
		m.Log().Warnw("Saved analyses dropped, persist queue full",
			"dropped", dropped,
			"queued", stats.Queued,
		)
	}
	if stats != m.last || failures > 0 {
		m.Log().Infow("Persister stats",
			"enqueued", stats.Enqueued-m.last.Enqueued,
			"succeeded", stats.Succeeded-m.last.Succeeded,
			"failed", stats.Failed-m.last.Failed,
			"queued", stats.Queued,
		)
	}
	m.last = stats
	return nil
}

func (m *PersistMonitor) drain(ctx context.Context) int {
	errs := m.source.Errors()
	n := 0
	for n < m.maxDrain {
		select {
		case <-ctx.Done():
			return n
		case err, ok := <-errs:
			if !ok {
				return n
			}
			n++
			m.Log().Errorw("Saved analysis not persisted", "error", err)
		default:
			return n
		}
	}
	return n
}

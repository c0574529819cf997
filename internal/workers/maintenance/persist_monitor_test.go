package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/internal/metrics"
	"tradelens/internal/workers/persist"
)

type fakeSource struct {
	stats persist.Stats
	errs  chan error
}

func (f *fakeSource) Stats() persist.Stats  { return f.stats }
func (f *fakeSource) Errors() <-chan error { return f.errs }

func TestPersistMonitor_DrainsErrorsAndReportsDepth(t *testing.T) {
	src := &fakeSource{errs: make(chan error, 4), stats: persist.Stats{Enqueued: 5, Failed: 2, Queued: 3}}
	src.errs <- errors.New("insert failed")
	src.errs <- errors.New("timeout")

	m := NewPersistMonitor(src, time.Minute)
	require.NoError(t, m.Run(context.Background()))

	assert.Empty(t, src.errs)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.PersistQueueDepth))
	assert.Equal(t, src.stats, m.last)
}

func TestPersistMonitor_DrainIsBounded(t *testing.T) {
	src := &fakeSource{errs: make(chan error, 10)}
	for i := 0; i < 10; i++ {
		src.errs <- errors.New("fail")
	}

	m := NewPersistMonitor(src, time.Minute)
	m.maxDrain = 4
	require.NoError(t, m.Run(context.Background()))
	assert.Len(t, src.errs, 6)
}

func TestPersistMonitor_ClosedErrorChannel(t *testing.T) {
	src := &fakeSource{errs: make(chan error)}
	close(src.errs)

	m := NewPersistMonitor(src, time.Minute)
	assert.NoError(t, m.Run(context.Background()))
}

func TestPersistMonitor_DisabledWithoutSource(t *testing.T) {
	m := NewPersistMonitor(nil, 0)
	assert.False(t, m.Enabled())
	assert.Equal(t, 30*time.Second, m.Interval())
	assert.Equal(t, "persist_monitor", m.Name())
}

func TestPersistMonitor_WithRealPersister(t *testing.T) {
	p := persist.New(nil, persist.Config{Workers: 1, QueueSize: 1})
	m := NewPersistMonitor(p, time.Minute)
	assert.True(t, m.Enabled())
	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.PersistQueueDepth))
}

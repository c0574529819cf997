package persist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/internal/domain/saved"
	"tradelens/internal/domain/trade"
	"tradelens/pkg/errors"
)

type fakeSaver struct {
	mu      sync.Mutex
	inputs  []saved.CreateInput
	err     error
	panics  bool
	release chan struct{}
}

func (s *fakeSaver) Create(ctx context.Context, in saved.CreateInput) (*saved.SavedAnalysis, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.panics {
		panic("boom")
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, in)
	return &saved.SavedAnalysis{ID: uuid.New(), UserID: in.UserID, Title: in.Title}, nil
}

func (s *fakeSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

func job(user string) Job {
	return Job{Input: saved.CreateInput{
		UserID:  user,
		Title:   "Electronics imports",
		Query:   "Show me Electronics imports",
		Results: trade.FallbackResult(),
	}}
}

func TestPersister_ProcessesJobs(t *testing.T) {
	saver := &fakeSaver{}
	p := New(saver, Config{Workers: 2, QueueSize: 8})
	require.NoError(t, p.Start(context.Background()))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		wg.Add(1)
		j := job("user-1")
		j.Done = func(a *saved.SavedAnalysis, err error) {
			defer wg.Done()
			require.NoError(t, err)
			mu.Lock()
			ids = append(ids, a.ID)
			mu.Unlock()
		}
		assert.True(t, p.Enqueue(j))
	}
	wg.Wait()

	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, 5, saver.count())
	assert.Len(t, ids, 5)

	stats := p.Stats()
	assert.Equal(t, int64(5), stats.Enqueued)
	assert.Equal(t, int64(5), stats.Succeeded)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Dropped)
}

func TestPersister_EnqueueNeverBlocks(t *testing.T) {
	saver := &fakeSaver{release: make(chan struct{})}
	p := New(saver, Config{Workers: 1, QueueSize: 2})
	require.NoError(t, p.Start(context.Background()))

	accepted := 0
	start := time.Now()
	for i := 0; i < 10; i++ {
		if p.Enqueue(job("user-1")) {
			accepted++
		}
	}
	assert.Less(t, time.Since(start), time.Second)

	// one job held by the worker plus a full queue
	assert.LessOrEqual(t, accepted, 3)
	assert.GreaterOrEqual(t, accepted, 2)
	assert.Equal(t, int64(10-accepted), p.Stats().Dropped)

	close(saver.release)
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, accepted, saver.count())
}

func TestPersister_FailuresAreReportedNotReturned(t *testing.T) {
	saver := &fakeSaver{err: errors.Wrap(errors.ErrUnavailable, "postgres down")}
	p := New(saver, Config{Workers: 1, QueueSize: 4})
	require.NoError(t, p.Start(context.Background()))

	done := make(chan error, 1)
	j := job("user-1")
	j.Done = func(_ *saved.SavedAnalysis, err error) { done <- err }
	require.True(t, p.Enqueue(j))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errors.ErrUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}

	select {
	case err := <-p.Errors():
		assert.ErrorIs(t, err, errors.ErrUnavailable)
	case <-time.After(time.Second):
		t.Fatal("failure not reported on the error channel")
	}

	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestPersister_RecoversFromPanic(t *testing.T) {
	saver := &fakeSaver{panics: true}
	p := New(saver, Config{Workers: 1, QueueSize: 4})
	require.NoError(t, p.Start(context.Background()))

	done := make(chan error, 1)
	j := job("user-1")
	j.Done = func(_ *saved.SavedAnalysis, err error) { done <- err }
	require.True(t, p.Enqueue(j))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errors.ErrInternal)
	case <-time.After(2 * time.Second):
		t.Fatal("job not processed")
	}
	require.NoError(t, p.Stop(context.Background()))
}

func TestPersister_DrainsQueueAfterContextCancel(t *testing.T) {
	saver := &fakeSaver{release: make(chan struct{})}
	p := New(saver, Config{Workers: 1, QueueSize: 4})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	for i := 0; i < 3; i++ {
		require.True(t, p.Enqueue(job("user-1")))
	}

	cancel()
	close(saver.release)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.Equal(t, 3, saver.count())
}

func TestPersister_StopRejectsNewJobs(t *testing.T) {
	p := New(&fakeSaver{}, Config{})
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, p.Stop(context.Background()), "second stop is a no-op")

	assert.False(t, p.Enqueue(job("user-1")))
	assert.Equal(t, int64(1), p.Stats().Dropped)
	assert.Error(t, p.Start(context.Background()))
}

func TestPersister_StopTimesOut(t *testing.T) {
	saver := &fakeSaver{release: make(chan struct{})}
	p := New(saver, Config{Workers: 1, QueueSize: 2, JobTimeout: 5 * time.Second})
	require.NoError(t, p.Start(context.Background()))
	require.True(t, p.Enqueue(job("user-1")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Stop(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(saver.release)
}

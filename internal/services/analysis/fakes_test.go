package analysis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tradelens/internal/adapters/ai"
	"tradelens/internal/domain/trade"
	"tradelens/internal/events"
	"tradelens/pkg/errors"
)

// fakeGenerator answers with a canned response or runs fn when set
type fakeGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	fn    func(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error)
	calls []ai.GenerateRequest
}

func (g *fakeGenerator) Name() ai.ProviderName { return ai.ProviderNameGoogle }

func (g *fakeGenerator) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()

	if g.fn != nil {
		return g.fn(ctx, req)
	}
	if g.err != nil {
		return nil, g.err
	}
	return &ai.GenerateResponse{Text: g.text, Provider: ai.ProviderNameGoogle, Model: req.Model}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// spyForecaster records calls and returns canned output
type spyForecaster struct {
	calls  int
	years  int
	preds  []trade.Prediction
	err    error
	panics bool
}

func (f *spyForecaster) Forecast(history []trade.ChartPoint, years int) ([]trade.Prediction, error) {
	f.calls++
	f.years = years
	if f.panics {
		panic("forecast blew up")
	}
	return f.preds, f.err
}

// memCache is an in-memory Cache
type memCache struct {
	items  map[string]*trade.AnalysisResult
	getErr error
	sets   int
}

func newMemCache() *memCache {
	return &memCache{items: map[string]*trade.AnalysisResult{}}
}

func (c *memCache) Get(_ context.Context, key string) (*trade.AnalysisResult, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	r, ok := c.items[key]
	return r, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, result *trade.AnalysisResult) error {
	c.sets++
	c.items[key] = result
	return nil
}

// spyPublisher collects events
type spyPublisher struct {
	mu     sync.Mutex
	events []events.ActivityEvent
}

func (p *spyPublisher) PublishActivity(_ context.Context, ev events.ActivityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// memStore emulates the redis adapter with JSON round trips
type memStore struct {
	data   map[string][]byte
	getErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) Get(_ context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	raw, ok := s.data[key]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "key %s", key)
	}
	return json.Unmarshal(raw, dest)
}

func (s *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return nil
}

func (s *memStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

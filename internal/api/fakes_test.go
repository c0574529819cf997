package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradelens/internal/domain/saved"
	"tradelens/internal/domain/trade"
	"tradelens/internal/events"
	"tradelens/internal/repository/clickhouse"
	"tradelens/internal/services/analysis"
	"tradelens/internal/workers/persist"
	"tradelens/pkg/errors"
)

type fakeAnalyzer struct {
	mu     sync.Mutex
	reqs   []trade.AnalysisRequest
	source analysis.Source
	panics bool
}

func (a *fakeAnalyzer) Analyze(_ context.Context, req trade.AnalysisRequest) *analysis.Outcome {
	if a.panics {
		panic("analyzer exploded")
	}
	a.mu.Lock()
	a.reqs = append(a.reqs, req)
	a.mu.Unlock()

	source := a.source
	if source == "" {
		source = analysis.SourceModel
	}
	return &analysis.Outcome{Result: trade.FallbackResult(), Source: source}
}

func (a *fakeAnalyzer) last() trade.AnalysisRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reqs[len(a.reqs)-1]
}

type fakeQueries struct {
	got []trade.FilterSelection
}

func (q *fakeQueries) GenerateQuery(_ context.Context, filters trade.FilterSelection) string {
	q.got = append(q.got, filters)
	return analysis.FallbackQuery(filters)
}

type fakeEnqueuer struct {
	jobs []persist.Job
	full bool
}

func (e *fakeEnqueuer) Enqueue(job persist.Job) bool {
	if e.full {
		return false
	}
	e.jobs = append(e.jobs, job)
	return true
}

// memSaved is a user-scoped in-memory saved-analysis service
type memSaved struct {
	mu    sync.Mutex
	items map[uuid.UUID]*saved.SavedAnalysis
	err   error
}

func newMemSaved() *memSaved {
	return &memSaved{items: make(map[uuid.UUID]*saved.SavedAnalysis)}
}

func (m *memSaved) Create(_ context.Context, in saved.CreateInput) (*saved.SavedAnalysis, error) {
	if m.err != nil {
		return nil, m.err
	}
	if in.Title == "" {
		return nil, errors.NewValidationError("title", "is required", in.Title)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	a := &saved.SavedAnalysis{
		ID:          uuid.New(),
		UserID:      in.UserID,
		Title:       in.Title,
		Description: in.Description,
		QueryParams: saved.NewQueryParams(in.Query, in.Filters),
		Results:     in.Results,
		IsPublic:    in.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.items[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *memSaved) owned(userID string, id uuid.UUID) (*saved.SavedAnalysis, error) {
	a, ok := m.items[id]
	if !ok || a.UserID != userID {
		return nil, errors.Wrap(errors.ErrNotFound, "saved analysis not found")
	}
	return a, nil
}

func (m *memSaved) View(_ context.Context, userID string, id uuid.UUID) (*saved.SavedAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.owned(userID, id)
	if err != nil {
		return nil, err
	}
	a.ViewCount++
	cp := *a
	return &cp, nil
}

func (m *memSaved) List(_ context.Context, userID string, _, _ int) ([]saved.SavedAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []saved.SavedAnalysis
	for _, a := range m.items {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memSaved) Recent(ctx context.Context, userID string, _ int) ([]saved.SavedAnalysis, error) {
	return m.List(ctx, userID, 0, 0)
}

func (m *memSaved) Update(_ context.Context, userID string, id uuid.UUID, in saved.UpdateInput) (*saved.SavedAnalysis, error) {
	if in.Empty() {
		return nil, errors.Wrap(errors.ErrInvalidInput, "nothing to update")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.owned(userID, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		a.Title = *in.Title
	}
	if in.IsPublic != nil {
		a.IsPublic = *in.IsPublic
	}
	cp := *a
	return &cp, nil
}

func (m *memSaved) Delete(_ context.Context, userID string, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.owned(userID, id); err != nil {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

type fakeActivity struct {
	since  time.Time
	userID string
	err    error
}

func (f *fakeActivity) CountByType(_ context.Context, userID string, since time.Time) ([]clickhouse.ActivityCount, error) {
	f.userID, f.since = userID, since
	if f.err != nil {
		return nil, f.err
	}
	return []clickhouse.ActivityCount{{Type: "search", Count: 4}, {Type: "view", Count: 1}}, nil
}

func (f *fakeActivity) TopQueries(_ context.Context, _ time.Time, _ int) ([]clickhouse.QueryCount, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []clickhouse.QueryCount{{Query: "electronics imports", Count: 3}}, nil
}

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

func (p *spyPublisher) types() []events.ActivityType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.ActivityType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

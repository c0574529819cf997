package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/internal/adapters/ai"
	"tradelens/internal/domain/trade"
	"tradelens/internal/events"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

const modelPayload = `{
  "summary": "Electronics imports rose sharply after 2020.",
  "stats": {"totalVolume": "$1,170B", "peakYear": "2024", "balance": "Deficit ($270B)"},
  "chartData": [
    {"year": "2021", "exports": 420, "imports": 610},
    {"year": "2022", "exports": 450, "imports": 710},
    {"year": "2023", "exports": 430, "imports": 680},
    {"year": "2024", "exports": 450, "imports": 720}
  ]
}`

const modelPayloadWithPredictions = `{
  "summary": "Electronics imports rose sharply after 2020.",
  "stats": {"totalVolume": "$1,170B", "peakYear": "2024", "balance": "Deficit ($270B)"},
  "chartData": [
    {"year": "2023", "exports": 430, "imports": 680},
    {"year": "2024", "exports": 450, "imports": 720}
  ],
  "predictions": [
    {"year": "2025", "exports": 470, "imports": 750, "confidence": 80}
  ]
}`

func newTestService(deps Deps, opts Options) *Service {
	deps.Logger = logger.Nop()
	return NewService(deps, opts)
}

func assertFallback(t *testing.T, out *Outcome) {
	t.Helper()
	require.NotNil(t, out)
	require.NotNil(t, out.Result)
	assert.Equal(t, SourceFallback, out.Source)
	assert.Error(t, out.Err)
	assert.Equal(t, "$1,100B", out.Result.Stats.TotalVolume)
	assert.Equal(t, "2024", out.Result.Stats.PeakYear)
	assert.Equal(t, "Deficit ($250B)", out.Result.Stats.Balance)
	require.Len(t, out.Result.ChartData, 15)
	assert.Equal(t, trade.Year("2010"), out.Result.ChartData[0].Year)
	assert.Equal(t, trade.Year("2024"), out.Result.ChartData[14].Year)
}

func TestAnalyze_FailingGeneratorServesFallback(t *testing.T) {
	gen := &fakeGenerator{err: errors.Wrap(errors.ErrExternal, "503 from upstream")}
	svc := newTestService(Deps{Generator: gen}, DefaultOptions())

	filters := []*trade.FilterSelection{
		nil,
		{},
		{Sectors: []string{"Electronics"}, TradeType: trade.TradeTypeImports, YearFrom: 2015, YearTo: 2020},
	}
	for _, f := range filters {
		out := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "India electronics imports", Filters: f})
		assertFallback(t, out)
		assert.True(t, errors.Is(out.Err, errors.ErrExternal))

		// forecast enrichment runs on the fallback series
		require.Len(t, out.Result.Predictions, 2)
		assert.Equal(t, trade.Year("2025"), out.Result.Predictions[0].Year)
		assert.Equal(t, trade.Year("2026"), out.Result.Predictions[1].Year)
	}
}

func TestAnalyze_FallbackOnEveryModelFailure(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		want error
	}{
		{name: "empty text", gen: &fakeGenerator{text: "   "}, want: errors.ErrEmptyResponse},
		{name: "invalid json", gen: &fakeGenerator{text: "{not json"}, want: errors.ErrSchemaViolation},
		{name: "missing chart data", gen: &fakeGenerator{text: `{"summary":"x","stats":{}}`}, want: errors.ErrSchemaViolation},
		{name: "unavailable", gen: &fakeGenerator{err: errors.ErrUnavailable}, want: errors.ErrUnavailable},
		{name: "nil response", gen: &fakeGenerator{fn: func(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
			return nil, nil
		}}, want: errors.ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(Deps{Generator: tt.gen}, DefaultOptions())
			out := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "trade balance"})
			assertFallback(t, out)
			assert.True(t, errors.Is(out.Err, tt.want), "got %v", out.Err)
		})
	}
}

func TestAnalyze_GeneratorPanicServesFallback(t *testing.T) {
	gen := &fakeGenerator{fn: func(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
		panic("nil map write")
	}}
	svc := newTestService(Deps{Generator: gen}, DefaultOptions())

	out := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "trade balance"})
	assertFallback(t, out)
	assert.Equal(t, "panic", fallbackReason(out.Err))
}

func TestAnalyze_TimeoutServesFallback(t *testing.T) {
	gen := &fakeGenerator{fn: func(ctx context.Context, _ ai.GenerateRequest) (*ai.GenerateResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	opts := DefaultOptions()
	opts.Timeout = 20 * time.Millisecond
	svc := newTestService(Deps{Generator: gen}, opts)

	start := time.Now()
	out := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "trade balance"})
	assert.Less(t, time.Since(start), 2*time.Second)
	assertFallback(t, out)
	assert.True(t, errors.Is(out.Err, errors.ErrTimeout))
	assert.Equal(t, "timeout", fallbackReason(out.Err))
}

func TestAnalyze_EmptyQueryServesFallbackWithoutModelCall(t *testing.T) {
	gen := &fakeGenerator{text: modelPayload}
	svc := newTestService(Deps{Generator: gen}, DefaultOptions())

	out := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "  "})
	assertFallback(t, out)
	assert.True(t, errors.Is(out.Err, errors.ErrInvalidInput))
	assert.Equal(t, 0, gen.callCount())
}

func TestAnalyze_HappyPathRequest(t *testing.T) {
	gen := &fakeGenerator{text: modelPayload}
	svc := newTestService(Deps{Generator: gen}, DefaultOptions())

	filters := &trade.FilterSelection{Countries: []string{"China"}}
	out := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "India China trade", Filters: filters})

	require.Equal(t, SourceModel, out.Source)
	require.NoError(t, out.Err)
	require.Len(t, gen.calls, 1)

	req := gen.calls[0]
	assert.Equal(t, "gemini-3-pro-preview", req.Model)
	assert.True(t, req.WebSearch)
	assert.Equal(t, ai.ReasoningHigh, req.Reasoning)
	require.NotNil(t, req.Schema)
	assert.Contains(t, req.Schema.Required, "chartData")
	assert.Contains(t, req.Prompt, `QUERY: "India China trade"`)
	assert.Contains(t, req.Prompt, "Focus on trade with these countries/regions: China")

	assert.Equal(t, "Electronics imports rose sharply after 2020.", out.Result.Summary)
	assert.Len(t, out.Result.ChartData, 4)
	// derived yoy fills the missing block
	assert.Len(t, out.Result.YearOverYearChange, 3)
	assert.NotEmpty(t, out.Result.GrowthRate)
}

func TestAnalyze_BackfillsPredictionsWhenMissing(t *testing.T) {
	spy := &spyForecaster{preds: []trade.Prediction{
		{Year: "2025", Exports: 470, Imports: 740, Confidence: 77},
		{Year: "2026", Exports: 490, Imports: 760, Confidence: 67},
	}}
	svc := newTestService(Deps{Generator: &fakeGenerator{text: modelPayload}, Forecaster: spy}, DefaultOptions())

	out := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "electronics"})
	require.Equal(t, SourceModel, out.Source)
	assert.Equal(t, 1, spy.calls)
	assert.Equal(t, 2, spy.years)
	assert.Equal(t, spy.preds, out.Result.Predictions)
}

func TestAnalyze_DoesNotForecastWhenPredictionsPresent(t *testing.T) {
	spy := &spyForecaster{}
	svc := newTestService(Deps{Generator: &fakeGenerator{text: modelPayloadWithPredictions}, Forecaster: spy}, DefaultOptions())

	out := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "electronics"})
	require.Equal(t, SourceModel, out.Source)
	assert.Equal(t, 0, spy.calls)
	require.Len(t, out.Result.Predictions, 1)
	assert.Equal(t, trade.Year("2025"), out.Result.Predictions[0].Year)
}

func TestAnalyze_EnrichmentFailureIsSwallowed(t *testing.T) {
	tests := []struct {
		name string
		spy  *spyForecaster
	}{
		{name: "error", spy: &spyForecaster{err: errors.ErrInsufficientHistory}},
		{name: "panic", spy: &spyForecaster{panics: true}},
		{name: "invalid years", spy: &spyForecaster{preds: []trade.Prediction{{Year: "2020", Confidence: 70}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(Deps{Generator: &fakeGenerator{text: modelPayload}, Forecaster: tt.spy}, DefaultOptions())
			out := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "electronics"})

			assert.Equal(t, SourceModel, out.Source)
			assert.NoError(t, out.Err)
			assert.Empty(t, out.Result.Predictions)
			assert.Len(t, out.Result.ChartData, 4)
		})
	}
}

func TestAnalyze_CachesModelResults(t *testing.T) {
	gen := &fakeGenerator{text: modelPayload}
	cache := newMemCache()
	svc := newTestService(Deps{Generator: gen, Cache: cache}, DefaultOptions())

	req := trade.AnalysisRequest{Query: "India electronics imports"}
	first := svc.Analyze(context.Background(), req)
	require.Equal(t, SourceModel, first.Source)
	assert.Equal(t, 1, cache.sets)

	second := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "  india ELECTRONICS imports "})
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Result.Summary, second.Result.Summary)
	assert.Equal(t, 1, gen.callCount())
}

func TestAnalyze_FallbackIsNotCached(t *testing.T) {
	cache := newMemCache()
	svc := newTestService(Deps{Generator: &fakeGenerator{err: errors.ErrUnavailable}, Cache: cache}, DefaultOptions())

	out := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "trade"})
	assert.Equal(t, SourceFallback, out.Source)
	assert.Equal(t, 0, cache.sets)
}

func TestAnalyze_CacheErrorsAreIgnored(t *testing.T) {
	cache := newMemCache()
	cache.getErr = errors.New("connection refused")
	gen := &fakeGenerator{text: modelPayload}
	svc := newTestService(Deps{Generator: gen, Cache: cache}, DefaultOptions())

	out := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "trade"})
	assert.Equal(t, SourceModel, out.Source)
	assert.Equal(t, 1, gen.callCount())
}

func TestAnalyze_PublishesActivity(t *testing.T) {
	pub := &spyPublisher{}
	svc := newTestService(Deps{Generator: &fakeGenerator{err: errors.ErrUnavailable}, Publisher: pub}, DefaultOptions())

	ctx := errors.WithUserID(context.Background(), "user-1")
	svc.Analyze(ctx, trade.AnalysisRequest{Query: "trade"})

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, events.ActivitySearch, ev.Type)
	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, "fallback", ev.Source)
	assert.Equal(t, "trade", ev.Query)
	assert.Equal(t, "unavailable", ev.Data["fallbackReason"])
}

func TestNewServiceDefaults(t *testing.T) {
	svc := NewService(Deps{Logger: logger.Nop()}, Options{})
	assert.Equal(t, DefaultOptions().Model, svc.opts.Model)
	assert.Equal(t, 45*time.Second, svc.opts.Timeout)
	assert.Equal(t, 2, svc.opts.ForecastYears)

	// no generator configured still yields a result
	out := svc.Analyze(context.Background(), trade.AnalysisRequest{Query: "trade"})
	assertFallback(t, out)
	assert.True(t, errors.Is(out.Err, errors.ErrUnavailable))
}

package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradelens/internal/adapters/ai"
	"tradelens/internal/domain/trade"
	"tradelens/internal/events"
	"tradelens/internal/metrics"
	"tradelens/internal/services/forecast"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// DefaultForecastYears is the horizon used to backfill predictions
const DefaultForecastYears = forecast.DefaultYears

// Source tells where an analysis result came from
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
	SourceCache    Source = "cache"
)

// Outcome is the result of one analysis. Result is always set; Err is
// diagnostic only and explains why the fallback was served.
type Outcome struct {
	Result   *trade.AnalysisResult
	Source   Source
	Err      error
	Sources  []string
	Duration time.Duration
}

// Options tunes the model call and enrichment
type Options struct {
	Model         string
	Timeout       time.Duration
	WebSearch     bool
	Reasoning     ai.ReasoningEffort
	ForecastYears int
	Variant       trade.SchemaVariant
}

// DefaultOptions returns the production settings
func DefaultOptions() Options {
	return Options{
		Model:         "gemini-3-pro-preview",
		Timeout:       45 * time.Second,
		WebSearch:     true,
		Reasoning:     ai.ReasoningHigh,
		ForecastYears: DefaultForecastYears,
		Variant:       trade.SchemaExtended,
	}
}

// Deps are the collaborators of the Service. Cache and Publisher are
// optional.
type Deps struct {
	Generator  ai.Generator
	Forecaster forecast.Forecaster
	Cache      Cache
	Publisher  events.Publisher
	Logger     *logger.Logger
}

// Service answers trade questions with a validated AnalysisResult. It
// never fails: any problem with the model call yields the fallback
// dataset. It holds no per-request state and is safe for concurrent use.
type Service struct {
	generator  ai.Generator
	forecaster forecast.Forecaster
	cache      Cache
	publisher  events.Publisher
	opts       Options
	log        *logger.Logger
}

// NewService creates the analysis orchestrator
func NewService(deps Deps, opts Options) *Service {
	defaults := DefaultOptions()
	if opts.Model == "" {
		opts.Model = defaults.Model
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.ForecastYears < 1 {
		opts.ForecastYears = defaults.ForecastYears
	}

	log := deps.Logger
	if log == nil {
		log = logger.Get()
	}
	if deps.Generator == nil {
		deps.Generator = ai.Unavailable{Provider: ai.ProviderNameGoogle}
	}
	if deps.Forecaster == nil {
		deps.Forecaster = forecast.NewEngine(log)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}

	return &Service{
		generator:  deps.Generator,
		forecaster: deps.Forecaster,
		cache:      deps.Cache,
		publisher:  deps.Publisher,
		opts:       opts,
		log:        log.With("component", "analysis"),
	}
}

// Analyze runs the pipeline for one request. The returned outcome always
// carries a result that satisfies the result contract.
func (s *Service) Analyze(ctx context.Context, req trade.AnalysisRequest) *Outcome {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	out := &Outcome{}

	var key string
	if s.cache != nil && query != "" {
		key = CacheKey(query, req.Filters, s.opts.Variant)
		if cached := s.lookup(ctx, key); cached != nil {
			out.Result = cached
			out.Source = SourceCache
		}
	}

	if out.Result == nil {
		result, sources, err := s.fromModel(ctx, query, req.Filters)
		if err != nil {
			reason := fallbackReason(err)
			metrics.FallbackReasons.WithLabelValues(reason).Inc()
			s.log.Warnw("Serving fallback analysis",
				"reason", reason,
				"error", err,
				"query", query,
			)
			result = trade.FallbackResult()
			out.Source = SourceFallback
			out.Err = err
		} else {
			out.Source = SourceModel
			out.Sources = sources
		}

		s.enrich(result)
		out.Result = result

		if out.Source == SourceModel && key != "" {
			if err := s.cache.Set(ctx, key, result); err != nil {
				s.log.Warnw("Failed to cache analysis", "error", err)
			}
		}
	}

	out.Duration = time.Since(start)
	metrics.RecordAnalysis(string(out.Source), out.Duration)
	s.emit(ctx, query, out)

	s.log.Infow("Analysis complete",
		"source", out.Source,
		"duration", out.Duration,
		"years", len(out.Result.ChartData),
		"predictions", len(out.Result.Predictions),
	)

	return out
}

// fromModel runs compose, generate and parse. Panics inside the generator
// or parser are converted to errors.
func (s *Service) fromModel(ctx context.Context, query string, filters *trade.FilterSelection) (result *trade.AnalysisResult, sources []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, sources = nil, nil
			err = &panicError{value: r}
		}
	}()

	if query == "" {
		return nil, nil, errors.Wrap(errors.ErrInvalidInput, "query is empty")
	}

	prompt := ComposeInstruction(query, filters, s.opts.Variant)

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	resp, err := s.generator.Generate(callCtx, ai.GenerateRequest{
		Model:     s.opts.Model,
		Prompt:    prompt,
		Schema:    trade.ResponseSchema(s.opts.Variant),
		WebSearch: s.opts.WebSearch,
		Reasoning: s.opts.Reasoning,
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, errors.ErrTimeout) {
			err = errors.Wrapf(errors.ErrTimeout, "model call exceeded %s: %v", s.opts.Timeout, err)
		}
		return nil, nil, err
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return nil, nil, errors.ErrEmptyResponse
	}

	result, err = trade.ParseResult([]byte(resp.Text))
	if err != nil {
		return nil, nil, err
	}
	return result, resp.Sources, nil
}

// enrich backfills predictions when none were supplied and fills derived
// fields. It never fails; a forecast problem leaves predictions empty.
func (s *Service) enrich(result *trade.AnalysisResult) {
	if len(result.Predictions) == 0 {
		preds, err := s.forecast(result.ChartData)
		switch {
		case err != nil:
			s.log.Warnw("Forecast enrichment failed", "error", err)
		case trade.ValidatePredictions(result.ChartData, preds) != nil:
			s.log.Warnw("Forecast produced invalid predictions", "count", len(preds))
		default:
			result.Predictions = preds
		}
	}
	trade.FillDerived(result)
}

func (s *Service) forecast(history []trade.ChartPoint) (preds []trade.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			preds, err = nil, &panicError{value: r}
		}
	}()
	return s.forecaster.Forecast(history, s.opts.ForecastYears)
}

func (s *Service) lookup(ctx context.Context, key string) *trade.AnalysisResult {
	result, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warnw("Cache lookup failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return result
}

func (s *Service) emit(ctx context.Context, query string, out *Outcome) {
	ev := events.NewActivity(ctx, events.ActivitySearch)
	ev.Query = query
	ev.Source = string(out.Source)
	ev.DurationMs = out.Duration.Milliseconds()
	if out.Err != nil {
		ev.Data = map[string]any{"fallbackReason": fallbackReason(out.Err)}
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.publisher.PublishActivity(pubCtx, ev); err != nil {
		s.log.Debugw("Failed to publish activity", "error", err)
	}
}

// panicError reports a recovered panic from a collaborator
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("recovered panic: %v", e.value)
}

func fallbackReason(err error) string {
	var pe *panicError
	switch {
	case errors.As(err, &pe):
		return "panic"
	case errors.Is(err, errors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, errors.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, errors.ErrEmptyResponse):
		return "empty"
	case errors.Is(err, errors.ErrSchemaViolation):
		return "schema"
	case errors.Is(err, errors.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, errors.ErrUnavailable):
		return "unavailable"
	default:
		return "upstream"
	}
}

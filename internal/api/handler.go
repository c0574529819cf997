package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tradelens/internal/domain/saved"
	"tradelens/internal/domain/trade"
	"tradelens/internal/events"
	"tradelens/internal/repository/clickhouse"
	"tradelens/internal/services/analysis"
	"tradelens/internal/services/forecast"
	"tradelens/internal/workers/persist"
	"tradelens/pkg/logger"
)

const (
	DefaultUserIDHeader = "X-User-ID"
	SourceHeader        = "X-Analysis-Source"
	SavedHeader         = "X-Analysis-Saved"

	defaultMaxBodyBytes = 1 << 20
)

// Analyzer runs the analysis pipeline
type Analyzer interface {
	Analyze(ctx context.Context, req trade.AnalysisRequest) *analysis.Outcome
}

// QueryGenerator turns filters into a question
type QueryGenerator interface {
	GenerateQuery(ctx context.Context, filters trade.FilterSelection) string
}

// SavedAnalyses is the saved-analysis use-case layer
type SavedAnalyses interface {
	Create(ctx context.Context, in saved.CreateInput) (*saved.SavedAnalysis, error)
	View(ctx context.Context, userID string, id uuid.UUID) (*saved.SavedAnalysis, error)
	List(ctx context.Context, userID string, limit, offset int) ([]saved.SavedAnalysis, error)
	Recent(ctx context.Context, userID string, limit int) ([]saved.SavedAnalysis, error)
	Update(ctx context.Context, userID string, id uuid.UUID, in saved.UpdateInput) (*saved.SavedAnalysis, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) (bool, error)
}

// Enqueuer accepts background persistence jobs without blocking
type Enqueuer interface {
	Enqueue(job persist.Job) bool
}

// ActivityReader serves activity analytics
type ActivityReader interface {
	CountByType(ctx context.Context, userID string, since time.Time) ([]clickhouse.ActivityCount, error)
	TopQueries(ctx context.Context, since time.Time, limit int) ([]clickhouse.QueryCount, error)
}

var (
	_ Analyzer       = (*analysis.Service)(nil)
	_ QueryGenerator = (*analysis.QueryWriter)(nil)
	_ SavedAnalyses  = (*saved.Service)(nil)
	_ Enqueuer       = (*persist.Persister)(nil)
	_ ActivityReader = (*clickhouse.ActivityRepository)(nil)
)

// Deps are the collaborators of Handler. Persister and Activity are
// optional; without a persister "save" requests are stored synchronously.
type Deps struct {
	Analyzer   Analyzer
	Queries    QueryGenerator
	Forecaster forecast.Forecaster
	Saved      SavedAnalyses
	Persister  Enqueuer
	Activity   ActivityReader
	Publisher  events.Publisher
	Logger     *logger.Logger

	MaxBodyBytes int64
}

// Handler serves the JSON API
type Handler struct {
	analyzer   Analyzer
	queries    QueryGenerator
	forecaster forecast.Forecaster
	saved      SavedAnalyses
	persister  Enqueuer
	activity   ActivityReader
	publisher  events.Publisher
	maxBody    int64
	log        *logger.Logger
}

// NewHandler creates the API handler
func NewHandler(deps Deps) *Handler {
	log := deps.Logger
	if log == nil {
		log = logger.Get()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if deps.Forecaster == nil {
		deps.Forecaster = forecast.NewEngine(log)
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		analyzer:   deps.Analyzer,
		queries:    deps.Queries,
		forecaster: deps.Forecaster,
		saved:      deps.Saved,
		persister:  deps.Persister,
		activity:   deps.Activity,
		publisher:  deps.Publisher,
		maxBody:    deps.MaxBodyBytes,
		log:        log.With("component", "api"),
	}
}

// publish sends a best-effort activity event outliving the request
func (h *Handler) publish(ctx context.Context, typ events.ActivityType, data map[string]any) {
	ev := events.NewActivity(ctx, typ)
	ev.Data = data

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := h.publisher.PublishActivity(pubCtx, ev); err != nil {
		h.log.Debugw("Failed to publish activity", "type", typ, "error", err)
	}
}

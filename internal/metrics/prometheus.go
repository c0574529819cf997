package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Analysis pipeline metrics
	AnalysisRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_analysis_requests_total",
			Help: "Total number of analysis requests by result source",
		},
		[]string{"source"}, // source: model|fallback|cache
	)

	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradelens_analysis_duration_seconds",
			Help:    "End-to-end analysis duration in seconds",
			Buckets: []float64{0.05, 0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"source"},
	)

	FallbackReasons = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_analysis_fallback_total",
			Help: "Analyses served from the fallback dataset by reason",
		},
		[]string{"reason"}, // reason: timeout|empty|schema|rate_limited|upstream|panic
	)

	ForecastRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_forecast_runs_total",
			Help: "Forecast engine runs by method",
		},
		[]string{"path"}, // path: regression|trend
	)

	QueryGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_query_generations_total",
			Help: "Filter-to-query generations by source",
		},
		[]string{"source"}, // source: model|fallback
	)

	// Model metrics
	ModelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_model_calls_total",
			Help: "Total number of generative model calls",
		},
		[]string{"provider", "model", "status"}, // status: success|error|rate_limited
	)

	ModelLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradelens_model_latency_seconds",
			Help:    "Generative model call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"provider", "model"},
	)

	ModelTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_model_tokens_total",
			Help: "Tokens consumed by model calls",
		},
		[]string{"provider", "model", "type"}, // type: input|output
	)

	// Cache metrics
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_cache_lookups_total",
			Help: "Analysis cache lookups",
		},
		[]string{"result"}, // result: hit|miss|error
	)

	// Persistence metrics
	PersistJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_persist_jobs_total",
			Help: "Background persistence jobs by outcome",
		},
		[]string{"status"}, // status: success|error|dropped
	)

	PersistQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradelens_persist_queue_depth",
			Help: "Jobs waiting in the persistence queue",
		},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"},
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradelens_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"database", "operation"},
	)

	// Activity pipeline metrics
	ActivityEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_activity_events_total",
			Help: "Activity events by stage",
		},
		[]string{"stage", "status"}, // stage: published|consumed|stored
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelens_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)
)

// Init registers all metrics with the default registry
func Init() {
	prometheus.MustRegister(AnalysisRequests)
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(FallbackReasons)
	prometheus.MustRegister(ForecastRuns)
	prometheus.MustRegister(QueryGenerations)

	prometheus.MustRegister(ModelCalls)
	prometheus.MustRegister(ModelLatency)
	prometheus.MustRegister(ModelTokens)

	prometheus.MustRegister(CacheLookups)

	prometheus.MustRegister(PersistJobs)
	prometheus.MustRegister(PersistQueueDepth)

	prometheus.MustRegister(DBQueries)
	prometheus.MustRegister(DBQueryDuration)

	prometheus.MustRegister(ActivityEvents)
	prometheus.MustRegister(HTTPRequests)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAnalysis records a completed analysis
func RecordAnalysis(source string, duration time.Duration) {
	AnalysisRequests.WithLabelValues(source).Inc()
	AnalysisDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordModelCall records a generative model invocation
func RecordModelCall(provider, model string, latency time.Duration, inputTokens, outputTokens int32, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ModelCalls.WithLabelValues(provider, model, status).Inc()
	ModelLatency.WithLabelValues(provider, model).Observe(latency.Seconds())

	if inputTokens > 0 {
		ModelTokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		ModelTokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	DBQueries.WithLabelValues(database, operation, status).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordActivity records an activity event passing a pipeline stage
func RecordActivity(stage string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ActivityEvents.WithLabelValues(stage, status).Inc()
}

package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"tradelens/internal/domain/saved"
	"tradelens/internal/domain/trade"
	"tradelens/internal/services/forecast"
	"tradelens/internal/workers/persist"
	"tradelens/pkg/errors"
)

type analyzeRequest struct {
	Query       string          `json:"query"`
	Filters     json.RawMessage `json:"filters"`
	Save        bool            `json:"save"`
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	IsPublic    bool            `json:"isPublic"`
}

// Analyze handles POST /api/analyze. The body is an AnalysisResult; the
// X-Analysis-Source header says whether it came from the model, the cache
// or the fallback dataset.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, h.log, errors.NewValidationError("query", "is required", req.Query))
		return
	}
	filters := trade.ParseFilters(req.Filters)

	out := h.analyzer.Analyze(r.Context(), trade.AnalysisRequest{Query: query, Filters: filters})

	w.Header().Set(SourceHeader, string(out.Source))
	if req.Save {
		w.Header().Set(SavedHeader, h.save(r, req, query, filters, out.Result))
	}
	writeJSON(w, http.StatusOK, out.Result)
}

// save hands a finished result to the persister and reports the outcome
// as queued, dropped, stored, failed or anonymous.
func (h *Handler) save(r *http.Request, req analyzeRequest, query string, filters *trade.FilterSelection, result *trade.AnalysisResult) string {
	userID := errors.UserIDFromContext(r.Context())
	if userID == "" {
		return "anonymous"
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = saved.DefaultTitle(query, filters)
	}
	in := saved.CreateInput{
		UserID:      userID,
		Title:       title,
		Description: req.Description,
		Query:       query,
		Filters:     filters,
		Results:     result,
		IsPublic:    req.IsPublic,
	}

	if h.persister != nil {
		if h.persister.Enqueue(persist.Job{Input: in}) {
			return "queued"
		}
		return "dropped"
	}

	if _, err := h.saved.Create(r.Context(), in); err != nil {
		h.log.Errorw("Failed to save analysis", "user_id", userID, "error", err)
		return "failed"
	}
	return "stored"
}

type queryFromFiltersRequest struct {
	Filters json.RawMessage `json:"filters"`
}

type queryFromFiltersResponse struct {
	Query string `json:"query"`
}

// QueryFromFilters handles POST /api/query-from-filters. Malformed filters
// are treated as the default selection.
func (h *Handler) QueryFromFilters(w http.ResponseWriter, r *http.Request) {
	var req queryFromFiltersRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	filters := trade.DefaultFilters()
	if f := trade.ParseFilters(req.Filters); f != nil {
		filters = *f
	}

	writeJSON(w, http.StatusOK, queryFromFiltersResponse{
		Query: h.queries.GenerateQuery(r.Context(), filters),
	})
}

const maxForecastYears = 10

type forecastRequest struct {
	History []trade.ChartPoint `json:"history"`
	Years   int                `json:"years"`
}

// forecastPoint is a prediction with its confidence band
type forecastPoint struct {
	trade.Prediction
	ExportsLower float64 `json:"exportsLower"`
	ExportsUpper float64 `json:"exportsUpper"`
	ImportsLower float64 `json:"importsLower"`
	ImportsUpper float64 `json:"importsUpper"`
}

type forecastResponse struct {
	Predictions []forecastPoint `json:"predictions"`
}

func withIntervals(preds []trade.Prediction) []forecastPoint {
	points := make([]forecastPoint, len(preds))
	for i, p := range preds {
		points[i] = forecastPoint{Prediction: p}
		points[i].ExportsLower, points[i].ExportsUpper = forecast.ConfidenceInterval(p.Exports, p.Confidence)
		points[i].ImportsLower, points[i].ImportsUpper = forecast.ConfidenceInterval(p.Imports, p.Confidence)
	}
	return points
}

// Forecast handles POST /api/forecast
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	if req.Years > maxForecastYears {
		writeError(w, h.log, errors.NewValidationError("years", "too many years requested", req.Years))
		return
	}

	preds, err := h.forecaster.Forecast(req.History, req.Years)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, forecastResponse{Predictions: withIntervals(preds)})
}

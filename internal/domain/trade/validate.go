package trade

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"tradelens/pkg/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// rawResult mirrors AnalysisResult with pointers on the required fields so
// an absent field can be told apart from a zero value.
type rawResult struct {
	Summary            *string       `json:"summary"`
	Stats              *Stats        `json:"stats"`
	ChartData          []ChartPoint  `json:"chartData"`
	TopSectors         []Sector      `json:"topSectors"`
	GrowthRate         string        `json:"growthRate"`
	YearOverYearChange []YearChange  `json:"yearOverYearChange"`
	Predictions        []Prediction  `json:"predictions"`
	Anomalies          []Anomaly     `json:"anomalies"`
	Risks              []Risk        `json:"risks"`
	Opportunities      []Opportunity `json:"opportunities"`
	AIInsights         *AIInsights   `json:"aiInsights"`
}

// ParseResult decodes model output and enforces the result contract.
//
// Required fields (summary, stats, non-empty chartData with numeric years)
// fail the whole parse with ErrSchemaViolation. chartData is sorted by year
// and blank stats are derived from it. An invalid optional block is dropped
// on its own and the rest of the result is kept.
func ParseResult(data []byte) (*AnalysisResult, error) {
	body := stripCodeFence(string(data))
	if body == "" {
		return nil, errors.ErrEmptyResponse
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, errors.Wrap(errors.ErrSchemaViolation, err.Error())
	}

	if raw.Summary == nil || strings.TrimSpace(*raw.Summary) == "" {
		return nil, violation("summary", "is required")
	}
	if raw.Stats == nil {
		return nil, violation("stats", "is required")
	}
	if len(raw.ChartData) == 0 {
		return nil, violation("chartData", "must contain at least one year")
	}

	v := validatorInstance()
	for i, p := range raw.ChartData {
		if err := v.Struct(p); err != nil {
			return nil, errors.Wrapf(errors.ErrSchemaViolation, "chartData[%d]: %v", i, err)
		}
		if _, ok := p.Year.Int(); !ok {
			return nil, errors.Wrapf(errors.ErrSchemaViolation, "chartData[%d]: year %q is not numeric", i, p.Year)
		}
	}
	sort.SliceStable(raw.ChartData, func(i, j int) bool {
		a, _ := raw.ChartData[i].Year.Int()
		b, _ := raw.ChartData[j].Year.Int()
		return a < b
	})

	result := &AnalysisResult{
		Summary:    strings.TrimSpace(*raw.Summary),
		Stats:      *raw.Stats,
		ChartData:  raw.ChartData,
		GrowthRate: strings.TrimSpace(raw.GrowthRate),
	}
	result.Stats.TotalVolume = strings.TrimSpace(result.Stats.TotalVolume)
	result.Stats.PeakYear = strings.TrimSpace(result.Stats.PeakYear)
	result.Stats.Balance = strings.TrimSpace(result.Stats.Balance)

	result.TopSectors = keepIfValid(v, raw.TopSectors)
	result.YearOverYearChange = validYearChanges(v, raw.YearOverYearChange)
	result.Predictions = validPredictions(raw.Predictions, result.ChartData)
	result.Anomalies = keepIfValid(v, normalizeAnomalies(raw.Anomalies))
	result.Risks = keepIfValid(v, normalizeRisks(raw.Risks))
	result.Opportunities = keepIfValid(v, raw.Opportunities)
	result.AIInsights = normalizeInsights(raw.AIInsights)

	derived := DeriveStats(result.ChartData)
	if result.Stats.TotalVolume == "" {
		result.Stats.TotalVolume = derived.TotalVolume
	}
	if result.Stats.PeakYear == "" {
		result.Stats.PeakYear = derived.PeakYear
	}
	if result.Stats.Balance == "" {
		result.Stats.Balance = derived.Balance
	}

	return result, nil
}

// ValidatePredictions checks that predictions start after the last chart
// year and strictly increase. Used for both model and forecast output.
func ValidatePredictions(chart []ChartPoint, predictions []Prediction) error {
	last := 0
	if len(chart) > 0 {
		y, ok := chart[len(chart)-1].Year.Int()
		if !ok {
			return violation("chartData", "last year is not numeric")
		}
		last = y
	}
	v := validatorInstance()
	prev := last
	for i, p := range predictions {
		if err := v.Struct(p); err != nil {
			return errors.Wrapf(errors.ErrSchemaViolation, "predictions[%d]: %v", i, err)
		}
		y, ok := p.Year.Int()
		if !ok {
			return errors.Wrapf(errors.ErrSchemaViolation, "predictions[%d]: year %q is not numeric", i, p.Year)
		}
		if y <= prev {
			return errors.Wrapf(errors.ErrSchemaViolation, "predictions[%d]: year %d does not follow %d", i, y, prev)
		}
		prev = y
	}
	return nil
}

func validPredictions(preds []Prediction, chart []ChartPoint) []Prediction {
	if len(preds) == 0 {
		return nil
	}
	if err := ValidatePredictions(chart, preds); err != nil {
		return nil
	}
	return preds
}

func validYearChanges(v *validator.Validate, changes []YearChange) []YearChange {
	changes = keepIfValid(v, changes)
	for _, c := range changes {
		if _, ok := c.Year.Int(); !ok {
			return nil
		}
	}
	return changes
}

// keepIfValid returns items unchanged when every element passes struct
// validation, or nil when any of them fails.
func keepIfValid[T any](v *validator.Validate, items []T) []T {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if err := v.Struct(items[i]); err != nil {
			return nil
		}
	}
	return items
}

var (
	anomalyTypes = map[string]AnomalyType{
		"spike":      AnomalySpike,
		"drop":       AnomalyDrop,
		"disruption": AnomalyDisruption,
	}
	anomalySeverities = map[string]AnomalySeverity{
		"critical": SeverityCritical,
		"high":     SeverityHigh,
		"moderate": SeverityModerate,
	}
	riskSeverities = map[string]RiskSeverity{
		"high":   RiskHigh,
		"medium": RiskMedium,
		"low":    RiskLow,
	}
)

func normalizeAnomalies(items []Anomaly) []Anomaly {
	for i := range items {
		key := strings.ToLower(strings.TrimSpace(string(items[i].Type)))
		if t, ok := anomalyTypes[key]; ok {
			items[i].Type = t
		}
		key = strings.ToLower(strings.TrimSpace(string(items[i].Severity)))
		if s, ok := anomalySeverities[key]; ok {
			items[i].Severity = s
		}
	}
	return items
}

func normalizeRisks(items []Risk) []Risk {
	for i := range items {
		key := strings.ToLower(strings.TrimSpace(string(items[i].Severity)))
		if s, ok := riskSeverities[key]; ok {
			items[i].Severity = s
		}
	}
	return items
}

func normalizeInsights(in *AIInsights) *AIInsights {
	if in == nil {
		return nil
	}
	if len(in.MarketTrends) == 0 && len(in.StrategicRecommendations) == 0 && strings.TrimSpace(in.ComparativeAnalysis) == "" {
		return nil
	}
	return in
}

func violation(field, reason string) error {
	return errors.Wrapf(errors.ErrSchemaViolation, "%s %s", field, reason)
}

// stripCodeFence removes a surrounding ```json fence some models add even
// when a JSON response type was requested.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

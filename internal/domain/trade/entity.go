package trade

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Supported year domain for filters and fallback data
const (
	MinYear = 2010
	MaxYear = 2025
)

// TradeType restricts an analysis to one direction of trade
type TradeType string

const (
	TradeTypeImports TradeType = "imports"
	TradeTypeExports TradeType = "exports"
	TradeTypeBoth    TradeType = "both"
)

// Valid reports whether t is one of the known trade types
func (t TradeType) Valid() bool {
	switch t {
	case TradeTypeImports, TradeTypeExports, TradeTypeBoth:
		return true
	}
	return false
}

func (t TradeType) String() string {
	return string(t)
}

// Year is a year label. The model is asked for strings but occasionally
// emits bare numbers, so both decode.
type Year string

func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*y = Year(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*y = Year(n.String())
	return nil
}

// Int parses the label as an integer year
func (y Year) Int() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(string(y)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// YearOf formats an integer year as a label
func YearOf(n int) Year {
	return Year(strconv.Itoa(n))
}

// AnalysisRequest is a free-text question with optional structured filters
type AnalysisRequest struct {
	Query   string           `json:"query"`
	Filters *FilterSelection `json:"filters,omitempty"`
}

// AnalysisResult is the structured payload rendered by the dashboard.
// JSON field names are part of the UI contract.
type AnalysisResult struct {
	Summary            string        `json:"summary"`
	Stats              Stats         `json:"stats"`
	ChartData          []ChartPoint  `json:"chartData"`
	TopSectors         []Sector      `json:"topSectors,omitempty"`
	GrowthRate         string        `json:"growthRate,omitempty"`
	YearOverYearChange []YearChange  `json:"yearOverYearChange,omitempty"`
	Predictions        []Prediction  `json:"predictions,omitempty"`
	Anomalies          []Anomaly     `json:"anomalies,omitempty"`
	Risks              []Risk        `json:"risks,omitempty"`
	Opportunities      []Opportunity `json:"opportunities,omitempty"`
	AIInsights         *AIInsights   `json:"aiInsights,omitempty"`
}

// Stats are human-readable, currency-tagged headline figures
type Stats struct {
	TotalVolume string `json:"totalVolume"`
	PeakYear    string `json:"peakYear"`
	Balance     string `json:"balance"`
}

// ChartPoint is one year of trade values in billions of USD
type ChartPoint struct {
	Year    Year    `json:"year" validate:"required"`
	Exports float64 `json:"exports" validate:"gte=0"`
	Imports float64 `json:"imports" validate:"gte=0"`
}

type Sector struct {
	Name       string  `json:"name" validate:"required"`
	Value      float64 `json:"value" validate:"gte=0"`
	Percentage float64 `json:"percentage" validate:"gte=0,lte=100"`
}

type YearChange struct {
	Year   Year    `json:"year" validate:"required"`
	Change float64 `json:"change"`
}

// Prediction is a forecast year produced by the model or the forecast engine
type Prediction struct {
	Year       Year    `json:"year" validate:"required"`
	Exports    float64 `json:"exports" validate:"gte=0"`
	Imports    float64 `json:"imports" validate:"gte=0"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=100"`
}

type AnomalyType string

const (
	AnomalySpike      AnomalyType = "spike"
	AnomalyDrop       AnomalyType = "drop"
	AnomalyDisruption AnomalyType = "disruption"
)

type AnomalySeverity string

const (
	SeverityCritical AnomalySeverity = "Critical"
	SeverityHigh     AnomalySeverity = "High"
	SeverityModerate AnomalySeverity = "Moderate"
)

type Anomaly struct {
	Year     Year            `json:"year" validate:"required"`
	Title    string          `json:"title" validate:"required"`
	Type     AnomalyType     `json:"type" validate:"oneof=spike drop disruption"`
	Severity AnomalySeverity `json:"severity" validate:"oneof=Critical High Moderate"`
	Context  string          `json:"context"`
	Impact   string          `json:"impact"`
	Recovery string          `json:"recovery"`
}

type RiskSeverity string

const (
	RiskHigh   RiskSeverity = "High"
	RiskMedium RiskSeverity = "Medium"
	RiskLow    RiskSeverity = "Low"
)

type Risk struct {
	Title       string       `json:"title" validate:"required"`
	Description string       `json:"description"`
	Severity    RiskSeverity `json:"severity" validate:"oneof=High Medium Low"`
	Timeframe   string       `json:"timeframe"`
	Mitigation  string       `json:"mitigation"`
}

type Opportunity struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Potential   string `json:"potential"`
	Timeframe   string `json:"timeframe"`
	Action      string `json:"action"`
}

type AIInsights struct {
	MarketTrends             []string `json:"marketTrends"`
	StrategicRecommendations []string `json:"strategicRecommendations"`
	ComparativeAnalysis      string   `json:"comparativeAnalysis"`
}

// LastYear returns the last chart year as an integer. ok is false when the
// series is empty or the label does not parse.
func (r *AnalysisResult) LastYear() (int, bool) {
	if r == nil || len(r.ChartData) == 0 {
		return 0, false
	}
	return r.ChartData[len(r.ChartData)-1].Year.Int()
}

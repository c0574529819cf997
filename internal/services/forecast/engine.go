package forecast

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"tradelens/internal/domain/trade"
	"tradelens/internal/metrics"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// DefaultYears is the horizon used when a caller asks for less than one year
const DefaultYears = 2

const (
	confidenceWindow  = 5
	trendWindow       = 3
	regressionBase    = 85.0
	trendBase         = 75.0
	confidenceStep    = 10.0
	confidenceFloor   = 50.0
	maxVolatilityCost = 20.0
	defaultGrowth     = 0.05
	minGrowth         = -0.15
	maxGrowth         = 0.20
)

// Path identifies which method produced a forecast
type Path string

const (
	PathRegression Path = "regression"
	PathTrend      Path = "trend"
)

// Forecaster projects a yearly trade series forward
type Forecaster interface {
	Forecast(history []trade.ChartPoint, years int) ([]trade.Prediction, error)
}

// Result is a forecast together with the path that produced it
type Result struct {
	Predictions []trade.Prediction
	Path        Path
}

// Engine fits independent least-squares lines to exports and imports and
// falls back to compounded recent growth when the fit cannot be used.
type Engine struct {
	log *logger.Logger
}

var _ Forecaster = (*Engine)(nil)

func NewEngine(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{log: log.With("component", "forecast")}
}

// Forecast implements Forecaster and records which path ran
func (e *Engine) Forecast(history []trade.ChartPoint, years int) ([]trade.Prediction, error) {
	res, err := e.Run(history, years)
	if err != nil {
		return nil, err
	}
	metrics.ForecastRuns.WithLabelValues(string(res.Path)).Inc()
	return res.Predictions, nil
}

// Run produces `years` predictions starting the year after the last point.
// Only an empty history is an error; every other input yields a full set.
func (e *Engine) Run(history []trade.ChartPoint, years int) (Result, error) {
	if len(history) == 0 {
		return Result{}, errors.ErrInsufficientHistory
	}
	if years < 1 {
		years = DefaultYears
	}

	lastYear, ok := history[len(history)-1].Year.Int()
	if !ok {
		lastYear = trade.MinYear + len(history) - 1
		e.log.Warnw("Last history year is not numeric, extrapolating trend",
			"year", history[len(history)-1].Year,
			"assumed", lastYear,
		)
		return Result{Predictions: trend(history, lastYear, years), Path: PathTrend}, nil
	}

	preds, err := regression(history, lastYear, years)
	if err != nil {
		e.log.Debugw("Regression unavailable, extrapolating trend", "error", err, "points", len(history))
		return Result{Predictions: trend(history, lastYear, years), Path: PathTrend}, nil
	}
	return Result{Predictions: preds, Path: PathRegression}, nil
}

// Forecast runs a default engine. Convenience for callers without DI.
func Forecast(history []trade.ChartPoint, years int) ([]trade.Prediction, error) {
	res, err := NewEngine(nil).Run(history, years)
	return res.Predictions, err
}

func regression(history []trade.ChartPoint, lastYear, years int) (preds []trade.Prediction, err error) {
	n := len(history)
	if n < 2 {
		return nil, errors.Wrapf(errors.ErrInsufficientHistory, "regression needs 2 points, have %d", n)
	}

	defer func() {
		if r := recover(); r != nil {
			preds, err = nil, fmt.Errorf("regression panicked: %v", r)
		}
	}()

	exports, imports := split(history)
	exportFit, exportSlope := fitLine(exports)
	importFit, importSlope := fitLine(imports)
	if !finite(exportFit, exportSlope, importFit, importSlope) {
		return nil, errors.New("regression produced non-finite coefficients")
	}

	cv := coefficientOfVariation(history)
	preds = make([]trade.Prediction, 0, years)
	for i := 1; i <= years; i++ {
		ex := exportFit + exportSlope*float64(i)
		im := importFit + importSlope*float64(i)
		if !finite(ex, im) {
			return nil, errors.New("regression produced non-finite prediction")
		}
		preds = append(preds, trade.Prediction{
			Year:       trade.YearOf(lastYear + i),
			Exports:    nonNegative(math.Round(ex)),
			Imports:    nonNegative(math.Round(im)),
			Confidence: regressionConfidence(cv, i),
		})
	}
	return preds, nil
}

// fitLine returns the fitted value at the last index and the slope of an
// OLS line over the whole series (x = 0..n-1).
func fitLine(values []float64) (lastFit, slope float64) {
	period := len(values)
	fitted := talib.LinearReg(values, period)
	slopes := talib.LinearRegSlope(values, period)
	return fitted[period-1], slopes[period-1]
}

// coefficientOfVariation is population stddev / mean of total trade over
// the trailing confidence window. A zero mean reports +Inf.
func coefficientOfVariation(history []trade.ChartPoint) float64 {
	start := len(history) - confidenceWindow
	if start < 0 {
		start = 0
	}
	window := history[start:]
	totals := make([]float64, len(window))
	for i, p := range window {
		totals[i] = p.Exports + p.Imports
	}

	period := len(totals)
	mean := talib.Sma(totals, period)[period-1]
	if mean == 0 || math.IsNaN(mean) {
		return math.Inf(1)
	}
	std := talib.StdDev(totals, period, 1)[period-1]
	if math.IsNaN(std) {
		return math.Inf(1)
	}
	return math.Abs(std / mean)
}

func regressionConfidence(cv float64, ahead int) float64 {
	base := regressionBase - confidenceStep*float64(ahead-1)
	penalty := math.Min(cv*100, maxVolatilityCost)
	return math.Round(math.Max(base-penalty, confidenceFloor))
}

// trend compounds the average recent growth of each series forward. It
// never fails.
func trend(history []trade.ChartPoint, lastYear, years int) []trade.Prediction {
	start := len(history) - trendWindow
	if start < 0 {
		start = 0
	}
	exports, imports := split(history[start:])
	exportGrowth := averageGrowth(exports)
	importGrowth := averageGrowth(imports)

	last := history[len(history)-1]
	ex, im := last.Exports, last.Imports

	preds := make([]trade.Prediction, 0, years)
	for i := 1; i <= years; i++ {
		ex *= 1 + exportGrowth
		im *= 1 + importGrowth
		preds = append(preds, trade.Prediction{
			Year:       trade.YearOf(lastYear + i),
			Exports:    nonNegative(math.Round(ex)),
			Imports:    nonNegative(math.Round(im)),
			Confidence: math.Max(trendBase-confidenceStep*float64(i-1), confidenceFloor),
		})
	}
	return preds
}

// averageGrowth is the mean period-over-period growth, clamped. Pairs with
// a zero previous value carry no rate and are skipped; fewer than two
// usable rates yields the default.
func averageGrowth(values []float64) float64 {
	var sum float64
	var count int
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		g := (values[i] - values[i-1]) / values[i-1]
		if !finite(g) {
			continue
		}
		sum += g
		count++
	}
	if count < 2 {
		return defaultGrowth
	}
	return math.Max(math.Min(sum/float64(count), maxGrowth), minGrowth)
}

// ConfidenceInterval widens a prediction by its uncertainty share:
// margin = value * (100 - confidence) / 100.
func ConfidenceInterval(value, confidence float64) (lower, upper float64) {
	margin := value * ((100 - confidence) / 100)
	return math.Round(value - margin), math.Round(value + margin)
}

func split(points []trade.ChartPoint) (exports, imports []float64) {
	exports = make([]float64, len(points))
	imports = make([]float64, len(points))
	for i, p := range points {
		exports[i] = p.Exports
		imports[i] = p.Imports
	}
	return exports, imports
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// nonNegative maps negative and non-finite values to zero
func nonNegative(v float64) float64 {
	if v < 0 || !finite(v) {
		return 0
	}
	return v
}

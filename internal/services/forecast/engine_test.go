package forecast

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/internal/domain/trade"
	"tradelens/pkg/errors"
)

func series(startYear int, exports, imports []float64) []trade.ChartPoint {
	points := make([]trade.ChartPoint, len(exports))
	for i := range exports {
		points[i] = trade.ChartPoint{Year: trade.YearOf(startYear + i), Exports: exports[i], Imports: imports[i]}
	}
	return points
}

func TestRegressionOnLinearSeries(t *testing.T) {
	history := series(2015,
		[]float64{100, 110, 120, 130, 140},
		[]float64{200, 210, 220, 230, 240},
	)

	res, err := NewEngine(nil).Run(history, 2)
	require.NoError(t, err)

	assert.Equal(t, PathRegression, res.Path)
	require.Len(t, res.Predictions, 2)

	assert.Equal(t, trade.Year("2020"), res.Predictions[0].Year)
	assert.Equal(t, float64(150), res.Predictions[0].Exports)
	assert.Equal(t, float64(250), res.Predictions[0].Imports)
	assert.Equal(t, trade.Year("2021"), res.Predictions[1].Year)
	assert.Equal(t, float64(160), res.Predictions[1].Exports)
	assert.Equal(t, float64(260), res.Predictions[1].Imports)

	// cv of totals 300..380 is ~0.083, so the penalty is ~8.3
	assert.Equal(t, float64(77), res.Predictions[0].Confidence)
	assert.Equal(t, float64(67), res.Predictions[1].Confidence)
}

func TestConfidenceDecaysWithHorizon(t *testing.T) {
	history := series(2018,
		[]float64{300, 305, 310, 316, 320, 326},
		[]float64{480, 485, 492, 498, 505, 510},
	)

	preds, err := NewEngine(nil).Forecast(history, 2)
	require.NoError(t, err)
	require.Len(t, preds, 2)

	assert.Greater(t, preds[0].Confidence, preds[1].Confidence)
	for _, p := range preds {
		assert.GreaterOrEqual(t, p.Confidence, float64(50))
		assert.LessOrEqual(t, p.Confidence, float64(85))
	}
}

func TestVolatilityPenaltyIsCapped(t *testing.T) {
	history := series(2019,
		[]float64{10, 500, 5, 700, 1},
		[]float64{10, 500, 5, 700, 1},
	)

	res, err := NewEngine(nil).Run(history, 3)
	require.NoError(t, err)
	require.Equal(t, PathRegression, res.Path)

	assert.Equal(t, float64(65), res.Predictions[0].Confidence)
	assert.Equal(t, float64(55), res.Predictions[1].Confidence)
	assert.Equal(t, float64(50), res.Predictions[2].Confidence)
}

func TestZeroSeriesUsesMaxPenalty(t *testing.T) {
	history := series(2020, []float64{0, 0, 0}, []float64{0, 0, 0})

	res, err := NewEngine(nil).Run(history, 2)
	require.NoError(t, err)

	assert.Equal(t, float64(65), res.Predictions[0].Confidence)
	assert.Equal(t, float64(0), res.Predictions[0].Exports)
}

func TestEmptyHistoryIsAnError(t *testing.T) {
	_, err := NewEngine(nil).Run(nil, 2)
	assert.ErrorIs(t, err, errors.ErrInsufficientHistory)

	_, err = Forecast([]trade.ChartPoint{}, 2)
	assert.ErrorIs(t, err, errors.ErrInsufficientHistory)
}

func TestNonPositiveHorizonDefaultsToTwo(t *testing.T) {
	history := series(2020, []float64{1, 2, 3}, []float64{1, 2, 3})

	preds, err := Forecast(history, 0)
	require.NoError(t, err)
	assert.Len(t, preds, DefaultYears)

	preds, err = Forecast(history, -4)
	require.NoError(t, err)
	assert.Len(t, preds, DefaultYears)
}

func TestSinglePointUsesTrendWithDefaultGrowth(t *testing.T) {
	history := series(2024, []float64{100}, []float64{200})

	res, err := NewEngine(nil).Run(history, 2)
	require.NoError(t, err)

	assert.Equal(t, PathTrend, res.Path)
	assert.Equal(t, []trade.Prediction{
		{Year: "2025", Exports: 105, Imports: 210, Confidence: 75},
		{Year: "2026", Exports: 110, Imports: 221, Confidence: 65},
	}, res.Predictions)
}

func TestNonNumericYearUsesTrend(t *testing.T) {
	history := []trade.ChartPoint{
		{Year: "FY22", Exports: 100, Imports: 100},
		{Year: "FY23", Exports: 110, Imports: 110},
		{Year: "FY24", Exports: 121, Imports: 121},
	}

	res, err := NewEngine(nil).Run(history, 2)
	require.NoError(t, err)

	assert.Equal(t, PathTrend, res.Path)
	assert.Equal(t, trade.Year("2013"), res.Predictions[0].Year)
	assert.Equal(t, trade.Year("2014"), res.Predictions[1].Year)
	// two deltas of 10% each
	assert.Equal(t, float64(133), res.Predictions[0].Exports)
}

func TestNonFiniteInputFallsBackToTrend(t *testing.T) {
	history := series(2020, []float64{100, math.NaN(), 120}, []float64{100, 110, 120})

	res, err := NewEngine(nil).Run(history, 2)
	require.NoError(t, err)

	assert.Equal(t, PathTrend, res.Path)
	require.Len(t, res.Predictions, 2)
	for _, p := range res.Predictions {
		assert.False(t, math.IsNaN(p.Exports))
		assert.False(t, math.IsNaN(p.Imports))
	}
}

func TestAverageGrowth(t *testing.T) {
	assert.Equal(t, defaultGrowth, averageGrowth([]float64{100}))
	assert.Equal(t, defaultGrowth, averageGrowth([]float64{100, 200}))
	assert.Equal(t, defaultGrowth, averageGrowth([]float64{0, 0, 50}))
	assert.Equal(t, maxGrowth, averageGrowth([]float64{100, 200, 400}))
	assert.Equal(t, minGrowth, averageGrowth([]float64{100, 50, 25}))
	assert.InDelta(t, 0.1, averageGrowth([]float64{100, 110, 121}), 1e-9)
}

func TestForecastTotality(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	engine := NewEngine(nil)

	for run := 0; run < 100; run++ {
		n := 2 + rng.Intn(19)
		start := 1990 + rng.Intn(30)
		exports := make([]float64, n)
		imports := make([]float64, n)
		for i := 0; i < n; i++ {
			exports[i] = 1 + rng.Float64()*999
			imports[i] = 1 + rng.Float64()*999
		}
		years := 1 + rng.Intn(5)
		history := series(start, exports, imports)

		preds, err := engine.Forecast(history, years)
		require.NoError(t, err, "run %d", run)
		require.Len(t, preds, years, "run %d", run)

		last := start + n - 1
		for i, p := range preds {
			y, ok := p.Year.Int()
			require.True(t, ok)
			assert.Equal(t, last+i+1, y, "run %d: years must continue without gaps", run)
			assert.GreaterOrEqual(t, p.Exports, float64(0))
			assert.GreaterOrEqual(t, p.Imports, float64(0))
			assert.GreaterOrEqual(t, p.Confidence, float64(0))
			assert.LessOrEqual(t, p.Confidence, float64(100))
		}
		assert.NoError(t, trade.ValidatePredictions(history, preds))
	}
}

func TestConfidenceInterval(t *testing.T) {
	lower, upper := ConfidenceInterval(100, 80)
	assert.Equal(t, float64(80), lower)
	assert.Equal(t, float64(120), upper)

	lower, upper = ConfidenceInterval(500, 100)
	assert.Equal(t, float64(500), lower)
	assert.Equal(t, float64(500), upper)
}

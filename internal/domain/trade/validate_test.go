package trade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/pkg/errors"
)

const validPayload = `{
  "summary": "India's trade expanded steadily.",
  "stats": {"totalVolume": "$1,170B", "peakYear": "2024", "balance": "Deficit ($270B)"},
  "chartData": [
    {"year": "2024", "exports": 450, "imports": 720},
    {"year": 2022, "exports": 450, "imports": 710},
    {"year": "2023", "exports": 430, "imports": 680}
  ],
  "topSectors": [{"name": "Petroleum", "value": 180, "percentage": 24}],
  "predictions": [
    {"year": "2025", "exports": 470, "imports": 750, "confidence": 80},
    {"year": "2026", "exports": 490, "imports": 780, "confidence": 70}
  ],
  "anomalies": [{"year": "2020", "title": "Lockdown", "type": "Disruption", "severity": "critical"}],
  "risks": [{"title": "Oil", "severity": "HIGH"}]
}`

func TestParseResultValid(t *testing.T) {
	r, err := ParseResult([]byte(validPayload))
	require.NoError(t, err)

	require.Len(t, r.ChartData, 3)
	assert.Equal(t, Year("2022"), r.ChartData[0].Year)
	assert.Equal(t, Year("2023"), r.ChartData[1].Year)
	assert.Equal(t, Year("2024"), r.ChartData[2].Year)
	assert.Len(t, r.Predictions, 2)
	require.Len(t, r.Anomalies, 1)
	assert.Equal(t, AnomalyDisruption, r.Anomalies[0].Type)
	assert.Equal(t, SeverityCritical, r.Anomalies[0].Severity)
	require.Len(t, r.Risks, 1)
	assert.Equal(t, RiskHigh, r.Risks[0].Severity)
	assert.Nil(t, r.AIInsights)
}

func TestParseResultStripsCodeFence(t *testing.T) {
	r, err := ParseResult([]byte("```json\n" + validPayload + "\n```"))
	require.NoError(t, err)
	assert.Equal(t, "India's trade expanded steadily.", r.Summary)
}

func TestParseResultRequiredFields(t *testing.T) {
	cases := map[string]string{
		"missing summary":   `{"stats": {}, "chartData": [{"year": "2020", "exports": 1, "imports": 1}]}`,
		"blank summary":     `{"summary": " ", "stats": {}, "chartData": [{"year": "2020", "exports": 1, "imports": 1}]}`,
		"missing stats":     `{"summary": "x", "chartData": [{"year": "2020", "exports": 1, "imports": 1}]}`,
		"empty chart":       `{"summary": "x", "stats": {}, "chartData": []}`,
		"non numeric year":  `{"summary": "x", "stats": {}, "chartData": [{"year": "FY20", "exports": 1, "imports": 1}]}`,
		"negative exports":  `{"summary": "x", "stats": {}, "chartData": [{"year": "2020", "exports": -1, "imports": 1}]}`,
		"not json":          `the model refused`,
		"wrong chart shape": `{"summary": "x", "stats": {}, "chartData": {"2020": 1}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResult([]byte(payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrSchemaViolation), err.Error())
		})
	}
}

func TestParseResultEmpty(t *testing.T) {
	_, err := ParseResult([]byte("   "))
	assert.ErrorIs(t, err, errors.ErrEmptyResponse)
}

func TestParseResultDerivesBlankStats(t *testing.T) {
	r, err := ParseResult([]byte(`{
		"summary": "x",
		"stats": {"totalVolume": "", "peakYear": "", "balance": "Deficit (large)"},
		"chartData": [{"year": "2020", "exports": 300, "imports": 400}, {"year": "2021", "exports": 420, "imports": 610}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "$1,030B", r.Stats.TotalVolume)
	assert.Equal(t, "2021", r.Stats.PeakYear)
	assert.Equal(t, "Deficit (large)", r.Stats.Balance)
}

func TestParseResultDropsInvalidOptionalBlocks(t *testing.T) {
	r, err := ParseResult([]byte(`{
		"summary": "x",
		"stats": {"totalVolume": "$1B", "peakYear": "2021", "balance": "Deficit ($1B)"},
		"chartData": [{"year": "2020", "exports": 1, "imports": 1}, {"year": "2021", "exports": 1, "imports": 2}],
		"predictions": [{"year": "2021", "exports": 1, "imports": 1, "confidence": 80}],
		"anomalies": [{"year": "2020", "title": "x", "type": "wobble", "severity": "High"}],
		"risks": [{"title": "x", "severity": "Extreme"}],
		"topSectors": [{"name": "Oil", "value": 1, "percentage": 140}],
		"opportunities": [{"title": "Pharma"}]
	}`))
	require.NoError(t, err)

	assert.Nil(t, r.Predictions)
	assert.Nil(t, r.Anomalies)
	assert.Nil(t, r.Risks)
	assert.Nil(t, r.TopSectors)
	assert.Len(t, r.Opportunities, 1)
}

func TestValidatePredictions(t *testing.T) {
	chart := []ChartPoint{{Year: "2023"}, {Year: "2024"}}

	assert.NoError(t, ValidatePredictions(chart, []Prediction{{Year: "2025", Confidence: 80}, {Year: "2027", Confidence: 60}}))
	assert.Error(t, ValidatePredictions(chart, []Prediction{{Year: "2024", Confidence: 80}}))
	assert.Error(t, ValidatePredictions(chart, []Prediction{{Year: "2026", Confidence: 80}, {Year: "2025", Confidence: 70}}))
	assert.Error(t, ValidatePredictions(chart, []Prediction{{Year: "2025", Confidence: 101}}))
}

package trade

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackResultShape(t *testing.T) {
	r := FallbackResult()

	assert.Equal(t, "$1,100B", r.Stats.TotalVolume)
	assert.Equal(t, "2024", r.Stats.PeakYear)
	assert.Equal(t, "Deficit ($250B)", r.Stats.Balance)
	require.Len(t, r.ChartData, 15)
	assert.Equal(t, Year("2010"), r.ChartData[0].Year)
	assert.Equal(t, Year("2024"), r.ChartData[14].Year)
	assert.Len(t, r.YearOverYearChange, 14)
	assert.Empty(t, r.Predictions)

	var sectorShare float64
	for _, s := range r.TopSectors {
		sectorShare += s.Percentage
	}
	assert.InDelta(t, 90, sectorShare, 0.001)
}

func TestFallbackResultSatisfiesContract(t *testing.T) {
	data, err := json.Marshal(FallbackResult())
	require.NoError(t, err)

	parsed, err := ParseResult(data)
	require.NoError(t, err)
	assert.Len(t, parsed.Anomalies, 3)
	assert.Len(t, parsed.Risks, 3)
	assert.NotNil(t, parsed.AIInsights)
}

func TestFallbackResultIsACopy(t *testing.T) {
	a := FallbackResult()
	a.ChartData[0].Exports = 0
	a.Summary = "changed"

	b := FallbackResult()
	assert.Equal(t, float64(220), b.ChartData[0].Exports)
	assert.NotEqual(t, "changed", b.Summary)
}

func TestResponseSchemaVariants(t *testing.T) {
	basic := ResponseSchema(SchemaBasic)
	extended := ResponseSchema(SchemaExtended)

	assert.Equal(t, []string{"summary", "stats", "chartData"}, basic.Required)
	assert.NotContains(t, basic.Properties, "predictions")
	for _, field := range []string{"predictions", "anomalies", "risks", "opportunities", "aiInsights"} {
		assert.Contains(t, extended.Properties, field)
	}
	assert.Equal(t, []string{"spike", "drop", "disruption"}, extended.Properties["anomalies"].Items.Properties["type"].Enum)
	assert.Len(t, extended.PropertyOrdering, len(extended.Properties))
}

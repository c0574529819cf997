package saved

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tradelens/internal/domain/trade"
)

func TestQueryTradeTypeOf(t *testing.T) {
	assert.Equal(t, QueryImport, QueryTradeTypeOf(trade.TradeTypeImports))
	assert.Equal(t, QueryExport, QueryTradeTypeOf(trade.TradeTypeExports))
	assert.Equal(t, QueryBoth, QueryTradeTypeOf(trade.TradeTypeBoth))
	assert.Equal(t, QueryBoth, QueryTradeTypeOf("sideways"))

	for _, tt := range []trade.TradeType{trade.TradeTypeImports, trade.TradeTypeExports, trade.TradeTypeBoth} {
		assert.Equal(t, tt, QueryTradeTypeOf(tt).TradeType())
	}
}

func TestNewQueryParams(t *testing.T) {
	p := NewQueryParams("", nil)
	assert.Equal(t, QueryBoth, p.TradeType)
	assert.Equal(t, trade.MinYear, p.FromYear)
	assert.Equal(t, trade.MaxYear, p.ToYear)
	assert.NotNil(t, p.Countries)
	assert.NotNil(t, p.Sectors)
	assert.True(t, p.Filters().IsDefault())

	p = NewQueryParams("gems", &trade.FilterSelection{TradeType: trade.TradeTypeExports, YearFrom: 2024, YearTo: 2019})
	assert.Equal(t, QueryExport, p.TradeType)
	assert.Equal(t, 2019, p.FromYear)
	assert.Equal(t, 2024, p.ToYear)
	assert.Equal(t, "gems", p.SearchQuery)
	assert.Equal(t, trade.TradeTypeExports, p.Filters().TradeType)
}

func TestUpdateInputEmpty(t *testing.T) {
	assert.True(t, UpdateInput{}.Empty())
	public := false
	assert.False(t, UpdateInput{IsPublic: &public}.Empty())
}

package analysis

import (
	"fmt"
	"strings"

	"tradelens/internal/domain/trade"
	"tradelens/pkg/templates"
)

const (
	instructionTemplate = "analysis/instruction"
	queryWriterTemplate = "analysis/query_writer"
)

type instructionData struct {
	Query         string
	Filters       []string
	Extended      bool
	ForecastYears int
	MinYear       int
	MaxYear       int
}

// ComposeInstruction builds the model instruction for a query. The query is
// embedded verbatim; an APPLIED FILTERS block is added only when at least
// one filter constrains the analysis.
func ComposeInstruction(query string, filters *trade.FilterSelection, variant trade.SchemaVariant) string {
	return templates.Get().MustRender(instructionTemplate, instructionData{
		Query:         query,
		Filters:       FilterLines(filters),
		Extended:      variant == trade.SchemaExtended,
		ForecastYears: DefaultForecastYears,
		MinYear:       trade.MinYear,
		MaxYear:       trade.MaxYear,
	})
}

// FilterLines renders the non-default parts of a selection as constraint
// sentences, in the order sectors, countries, trade type, year range.
func FilterLines(filters *trade.FilterSelection) []string {
	if filters == nil {
		return nil
	}
	f := filters.Normalize()

	var lines []string
	if len(f.Sectors) > 0 {
		lines = append(lines, "Focus on these sectors: "+strings.Join(f.Sectors, ", "))
	}
	if len(f.Countries) > 0 {
		lines = append(lines, "Focus on trade with these countries/regions: "+strings.Join(f.Countries, ", "))
	}
	switch f.TradeType {
	case trade.TradeTypeImports:
		lines = append(lines, "Focus ONLY on imports (not exports)")
	case trade.TradeTypeExports:
		lines = append(lines, "Focus ONLY on exports (not imports)")
	}
	if !f.HasDefaultYearRange() {
		lines = append(lines, fmt.Sprintf("Analyze data ONLY for the year range %d to %d", f.YearFrom, f.YearTo))
	}
	return lines
}

type queryWriterData struct {
	Sectors   []string
	Countries []string
	TradeType string
	YearFrom  int
	YearTo    int
}

// composeQueryPrompt builds the prompt for the filter-to-query writer
func composeQueryPrompt(filters trade.FilterSelection) string {
	f := filters.Normalize()
	tradeType := "imports and exports"
	if f.TradeType != trade.TradeTypeBoth {
		tradeType = string(f.TradeType) + " only"
	}
	return templates.Get().MustRender(queryWriterTemplate, queryWriterData{
		Sectors:   f.Sectors,
		Countries: f.Countries,
		TradeType: tradeType,
		YearFrom:  f.YearFrom,
		YearTo:    f.YearTo,
	})
}

package saved

import (
	"time"

	"github.com/google/uuid"

	"tradelens/internal/domain/trade"
)

// QueryTradeType is the singular trade type stored with saved queries
type QueryTradeType string

const (
	QueryImport QueryTradeType = "import"
	QueryExport QueryTradeType = "export"
	QueryBoth   QueryTradeType = "both"
)

// QueryTradeTypeOf maps a filter trade type to its stored form.
// Unknown values map to QueryBoth.
func QueryTradeTypeOf(t trade.TradeType) QueryTradeType {
	switch t {
	case trade.TradeTypeImports:
		return QueryImport
	case trade.TradeTypeExports:
		return QueryExport
	default:
		return QueryBoth
	}
}

// TradeType maps the stored form back to a filter trade type
func (q QueryTradeType) TradeType() trade.TradeType {
	switch q {
	case QueryImport:
		return trade.TradeTypeImports
	case QueryExport:
		return trade.TradeTypeExports
	default:
		return trade.TradeTypeBoth
	}
}

// QueryParams is the filter and search state that produced a saved analysis.
// Stored as JSONB; field names are shared with the dashboard.
type QueryParams struct {
	TradeType   QueryTradeType `json:"tradeType"`
	FromYear    int            `json:"fromYear"`
	ToYear      int            `json:"toYear"`
	Countries   []string       `json:"countries"`
	Sectors     []string       `json:"sectors"`
	SearchQuery string         `json:"searchQuery,omitempty"`
}

// NewQueryParams builds params from a query and an optional selection.
// A nil selection stores the domain defaults.
func NewQueryParams(query string, filters *trade.FilterSelection) QueryParams {
	f := trade.DefaultFilters()
	if filters != nil {
		f = filters.Normalize()
	}

	p := QueryParams{
		TradeType:   QueryTradeTypeOf(f.TradeType),
		FromYear:    f.YearFrom,
		ToYear:      f.YearTo,
		Countries:   f.Countries,
		Sectors:     f.Sectors,
		SearchQuery: query,
	}
	if p.Countries == nil {
		p.Countries = []string{}
	}
	if p.Sectors == nil {
		p.Sectors = []string{}
	}
	return p
}

// Filters rebuilds the selection the params were derived from
func (p QueryParams) Filters() trade.FilterSelection {
	return trade.FilterSelection{
		Sectors:   p.Sectors,
		Countries: p.Countries,
		TradeType: p.TradeType.TradeType(),
		YearFrom:  p.FromYear,
		YearTo:    p.ToYear,
	}.Normalize()
}

// SavedAnalysis is a user-owned snapshot of an analysis and its inputs
type SavedAnalysis struct {
	ID          uuid.UUID             `json:"id"`
	UserID      string                `json:"userId"`
	Title       string                `json:"title"`
	Description *string               `json:"description,omitempty"`
	QueryParams QueryParams           `json:"queryParams"`
	Results     *trade.AnalysisResult `json:"results,omitempty"`
	IsPublic    bool                  `json:"isPublic"`
	ViewCount   int                   `json:"viewCount"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// CreateInput is what a caller supplies to save an analysis
type CreateInput struct {
	UserID      string                 `json:"-"`
	Title       string                 `json:"title"`
	Description *string                `json:"description,omitempty"`
	Query       string                 `json:"query"`
	Filters     *trade.FilterSelection `json:"filters,omitempty"`
	Results     *trade.AnalysisResult  `json:"results,omitempty"`
	IsPublic    bool                   `json:"isPublic"`
}

// UpdateInput carries a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Title       *string               `json:"title,omitempty"`
	Description *string               `json:"description,omitempty"`
	Results     *trade.AnalysisResult `json:"results,omitempty"`
	IsPublic    *bool                 `json:"isPublic,omitempty"`
}

// Empty reports whether the update changes nothing
func (u UpdateInput) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Results == nil && u.IsPublic == nil
}

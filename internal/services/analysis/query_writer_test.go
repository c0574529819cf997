package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/internal/adapters/ai"
	"tradelens/internal/domain/trade"
	"tradelens/internal/events"
	"tradelens/pkg/errors"
)

func TestFallbackQuery(t *testing.T) {
	tests := []struct {
		name    string
		filters trade.FilterSelection
		want    string
	}{
		{
			name:    "all defaults",
			filters: trade.DefaultFilters(),
			want:    "Show me",
		},
		{
			name:    "zero value",
			filters: trade.FilterSelection{},
			want:    "Show me",
		},
		{
			name:    "sector and trade type",
			filters: trade.FilterSelection{Sectors: []string{"Electronics"}, TradeType: trade.TradeTypeImports, YearFrom: 2010, YearTo: 2025},
			want:    "Show me Electronics imports",
		},
		{
			name: "every filter",
			filters: trade.FilterSelection{
				Sectors:   []string{"Electronics", "Pharma"},
				Countries: []string{"China", "USA"},
				TradeType: trade.TradeTypeExports,
				YearFrom:  2015,
				YearTo:    2020,
			},
			want: "Show me Electronics, Pharma exports to/from China, USA from 2015 to 2020",
		},
		{
			name:    "countries only",
			filters: trade.FilterSelection{Countries: []string{"UAE"}},
			want:    "Show me to/from UAE",
		},
		{
			name:    "years only",
			filters: trade.FilterSelection{YearFrom: 2019, YearTo: 2021},
			want:    "Show me from 2019 to 2021",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackQuery(tt.filters))
		})
	}
}

func TestGenerateQuery_UsesModelAnswer(t *testing.T) {
	gen := &fakeGenerator{text: "\"What were India's electronics imports from China between 2015 and 2020?\"\nExtra commentary"}
	pub := &spyPublisher{}
	w := NewQueryWriter(gen, "gemini-2.5-flash", pub)

	filters := trade.FilterSelection{
		Sectors:   []string{"Electronics"},
		Countries: []string{"China"},
		TradeType: trade.TradeTypeImports,
		YearFrom:  2015,
		YearTo:    2020,
	}
	q := w.GenerateQuery(context.Background(), filters)
	assert.Equal(t, "What were India's electronics imports from China between 2015 and 2020?", q)

	require.Len(t, gen.calls, 1)
	req := gen.calls[0]
	assert.Equal(t, "gemini-2.5-flash", req.Model)
	assert.Equal(t, ai.ReasoningLow, req.Reasoning)
	assert.Nil(t, req.Schema)
	assert.False(t, req.WebSearch)
	assert.Contains(t, req.Prompt, "- Trade type: imports only")

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.ActivityQueryGenerated, pub.events[0].Type)
	assert.Equal(t, "model", pub.events[0].Source)
}

func TestGenerateQuery_FallsBack(t *testing.T) {
	filters := trade.FilterSelection{Sectors: []string{"Electronics"}, TradeType: trade.TradeTypeImports}

	tests := []struct {
		name string
		gen  ai.Generator
	}{
		{name: "error", gen: &fakeGenerator{err: errors.ErrExternal}},
		{name: "empty answer", gen: &fakeGenerator{text: " \n "}},
		{name: "only quotes", gen: &fakeGenerator{text: `""`}},
		{name: "too long", gen: &fakeGenerator{text: strings.Repeat("word ", 100)}},
		{name: "panic", gen: &fakeGenerator{fn: func(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
			panic("boom")
		}}},
		{name: "no generator", gen: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &spyPublisher{}
			w := NewQueryWriter(tt.gen, "gemini-2.5-flash", pub)

			q := w.GenerateQuery(context.Background(), filters)
			assert.Equal(t, "Show me Electronics imports", q)
			require.Len(t, pub.events, 1)
			assert.Equal(t, "fallback", pub.events[0].Source)
		})
	}
}

func TestCleanQuery(t *testing.T) {
	assert.Equal(t, "How did pharma exports grow?", cleanQuery("  'How did pharma exports grow?'  "))
	assert.Equal(t, "Trade with UAE", cleanQuery("Trade with UAE\nsecond line"))
	assert.Equal(t, "", cleanQuery(""))
	assert.Equal(t, "", cleanQuery(strings.Repeat("a", maxQueryLength+1)))
}

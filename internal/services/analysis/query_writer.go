package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradelens/internal/adapters/ai"
	"tradelens/internal/domain/trade"
	"tradelens/internal/events"
	"tradelens/internal/metrics"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
	"tradelens/pkg/templates"
)

const (
	queryWriterTimeout   = 15 * time.Second
	queryWriterMaxTokens = 256
	maxQueryLength       = 300
)

// QueryWriter turns a filter selection into a natural-language question
type QueryWriter struct {
	generator ai.Generator
	model     string
	timeout   time.Duration
	publisher events.Publisher
	log       *logger.Logger
}

// NewQueryWriter creates a writer backed by a lightweight model. A nil
// generator makes every call use the deterministic fallback.
func NewQueryWriter(generator ai.Generator, model string, publisher events.Publisher) *QueryWriter {
	if generator == nil {
		generator = ai.Unavailable{Provider: ai.ProviderNameGoogle}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &QueryWriter{
		generator: generator,
		model:     model,
		timeout:   queryWriterTimeout,
		publisher: publisher,
		log:       logger.Get().With("component", "query_writer", "provider", generator.Name()),
	}
}

// GenerateQuery never fails. A model error or an empty answer yields
// FallbackQuery(filters).
func (w *QueryWriter) GenerateQuery(ctx context.Context, filters trade.FilterSelection) string {
	query, err := w.fromModel(ctx, filters)
	source := "model"
	if err != nil {
		w.log.Debugw("Query writer fell back", "error", err)
		query = FallbackQuery(filters)
		source = "fallback"
	}
	metrics.QueryGenerations.WithLabelValues(source).Inc()

	ev := events.NewActivity(ctx, events.ActivityQueryGenerated)
	ev.Query = query
	ev.Source = source
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := w.publisher.PublishActivity(pubCtx, ev); err != nil {
		w.log.Debugw("Failed to publish activity", "error", err)
	}

	return query
}

func (w *QueryWriter) fromModel(ctx context.Context, filters trade.FilterSelection) (query string, err error) {
	defer func() {
		if r := recover(); r != nil {
			query, err = "", &panicError{value: r}
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	resp, err := w.generator.Generate(callCtx, ai.GenerateRequest{
		Model:           w.model,
		Prompt:          composeQueryPrompt(filters),
		Reasoning:       ai.ReasoningLow,
		MaxOutputTokens: queryWriterMaxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.ErrEmptyResponse
	}

	query = cleanQuery(resp.Text)
	if query == "" {
		return "", errors.ErrEmptyResponse
	}
	return query, nil
}

// cleanQuery keeps the first line of a model answer without wrapping
// quotes or control characters.
func cleanQuery(text string) string {
	q := templates.StripQuotes(templates.FirstLine(templates.SanitizeText(text)))
	if len(q) > maxQueryLength {
		return ""
	}
	return q
}

// FallbackQuery assembles "Show me" followed by the non-default filter
// terms in order: sectors, trade type, countries, year range. It is pure
// and total; an all-default selection yields "Show me".
func FallbackQuery(filters trade.FilterSelection) string {
	f := filters.Normalize()

	parts := []string{"Show me"}
	if len(f.Sectors) > 0 {
		parts = append(parts, strings.Join(f.Sectors, ", "))
	}
	if f.TradeType != trade.TradeTypeBoth {
		parts = append(parts, string(f.TradeType))
	}
	if len(f.Countries) > 0 {
		parts = append(parts, "to/from "+strings.Join(f.Countries, ", "))
	}
	if !f.HasDefaultYearRange() {
		parts = append(parts, fmt.Sprintf("from %d to %d", f.YearFrom, f.YearTo))
	}
	return strings.Join(parts, " ")
}

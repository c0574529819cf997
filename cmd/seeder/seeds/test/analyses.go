package test

import (
	"context"

	"tradelens/internal/domain/saved"
	"tradelens/internal/domain/trade"
	"tradelens/pkg/errors"
)

// UserID owns the test analyses
const UserID = "test-user"

// SeedAnalyses stores one private analysis without results
func SeedAnalyses(ctx context.Context, svc *saved.Service) error {
	filters := trade.DefaultFilters()
	_, err := svc.Create(ctx, saved.CreateInput{
		UserID:  UserID,
		Title:   "Seeded test analysis",
		Query:   "Show me India's trade",
		Filters: &filters,
	})
	return errors.Wrap(err, "seed test analysis")
}

package dev

import (
	"context"

	"tradelens/internal/domain/saved"
	"tradelens/internal/domain/trade"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// DevUserID owns the development analyses; send it as X-User-ID
const DevUserID = "dev-user"

// SeedAnalyses stores a few saved analyses built on the fallback dataset
func SeedAnalyses(ctx context.Context, svc *saved.Service) error {
	log := logger.Get()

	description := "Seeded for local development"
	inputs := []saved.CreateInput{
		{
			Query: "How have India's electronics imports from China changed?",
			Filters: &trade.FilterSelection{
				Sectors:   []string{"Electronics"},
				Countries: []string{"China"},
				TradeType: trade.TradeTypeImports,
				YearFrom:  2015,
				YearTo:    2024,
			},
			Description: &description,
			IsPublic:    true,
		},
		{
			Query: "Pharmaceutical exports to the United States",
			Filters: &trade.FilterSelection{
				Sectors:   []string{"Pharmaceuticals"},
				Countries: []string{"United States"},
				TradeType: trade.TradeTypeExports,
				YearFrom:  2018,
				YearTo:    2025,
			},
		},
		{
			Query: "Overall India trade balance",
		},
	}

	for _, in := range inputs {
		in.UserID = DevUserID
		in.Title = saved.DefaultTitle(in.Query, in.Filters)
		in.Results = trade.FallbackResult()

		a, err := svc.Create(ctx, in)
		if err != nil {
			return errors.Wrapf(err, "seed analysis %q", in.Title)
		}
		log.Infow("Created saved analysis", "id", a.ID, "title", a.Title)
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"time"

	"tradelens/cmd/seeder/seeds/dev"
	"tradelens/cmd/seeder/seeds/test"
	"tradelens/internal/adapters/config"
	"tradelens/internal/adapters/postgres"
	"tradelens/internal/domain/saved"
	pgrepo "tradelens/internal/repository/postgres"
	"tradelens/pkg/logger"
)

type seedFunc func(context.Context, *saved.Service) error

func main() {
	env := flag.String("env", "dev", "Environment: dev, test")
	dryRun := flag.Bool("dry-run", false, "List seed functions without executing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	log.Infow("Starting seeder",
		"environment", *env,
		"dry_run", *dryRun,
		"database", cfg.Postgres.Database,
	)

	funcs := getSeedFunctions(*env)
	if len(funcs) == 0 {
		log.Warnw("No seeds available for environment", "environment", *env)
		return
	}
	if *dryRun {
		log.Infow("✅ Dry-run mode: seed functions validated", "count", len(funcs))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := postgres.NewClient(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer client.Close()

	if err := pgrepo.EnsureSchema(ctx, client.DB()); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	svc := saved.NewService(pgrepo.NewSavedAnalysisRepository(client.DB()), cfg.Analysis.RecentLimit, cfg.Analysis.ListLimit)

	for i, fn := range funcs {
		log.Infow("Executing seed", "step", i+1, "total", len(funcs))
		if err := fn(ctx, svc); err != nil {
			log.Errorw("Failed to execute seed", "step", i+1, "error", err)
			return
		}
	}

	log.Info("✅ All seeds applied successfully")
}

// getSeedFunctions returns the seeds for an environment in execution order
func getSeedFunctions(env string) []seedFunc {
	switch env {
	case "dev":
		return []seedFunc{dev.SeedAnalyses}
	case "test":
		return []seedFunc{test.SeedAnalyses}
	default:
		return nil
	}
}

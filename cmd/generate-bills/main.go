// Command generate-bills runs bill generation once, for the current period or a
// comma separated list of periods.
//
//	generate-bills -periods 2024-09,2024-10
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"

	"github.com/kaskelas/backend/internal/audit"
	"github.com/kaskelas/backend/internal/config"
	"github.com/kaskelas/backend/internal/database"
	"github.com/kaskelas/backend/internal/logging"
	"github.com/kaskelas/backend/internal/models"
	"github.com/kaskelas/backend/internal/repository/postgres"
	"github.com/kaskelas/backend/internal/services"
)

func main() {
	periodsFlag := flag.String("periods", "", "comma separated YYYY-MM periods; empty bills the current month")
	envFile := flag.String("env", ".env", "path to the env file")
	flag.Parse()

	logging.Setup()
	config.Init(*envFile)

	periods, err := parsePeriods(*periodsFlag)
	if err != nil {
		slog.Error("invalid -periods", "error", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := database.Open(ctx, database.GetConfig())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// No cache here; cached aggregates age out on their TTL.
	generator := services.NewBillGenerator(postgres.New(db), nil, cfg.Billing, audit.NewLogger(slog.Default()), nil)

	var results []services.GenerationResult
	if len(periods) == 0 {
		result, err := generator.GenerateCurrent(ctx)
		if err != nil {
			slog.Error("bill generation failed", "error", err)
			os.Exit(1)
		}
		results = append(results, result)
	} else {
		results, err = generator.Backfill(ctx, periods)
		if err != nil {
			slog.Error("bill backfill failed", "error", err, "completed", len(results))
			os.Exit(1)
		}
	}

	failed := false
	for _, r := range results {
		slog.Info("period done",
			"period", models.Period{Month: r.Month, Year: r.Year}.String(),
			"created", r.Created,
			"skipped", r.Skipped,
			"failed", r.Failed,
			"excluded", r.Excluded,
		)
		failed = failed || r.Failed > 0
	}
	if failed {
		os.Exit(1)
	}
}

func parsePeriods(s string) ([]models.Period, error) {
	var periods []models.Period
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := models.ParsePeriod(part)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, nil
}

package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kzich/nudining/internal/config"
	"github.com/kzich/nudining/internal/repository/mongodb"
	"github.com/kzich/nudining/internal/repository/sheets"
	"github.com/kzich/nudining/internal/scraper"
	"github.com/kzich/nudining/pkg/logger"
)

// One-shot scrape batch. Exits non-zero only when the run aborted: a scrape
// step that merely skipped its row, table or meal period is reported in the
// run summary instead.
func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.NewBatch())
	defer func() { _ = baseLogger.Sync() }()

	repo, err := mongodb.New(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	var sheetRepo sheets.Repository
	if cfg.Sheets.SpreadsheetID != "" {
		sheetRepo, err = sheets.NewReportSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
	}

	runner := scraper.NewRunner(repo, repo, sheetRepo, cfg.Scraper, baseLogger.Named("scraper"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := runner.RunOnce(ctx); err != nil {
		baseLogger.Error("scrape run aborted", zap.Error(err))
		_ = baseLogger.Sync()
		os.Exit(1)
	}
}

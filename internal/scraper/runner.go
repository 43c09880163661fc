package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kzich/nudining/internal/config"
	"github.com/kzich/nudining/internal/domain/models"
	"github.com/kzich/nudining/internal/repository/sheets"
)

// RunSink persists scrape run summaries.
type RunSink interface {
	SaveScrapeReport(ctx context.Context, report models.ScrapeReport) error
}

// Runner owns one complete scrape batch: it opens a fresh browser session,
// runs the extractor against it, and records the run summary. The session
// is torn down on every exit path.
type Runner struct {
	store  Catalog
	runs   RunSink
	sheet  sheets.Repository
	cfg    config.ScraperConfig
	logger *zap.Logger
}

// NewRunner wires a batch runner. sheet may be nil when report sheet output
// is not configured.
func NewRunner(store Catalog, runs RunSink, sheet sheets.Repository, cfg config.ScraperConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:  store,
		runs:   runs,
		sheet:  sheet,
		cfg:    cfg,
		logger: logger,
	}
}

// RunOnce executes a single scrape batch. A non-nil error means the run was
// aborted by a fatal extraction or storage failure; skipped steps inside
// the run are reported through the summary instead.
func (r *Runner) RunOnce(ctx context.Context) error {
	session, err := NewSession(ctx, r.cfg, r.logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPageNotReady, err)
	}
	defer session.Close()

	extractor := NewExtractor(session, r.store, r.cfg, r.logger)
	report, err := extractor.Run(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("scrape run finished",
		zap.Int("items_seen", report.ItemsSeen),
		zap.Int("items_new", report.ItemsNew),
		zap.Int("steps_skipped", report.StepsSkipped),
		zap.Float64("duration_seconds", report.Duration))

	if r.runs != nil {
		if err := r.runs.SaveScrapeReport(ctx, report); err != nil {
			r.logger.Error("failed saving scrape report", zap.Error(err))
		}
	}
	if r.sheet != nil {
		if err := r.sheet.AppendReport(ctx, report); err != nil {
			r.logger.Error("failed appending scrape report to sheet", zap.Error(err))
		}
	}
	return nil
}

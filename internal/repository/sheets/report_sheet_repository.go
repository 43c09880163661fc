package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/kzich/nudining/internal/config"
	"github.com/kzich/nudining/internal/domain/models"
)

const reportRange = "ScrapeRuns!A:F"

// Repository is the operational report sink for scrape runs.
type Repository interface {
	AppendReport(ctx context.Context, report models.ScrapeReport) error
}

// ReportSheetRepository appends one row per scrape run to a Google Sheet,
// giving operators a glanceable history next to the structured logs.
type ReportSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewReportSheetRepository builds a Google Sheets backed report sink.
func NewReportSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &ReportSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// AppendReport writes the run summary as a single sheet row.
func (r *ReportSheetRepository) AppendReport(ctx context.Context, report models.ScrapeReport) error {
	row := []interface{}{
		report.Date.Format("2006-01-02"),
		report.ItemsSeen,
		report.ItemsNew,
		report.StepsSkipped,
		fmt.Sprintf("%.1fs", report.Duration),
		strings.Join(report.Halls, "; "),
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{row}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, reportRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append report into range %s: %w", reportRange, err)
	}

	r.logger.Debug("scrape report appended to sheet", zap.String("range", reportRange))
	return nil
}

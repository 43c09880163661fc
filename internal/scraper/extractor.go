package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kzich/nudining/internal/config"
	"github.com/kzich/nudining/internal/domain/models"
)

// ErrPageNotReady indicates the menu page never reached a scrapeable state.
// Unlike row/table/period failures it aborts the whole run.
var ErrPageNotReady = errors.New("menu page not ready")

// Selectors for the menu page UI. The page has no API; these track its
// current markup and break when the portal is redesigned.
const (
	dropdownButtonSel = ".dropdown-button-content"
	dropdownItemSel   = ".dropdown-item"
	navLinkSel        = ".nav-link"
	menuTableSel      = `table[role="table"]`
	menuItemCellSel   = `td[data-label="Menu item"]`
	portionCellSel    = `td[data-label="Portion"]`
	modalSel          = `div[id^="nutritional-modal"]`
)

// Meal period tabs the page exposes. A hall without one of these simply
// skips it.
var mealPeriods = []string{"Breakfast", "Lunch", "Dinner", "Everyday"}

// Catalog is the storage surface the extractor writes to.
type Catalog interface {
	Exists(ctx context.Context, title string) (bool, error)
	InsertIfAbsent(ctx context.Context, item models.MenuItem) (bool, error)
	ResetDailyIndex(ctx context.Context) error
	AddDailyTitle(ctx context.Context, title string) error
}

// Extractor walks the menu page's UI state machine, hall by hall, and emits
// one catalog draft per menu row. Failures below the page level are logged
// and skip to the next sibling; they never abort the run.
type Extractor struct {
	page   Page
	store  Catalog
	cfg    config.ScraperConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewExtractor wires an extractor over an open page session.
func NewExtractor(page Page, store Catalog, cfg config.ScraperConfig, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		page:   page,
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes one full scrape. The daily index is reset first, then every
// configured dining hall is visited. A non-nil error means the run was
// aborted before extraction could start; anything later degrades to skips.
func (e *Extractor) Run(ctx context.Context) (models.ScrapeReport, error) {
	start := e.now()
	report := models.ScrapeReport{
		Date:  start.UTC(),
		Halls: append([]string{}, e.cfg.DiningHalls...),
	}

	if err := e.store.ResetDailyIndex(ctx); err != nil {
		return report, err
	}

	if err := e.page.Navigate(ctx, e.cfg.MenuURL); err != nil {
		return report, fmt.Errorf("%w: navigate %s: %v", ErrPageNotReady, e.cfg.MenuURL, err)
	}
	if err := e.page.WaitVisible(ctx, dropdownButtonSel); err != nil {
		return report, fmt.Errorf("%w: dining hall selector never appeared: %v", ErrPageNotReady, err)
	}

	for _, hall := range e.cfg.DiningHalls {
		if err := e.scrapeHall(ctx, hall, &report); err != nil {
			report.StepsSkipped++
			e.logger.Warn("skipping dining hall", zap.String("hall", hall), zap.Error(err))
		}
	}

	report.Duration = e.now().Sub(start).Seconds()
	return report, nil
}

func (e *Extractor) scrapeHall(ctx context.Context, hall string, report *models.ScrapeReport) error {
	if err := e.page.Click(ctx, Scope{}, dropdownButtonSel); err != nil {
		return fmt.Errorf("open dining hall dropdown: %w", err)
	}
	if err := e.page.WaitVisible(ctx, dropdownItemSel); err != nil {
		return fmt.Errorf("dining hall dropdown never opened: %w", err)
	}
	if err := e.page.ClickByText(ctx, dropdownItemSel, hall); err != nil {
		return fmt.Errorf("select dining hall: %w", err)
	}

	e.logger.Info("processing dining hall", zap.String("hall", hall))

	for _, period := range mealPeriods {
		if err := e.scrapePeriod(ctx, hall, period, report); err != nil {
			report.StepsSkipped++
			e.logger.Warn("skipping meal period",
				zap.String("hall", hall),
				zap.String("period", period),
				zap.Error(err))
		}
	}
	return nil
}

func (e *Extractor) scrapePeriod(ctx context.Context, hall, period string, report *models.ScrapeReport) error {
	if err := e.page.WaitVisible(ctx, navLinkSel); err != nil {
		return fmt.Errorf("meal period tabs never appeared: %w", err)
	}

	if err := e.page.ClickByText(ctx, navLinkSel, period); err != nil {
		if errors.Is(err, ErrElementNotFound) {
			// Not every hall serves every period.
			e.logger.Info("meal period not offered",
				zap.String("hall", hall),
				zap.String("period", period))
			return nil
		}
		return fmt.Errorf("select meal period: %w", err)
	}

	if err := e.page.WaitVisible(ctx, menuTableSel); err != nil {
		return fmt.Errorf("menu tables never appeared: %w", err)
	}

	tables, err := e.page.Count(ctx, Scope{}, menuTableSel)
	if err != nil {
		return fmt.Errorf("count menu tables: %w", err)
	}

	for t := 0; t < tables; t++ {
		if err := e.scrapeTable(ctx, hall, period, t, report); err != nil {
			report.StepsSkipped++
			e.logger.Warn("skipping table",
				zap.String("hall", hall),
				zap.String("period", period),
				zap.Int("table", t),
				zap.Error(err))
		}
	}
	return nil
}

func (e *Extractor) scrapeTable(ctx context.Context, hall, period string, table int, report *models.ScrapeReport) error {
	tableScope := Scope{Sel: menuTableSel, Index: table}

	caption, err := e.page.Text(ctx, tableScope, "caption")
	if err != nil {
		return fmt.Errorf("read table caption: %w", err)
	}

	rows, err := e.page.Count(ctx, tableScope, "tbody tr")
	if err != nil {
		return fmt.Errorf("count table rows: %w", err)
	}

	for r := 0; r < rows; r++ {
		if err := e.scrapeRow(ctx, hall, period, caption, tableScope, r, report); err != nil {
			report.StepsSkipped++
			e.logger.Warn("skipping row",
				zap.String("hall", hall),
				zap.String("caption", caption),
				zap.Int("row", r),
				zap.Error(err))
		}
	}
	return nil
}

func (e *Extractor) scrapeRow(ctx context.Context, hall, period, caption string, tableScope Scope, row int, report *models.ScrapeReport) error {
	rowSel := fmt.Sprintf("tbody tr:nth-child(%d)", row+1)

	title, err := e.page.Text(ctx, tableScope, rowSel+" "+menuItemCellSel+" strong")
	if err != nil {
		return fmt.Errorf("read title: %w", err)
	}
	if title == "" {
		return errors.New("row has an empty title")
	}

	// The daily index records presence, not content, so the title goes in
	// before the existence check and stays there even when the rest of the
	// row is skipped.
	if err := e.store.AddDailyTitle(ctx, title); err != nil {
		return fmt.Errorf("record daily title: %w", err)
	}
	report.ItemsSeen++

	exists, err := e.store.Exists(ctx, title)
	if err != nil {
		return fmt.Errorf("check existing item: %w", err)
	}
	if exists {
		e.logger.Debug("item already cataloged", zap.String("title", title))
		return nil
	}

	portion, err := e.page.Text(ctx, tableScope, rowSel+" "+portionCellSel+" div")
	if err != nil {
		return fmt.Errorf("read portion: %w", err)
	}

	srcs, err := e.page.Attrs(ctx, tableScope, rowSel+" img", "src")
	if err != nil {
		return fmt.Errorf("read label icons: %w", err)
	}
	labels := make([]string, 0, len(srcs))
	for _, src := range srcs {
		if label, ok := MatchLabel(src); ok {
			labels = append(labels, label)
		}
	}

	item := models.MenuItem{
		Title:           title,
		DiningHall:      hall,
		MealPeriod:      period,
		TableCaption:    caption,
		PortionSize:     portion,
		NutritionalInfo: map[string]string{},
		Labels:          labels,
	}

	if err := e.readModal(ctx, tableScope, rowSel, item.NutritionalInfo); err != nil {
		// A broken modal still leaves a usable draft: title and portion go
		// into the catalog with no nutrition facts.
		report.StepsSkipped++
		e.logger.Warn("nutrition modal unreadable", zap.String("title", title), zap.Error(err))
	}

	inserted, err := e.store.InsertIfAbsent(ctx, item)
	if err != nil {
		return fmt.Errorf("store item: %w", err)
	}
	if inserted {
		report.ItemsNew++
		e.logger.Info("cataloged new item",
			zap.String("title", title),
			zap.String("hall", hall),
			zap.String("period", period))
	}
	return nil
}

func (e *Extractor) readModal(ctx context.Context, tableScope Scope, rowSel string, info map[string]string) error {
	if err := e.page.Click(ctx, tableScope, rowSel+" "+menuItemCellSel+" button"); err != nil {
		return fmt.Errorf("open nutrition modal: %w", err)
	}
	// A modal left open covers the table and breaks every later row, so
	// closing is attempted no matter how reading went.
	defer func() {
		if err := e.page.Click(ctx, Scope{}, modalSel+" button.close"); err != nil {
			e.logger.Warn("failed closing nutrition modal", zap.Error(err))
		}
	}()

	if err := e.page.WaitVisible(ctx, modalSel); err != nil {
		return fmt.Errorf("nutrition modal never appeared: %w", err)
	}

	lines, err := e.page.Texts(ctx, Scope{}, modalSel+" ul li")
	if err != nil {
		return fmt.Errorf("read nutrition lines: %w", err)
	}

	for _, line := range lines {
		name, amount, ok := ParseNutritionLine(line)
		if !ok {
			e.logger.Debug("dropping unparsable nutrition line", zap.String("line", line))
			continue
		}
		info[name] = amount
	}
	return nil
}

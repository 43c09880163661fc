package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzich/nudining/internal/config"
	"github.com/kzich/nudining/internal/domain/models"
)

type fakeRow struct {
	title      string
	portion    string
	icons      []string
	nutrition  []string
	modalFails bool
}

type fakeTable struct {
	caption string
	rows    []fakeRow
}

// fakePage scripts the menu page: one dropdown of halls, nav links per
// meal period, and tables with rows and nutrition modals.
type fakePage struct {
	halls   []string
	periods map[string][]fakeTable

	selectorNeverAppears bool

	currentHall   string
	currentPeriod string
	openModal     *fakeRow
}

func (p *fakePage) tables() []fakeTable {
	if p.currentPeriod == "" {
		return nil
	}
	return p.periods[p.currentPeriod]
}

func (p *fakePage) Navigate(_ context.Context, _ string) error { return nil }

func (p *fakePage) WaitVisible(_ context.Context, sel string) error {
	if sel == dropdownButtonSel && p.selectorNeverAppears {
		return errors.New("timed out waiting for selector")
	}
	if sel == modalSel && p.openModal == nil {
		return errors.New("timed out waiting for modal")
	}
	return nil
}

func (p *fakePage) ClickByText(_ context.Context, sel, text string) error {
	switch sel {
	case dropdownItemSel:
		for _, hall := range p.halls {
			if hall == text {
				p.currentHall = hall
				return nil
			}
		}
		return fmt.Errorf("hall %q: %w", text, ErrElementNotFound)
	case navLinkSel:
		if _, ok := p.periods[text]; ok {
			p.currentPeriod = text
			return nil
		}
		return fmt.Errorf("period %q: %w", text, ErrElementNotFound)
	}
	return fmt.Errorf("unexpected selector %q: %w", sel, ErrElementNotFound)
}

func (p *fakePage) Click(_ context.Context, scope Scope, sel string) error {
	if scope.Sel == "" && sel == dropdownButtonSel {
		return nil
	}
	if scope.Sel == "" && strings.HasPrefix(sel, modalSel) {
		if p.openModal == nil {
			return fmt.Errorf("no open modal: %w", ErrElementNotFound)
		}
		p.openModal = nil
		return nil
	}
	if scope.Sel == menuTableSel && strings.Contains(sel, "button") {
		row, err := p.row(scope, sel)
		if err != nil {
			return err
		}
		if row.modalFails {
			return errors.New("nutrition button not interactable")
		}
		p.openModal = row
		return nil
	}
	return fmt.Errorf("unexpected click %q in %q: %w", sel, scope.Sel, ErrElementNotFound)
}

func (p *fakePage) Count(_ context.Context, scope Scope, sel string) (int, error) {
	if scope.Sel == "" && sel == menuTableSel {
		return len(p.tables()), nil
	}
	if scope.Sel == menuTableSel && sel == "tbody tr" {
		tables := p.tables()
		if scope.Index >= len(tables) {
			return 0, ErrElementNotFound
		}
		return len(tables[scope.Index].rows), nil
	}
	return 0, fmt.Errorf("unexpected count %q: %w", sel, ErrElementNotFound)
}

func (p *fakePage) Text(_ context.Context, scope Scope, sel string) (string, error) {
	if scope.Sel == menuTableSel && sel == "caption" {
		tables := p.tables()
		if scope.Index >= len(tables) {
			return "", ErrElementNotFound
		}
		return tables[scope.Index].caption, nil
	}
	row, err := p.row(scope, sel)
	if err != nil {
		return "", err
	}
	if strings.Contains(sel, "strong") {
		return row.title, nil
	}
	if strings.Contains(sel, portionCellSel) {
		return row.portion, nil
	}
	return "", fmt.Errorf("unexpected text %q: %w", sel, ErrElementNotFound)
}

func (p *fakePage) Texts(_ context.Context, scope Scope, sel string) ([]string, error) {
	if scope.Sel == "" && strings.HasPrefix(sel, modalSel) {
		if p.openModal == nil {
			return nil, fmt.Errorf("no open modal: %w", ErrElementNotFound)
		}
		return p.openModal.nutrition, nil
	}
	return nil, fmt.Errorf("unexpected texts %q: %w", sel, ErrElementNotFound)
}

func (p *fakePage) Attrs(_ context.Context, scope Scope, sel, attr string) ([]string, error) {
	row, err := p.row(scope, sel)
	if err != nil {
		return nil, err
	}
	if attr == "src" {
		return row.icons, nil
	}
	return nil, fmt.Errorf("unexpected attr %q: %w", attr, ErrElementNotFound)
}

func (p *fakePage) row(scope Scope, sel string) (*fakeRow, error) {
	tables := p.tables()
	if scope.Sel != menuTableSel || scope.Index >= len(tables) {
		return nil, fmt.Errorf("no table at index %d: %w", scope.Index, ErrElementNotFound)
	}
	var n int
	if _, err := fmt.Sscanf(sel, "tbody tr:nth-child(%d)", &n); err != nil {
		return nil, fmt.Errorf("bad row selector %q: %w", sel, ErrElementNotFound)
	}
	rows := tables[scope.Index].rows
	if n < 1 || n > len(rows) {
		return nil, fmt.Errorf("no row %d: %w", n, ErrElementNotFound)
	}
	return &rows[n-1], nil
}

type memCatalog struct {
	items map[string]models.MenuItem
	daily []string
}

func newMemCatalog() *memCatalog {
	return &memCatalog{items: map[string]models.MenuItem{}}
}

func (c *memCatalog) Exists(_ context.Context, title string) (bool, error) {
	_, ok := c.items[title]
	return ok, nil
}

func (c *memCatalog) InsertIfAbsent(_ context.Context, item models.MenuItem) (bool, error) {
	if _, ok := c.items[item.Title]; ok {
		return false, nil
	}
	c.items[item.Title] = item
	return true, nil
}

func (c *memCatalog) ResetDailyIndex(_ context.Context) error {
	c.daily = nil
	return nil
}

func (c *memCatalog) AddDailyTitle(_ context.Context, title string) error {
	c.daily = append(c.daily, title)
	return nil
}

func testScraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		MenuURL:     "https://dining.example/menu",
		DiningHalls: []string{"Stetson East"},
	}
}

func TestExtractorRun(t *testing.T) {
	page := &fakePage{
		halls: []string{"Stetson East"},
		periods: map[string][]fakeTable{
			"Lunch": {{
				caption: "Homestyle",
				rows: []fakeRow{
					{
						title:   "Pancakes",
						portion: "3 each",
						icons:   []string{"https://www.nudining.com/img/icon_vegetarian.png"},
						nutrition: []string{
							"Calories: 150 calories",
							"Protein (g): less than 1 gram",
						},
					},
					{
						title:     "Grilled Chicken",
						portion:   "4 oz",
						icons:     []string{"https://nudining.com/img/icon_protein.png", "https://nudining.com/img/spinner.gif"},
						nutrition: []string{"Protein (g): 32g", "not a nutrition line"},
					},
				},
			}},
		},
	}
	store := newMemCatalog()
	extractor := NewExtractor(page, store, testScraperConfig(), nil)

	report, err := extractor.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.ItemsSeen)
	assert.Equal(t, 2, report.ItemsNew)
	assert.Equal(t, []string{"Pancakes", "Grilled Chicken"}, store.daily)

	pancakes := store.items["Pancakes"]
	assert.Equal(t, "Stetson East", pancakes.DiningHall)
	assert.Equal(t, "Lunch", pancakes.MealPeriod)
	assert.Equal(t, "Homestyle", pancakes.TableCaption)
	assert.Equal(t, "3 each", pancakes.PortionSize)
	assert.Equal(t, []string{"vegan"}, pancakes.Labels)
	assert.Equal(t, map[string]string{
		"Calories":    "150 calories",
		"Protein (g)": "less than 1 gram",
	}, pancakes.NutritionalInfo)
	assert.Zero(t, pancakes.Rating)
	assert.Zero(t, pancakes.RatingCount)

	chicken := store.items["Grilled Chicken"]
	assert.Equal(t, []string{"protein"}, chicken.Labels)
	// The unparsable line is dropped, not fatal.
	assert.Equal(t, map[string]string{"Protein (g)": "32g"}, chicken.NutritionalInfo)
}

func TestExtractorModalFailureKeepsDraft(t *testing.T) {
	page := &fakePage{
		halls: []string{"Stetson East"},
		periods: map[string][]fakeTable{
			"Dinner": {{
				caption: "Grill",
				rows: []fakeRow{
					{title: "Mystery Meat", portion: "1 serving", modalFails: true},
					{title: "Rice", portion: "1 cup", nutrition: []string{"Calories: 200 calories"}},
				},
			}},
		},
	}
	store := newMemCatalog()
	extractor := NewExtractor(page, store, testScraperConfig(), nil)

	report, err := extractor.Run(context.Background())
	require.NoError(t, err)

	// The broken modal still yields a stored draft with empty nutrition,
	// and the following row is unaffected.
	mystery := store.items["Mystery Meat"]
	assert.Equal(t, "Mystery Meat", mystery.Title)
	assert.Equal(t, "1 serving", mystery.PortionSize)
	assert.Empty(t, mystery.NutritionalInfo)

	assert.Contains(t, store.items, "Rice")
	assert.Equal(t, []string{"Mystery Meat", "Rice"}, store.daily)
	assert.Equal(t, 1, report.StepsSkipped)
}

func TestExtractorExistingItemStillIndexed(t *testing.T) {
	page := &fakePage{
		halls: []string{"Stetson East"},
		periods: map[string][]fakeTable{
			"Lunch": {{
				caption: "Homestyle",
				rows:    []fakeRow{{title: "Pancakes", portion: "3 each"}},
			}},
		},
	}
	store := newMemCatalog()
	store.items["Pancakes"] = models.MenuItem{Title: "Pancakes", Rating: 12, RatingCount: 3}
	extractor := NewExtractor(page, store, testScraperConfig(), nil)

	report, err := extractor.Run(context.Background())
	require.NoError(t, err)

	// The daily index records presence even though extraction was skipped,
	// and the stored item keeps its ratings.
	assert.Equal(t, []string{"Pancakes"}, store.daily)
	assert.Equal(t, float64(12), store.items["Pancakes"].Rating)
	assert.Equal(t, int64(3), store.items["Pancakes"].RatingCount)
	assert.Equal(t, 1, report.ItemsSeen)
	assert.Equal(t, 0, report.ItemsNew)
}

func TestExtractorSkipsMissingPeriods(t *testing.T) {
	page := &fakePage{
		halls: []string{"Stetson East"},
		periods: map[string][]fakeTable{
			"Everyday": {{
				caption: "Salad Bar",
				rows:    []fakeRow{{title: "Greens", portion: "1 bowl"}},
			}},
		},
	}
	store := newMemCatalog()
	extractor := NewExtractor(page, store, testScraperConfig(), nil)

	report, err := extractor.Run(context.Background())
	require.NoError(t, err)

	// Breakfast/Lunch/Dinner tabs are absent; only Everyday yields items
	// and the absences are not failures.
	assert.Equal(t, []string{"Greens"}, store.daily)
	assert.Equal(t, 0, report.StepsSkipped)
}

func TestExtractorUnknownHallSkipped(t *testing.T) {
	page := &fakePage{
		halls:   []string{"Stetson East"},
		periods: map[string][]fakeTable{},
	}
	store := newMemCatalog()
	cfg := testScraperConfig()
	cfg.DiningHalls = []string{"Closed Hall", "Stetson East"}
	extractor := NewExtractor(page, store, cfg, nil)

	report, err := extractor.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.StepsSkipped)
}

func TestExtractorFatalWhenPageNeverReady(t *testing.T) {
	page := &fakePage{selectorNeverAppears: true}
	store := newMemCatalog()
	extractor := NewExtractor(page, store, testScraperConfig(), nil)

	_, err := extractor.Run(context.Background())
	assert.ErrorIs(t, err, ErrPageNotReady)
}

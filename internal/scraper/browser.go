package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kzich/nudining/internal/config"
)

// ErrElementNotFound indicates a selector (or text match) produced nothing
// within the bounded wait.
var ErrElementNotFound = errors.New("element not found")

// Session is a scoped browser session implementing Page on top of chromedp.
// Callers own its lifecycle: every exit path must end in Close, which tears
// down the browser process regardless of how the run ended.
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
	timeout time.Duration
	logger  *zap.Logger
}

// NewSession launches a browser and verifies it is responsive.
func NewSession(ctx context.Context, cfg config.ScraperConfig, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:     taskCtx,
		cancels: []context.CancelFunc{taskCancel, allocCancel},
		timeout: cfg.WaitTimeout,
		logger:  logger,
	}

	// The menu page occasionally throws browser dialogs; accept them so a
	// stray confirm() cannot stall the whole batch.
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		if _, ok := ev.(*cdppage.EventJavascriptDialogOpening); ok {
			go func() {
				if err := chromedp.Run(taskCtx, cdppage.HandleJavaScriptDialog(true)); err != nil {
					logger.Warn("failed dismissing browser dialog", zap.Error(err))
				}
			}()
		}
	})

	if err := s.run(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return s, nil
}

// Close tears down the browser session.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// run executes chromedp actions against the session under the bounded wait
// timeout.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads the given URL.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

// WaitVisible blocks until sel is visible or the bounded wait elapses.
func (s *Session) WaitVisible(ctx context.Context, sel string) error {
	return s.run(ctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func rootExpr(scope Scope) string {
	if scope.Sel == "" {
		return "document"
	}
	return fmt.Sprintf("document.querySelectorAll(%q)[%d]", scope.Sel, scope.Index)
}

type evalResult struct {
	Found  bool     `json:"found"`
	Value  string   `json:"value"`
	Values []string `json:"values"`
	Count  int      `json:"count"`
}

// ClickByText clicks the first element matching sel whose trimmed text
// equals text exactly, scrolling it into view first.
func (s *Session) ClickByText(ctx context.Context, sel, text string) error {
	js := fmt.Sprintf(`(() => {
		const el = Array.from(document.querySelectorAll(%q)).find(e => e.textContent.trim() === %q);
		if (!el) { return {found: false}; }
		el.scrollIntoView({block: "center"});
		el.click();
		return {found: true};
	})()`, sel, text)

	var res evalResult
	if err := s.run(ctx, chromedp.Evaluate(js, &res)); err != nil {
		return err
	}
	if !res.Found {
		return fmt.Errorf("click %q with text %q: %w", sel, text, ErrElementNotFound)
	}
	return nil
}

// Click clicks the first match of sel within the scope.
func (s *Session) Click(ctx context.Context, scope Scope, sel string) error {
	js := fmt.Sprintf(`(() => {
		const root = %s;
		const el = root ? root.querySelector(%q) : null;
		if (!el) { return {found: false}; }
		el.scrollIntoView({block: "center"});
		el.click();
		return {found: true};
	})()`, rootExpr(scope), sel)

	var res evalResult
	if err := s.run(ctx, chromedp.Evaluate(js, &res)); err != nil {
		return err
	}
	if !res.Found {
		return fmt.Errorf("click %q in scope %q: %w", sel, scope.Sel, ErrElementNotFound)
	}
	return nil
}

// Count returns the number of matches of sel within the scope.
func (s *Session) Count(ctx context.Context, scope Scope, sel string) (int, error) {
	js := fmt.Sprintf(`(() => {
		const root = %s;
		if (!root) { return {found: false, count: 0}; }
		return {found: true, count: root.querySelectorAll(%q).length};
	})()`, rootExpr(scope), sel)

	var res evalResult
	if err := s.run(ctx, chromedp.Evaluate(js, &res)); err != nil {
		return 0, err
	}
	if !res.Found {
		return 0, fmt.Errorf("count %q in scope %q: %w", sel, scope.Sel, ErrElementNotFound)
	}
	return res.Count, nil
}

// Text returns the trimmed text content of the first match of sel.
func (s *Session) Text(ctx context.Context, scope Scope, sel string) (string, error) {
	js := fmt.Sprintf(`(() => {
		const root = %s;
		const el = root ? root.querySelector(%q) : null;
		if (!el) { return {found: false, value: ""}; }
		return {found: true, value: el.textContent.trim()};
	})()`, rootExpr(scope), sel)

	var res evalResult
	if err := s.run(ctx, chromedp.Evaluate(js, &res)); err != nil {
		return "", err
	}
	if !res.Found {
		return "", fmt.Errorf("text of %q in scope %q: %w", sel, scope.Sel, ErrElementNotFound)
	}
	return res.Value, nil
}

// Texts returns the trimmed text content of every match of sel.
func (s *Session) Texts(ctx context.Context, scope Scope, sel string) ([]string, error) {
	js := fmt.Sprintf(`(() => {
		const root = %s;
		if (!root) { return {found: false, values: []}; }
		return {found: true, values: Array.from(root.querySelectorAll(%q)).map(e => e.textContent.trim())};
	})()`, rootExpr(scope), sel)

	var res evalResult
	if err := s.run(ctx, chromedp.Evaluate(js, &res)); err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, fmt.Errorf("texts of %q in scope %q: %w", sel, scope.Sel, ErrElementNotFound)
	}
	return res.Values, nil
}

// Attrs returns the attr attribute of every match of sel, skipping elements
// without it.
func (s *Session) Attrs(ctx context.Context, scope Scope, sel, attr string) ([]string, error) {
	js := fmt.Sprintf(`(() => {
		const root = %s;
		if (!root) { return {found: false, values: []}; }
		const values = Array.from(root.querySelectorAll(%q))
			.map(e => e.getAttribute(%q))
			.filter(v => v !== null);
		return {found: true, values: values};
	})()`, rootExpr(scope), sel, attr)

	var res evalResult
	if err := s.run(ctx, chromedp.Evaluate(js, &res)); err != nil {
		return nil, err
	}
	if !res.Found {
		return nil, fmt.Errorf("attrs of %q in scope %q: %w", sel, scope.Sel, ErrElementNotFound)
	}
	return res.Values, nil
}

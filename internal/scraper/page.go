package scraper

import "context"

// Scope narrows a query to the Index-th match of Sel before the child
// selector is applied. The zero value scopes to the whole document.
type Scope struct {
	Sel   string
	Index int
}

// Page abstracts the browser primitives the extractor drives. Every call
// blocks until its condition is met or the session's bounded wait timeout
// elapses; implementations must never hang past that.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, sel string) error
	// ClickByText clicks the first element matching sel whose trimmed text
	// equals text exactly.
	ClickByText(ctx context.Context, sel, text string) error
	Click(ctx context.Context, scope Scope, sel string) error
	Count(ctx context.Context, scope Scope, sel string) (int, error)
	Text(ctx context.Context, scope Scope, sel string) (string, error)
	Texts(ctx context.Context, scope Scope, sel string) ([]string, error)
	Attrs(ctx context.Context, scope Scope, sel, attr string) ([]string, error)
}

// Package browser abstracts the driven browser behind a small session
// interface so checkout logic can be exercised against a scripted fake.
package browser

import (
	"context"
	"time"
)

// Session is one exclusively-owned browser tab. All selector arguments are
// CSS unless a method says otherwise. Click and FirstDisabled operate on
// the first matching element, mirroring how retail pages repeat controls.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, sel, value string) error
	Click(ctx context.Context, sel string) error
	// ClickByText clicks the first button whose text contains the given
	// string.
	ClickByText(ctx context.Context, text string) error
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	IsVisible(ctx context.Context, sel string) (bool, error)
	// FirstDisabled reports whether the first element matching sel is
	// disabled. A missing element counts as disabled: a product page
	// without an add-to-cart control is not purchasable either way.
	FirstDisabled(ctx context.Context, sel string) (bool, error)
	// TextVisible reports whether the given text is currently rendered
	// anywhere on the page.
	TextVisible(ctx context.Context, text string) (bool, error)
	Close() error
}

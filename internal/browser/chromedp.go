package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeSession drives a real Chrome instance through the DevTools
// protocol. One session owns one browser process.
type ChromeSession struct {
	browserCtx  context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewChromeSession launches a browser and waits for it to come up.
// Checkout flows run headful by default so a human can take over when the
// site misbehaves; set headless for unattended environments.
func NewChromeSession(headless bool) (*ChromeSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so launch failures surface
	// here rather than on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &ChromeSession{
		browserCtx:  browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}, nil
}

// run executes actions on the browser context while honoring the caller's
// context for cancellation and deadlines.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.browserCtx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *ChromeSession) Fill(ctx context.Context, sel, value string) error {
	return s.run(ctx,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
}

func (s *ChromeSession) Click(ctx context.Context, sel string) error {
	return s.run(ctx, chromedp.Click(sel, chromedp.ByQuery))
}

func (s *ChromeSession) ClickByText(ctx context.Context, text string) error {
	// Element queries poll until a node matches, so check the button
	// exists first; without this a missing button blocks until the
	// context dies.
	var found bool
	lookup := fmt.Sprintf(
		`(() => [...document.querySelectorAll("button")].some(el => el.innerText.includes(%q)))()`, text)
	if err := s.run(ctx, chromedp.Evaluate(lookup, &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no button containing %q", text)
	}

	xpath := fmt.Sprintf(`//button[contains(., %q)]`, text)
	return s.run(ctx, chromedp.Click(xpath, chromedp.BySearch))
}

func (s *ChromeSession) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.run(waitCtx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func (s *ChromeSession) IsVisible(ctx context.Context, sel string) (bool, error) {
	var visible bool
	script := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); return !!(el && el.getClientRects().length); })()`, sel)
	if err := s.run(ctx, chromedp.Evaluate(script, &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

func (s *ChromeSession) FirstDisabled(ctx context.Context, sel string) (bool, error) {
	var disabled bool
	script := fmt.Sprintf(
		`(() => { const el = document.querySelector(%q); return !el || !!el.disabled; })()`, sel)
	if err := s.run(ctx, chromedp.Evaluate(script, &disabled)); err != nil {
		return false, err
	}
	return disabled, nil
}

func (s *ChromeSession) TextVisible(ctx context.Context, text string) (bool, error) {
	var visible bool
	script := fmt.Sprintf(
		`(() => !!document.body && document.body.innerText.includes(%q))()`, text)
	if err := s.run(ctx, chromedp.Evaluate(script, &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

func (s *ChromeSession) Close() error {
	s.cancel()
	s.allocCancel()
	return nil
}

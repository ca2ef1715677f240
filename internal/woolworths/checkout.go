package woolworths

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"aisle/internal/browser"
	"aisle/internal/domain"
)

// Checkout page selectors. The site offers no purchase API; these are the
// only coupling to its page structure and they change when the site does.
const (
	loginURL          = "https://auth.woolworths.com.au/u/login"
	productDetailPath = "/shop/productdetails/"

	selUsername   = `input[name="username"]`
	selPassword   = `input[name="password"]`
	selSubmit     = `button[type="submit"]`
	selCodeField  = `input[type="text"]`
	selAddToCart  = `button[class="add-to-cart-btn"]`
	selCartButton = `#header-view-cart-button`
	selContinue   = `.continue-button`
	selTimeSlot   = `.time-slot`
	selCVV        = `input[name="txt-cvv_csv"]`

	textContinue  = "Continue"
	textForgotten = "Have You Forgotten?"
)

// ErrNoDeliverySlot is returned when, after checkout, neither the upsell
// page nor any selectable delivery slot is reachable. There is no
// recovery; the placement fails.
var ErrNoDeliverySlot = errors.New("no delivery time slots available")

type checkoutState string

const (
	stateAuthenticating    checkoutState = "authenticating"
	stateAwaitSecondFactor checkoutState = "awaiting_second_factor"
	stateSecondFactorSent  checkoutState = "second_factor_submitted"
	statePopulatingCart    checkoutState = "populating_cart"
	stateCartReview        checkoutState = "cart_review"
	stateCheckout          checkoutState = "checkout"
	stateDeliverySlot      checkoutState = "delivery_slot_selection"
	statePaymentConfirm    checkoutState = "payment_confirmation"
	statePlaced            checkoutState = "placed"
)

// CodeSource hands out stored two-factor codes, consuming each at most
// once.
type CodeSource interface {
	ConsumeLatestCode(ctx context.Context) (string, error)
}

// Prompter is the human-in-the-loop escape hatch used when no stored code
// turns up. It must stay injectable so the flow is testable and never
// hard-wired to a console read.
type Prompter interface {
	Prompt(ctx context.Context, message string) (string, error)
}

type Credentials struct {
	Email    string
	Password string
	CardCVV  string
}

// Waits are the settle delays inserted where the site gives no completion
// signal. The defaults are floors measured against the real site; tests
// zero them.
type Waits struct {
	Interstitial time.Duration // bounded check for the optional 2FA interstitial
	CodeField    time.Duration // bounded wait for the one-time-code field to appear
	SmsDelivery  time.Duration // real-world SMS latency before the first code lookup
	PostCode     time.Duration
	PostCheckout time.Duration
	PostSlot     time.Duration
	PrePayment   time.Duration
}

func DefaultWaits() Waits {
	return Waits{
		Interstitial: 5 * time.Second,
		CodeField:    5 * time.Second,
		SmsDelivery:  10 * time.Second,
		PostCode:     10 * time.Second,
		PostCheckout: 5 * time.Second,
		PostSlot:     5 * time.Second,
		PrePayment:   5 * time.Second,
	}
}

// checkout drives one browser session through the full placement flow.
// The session is owned by the caller; checkout never closes it.
type checkout struct {
	session browser.Session
	codes   CodeSource
	prompt  Prompter
	creds   Credentials
	waits   Waits
	baseURL string
	logger  *slog.Logger
}

func (c *checkout) run(ctx context.Context, order domain.Order) error {
	if err := c.authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err := c.submitSecondFactor(ctx); err != nil {
		return fmt.Errorf("second factor: %w", err)
	}
	if err := c.populateCart(ctx, order); err != nil {
		return fmt.Errorf("populate cart: %w", err)
	}
	if err := c.openCheckout(ctx); err != nil {
		return fmt.Errorf("open checkout: %w", err)
	}
	if err := c.selectDeliverySlot(ctx); err != nil {
		return fmt.Errorf("delivery slot: %w", err)
	}
	if err := c.confirmPayment(ctx); err != nil {
		return fmt.Errorf("confirm payment: %w", err)
	}

	c.setState(statePlaced)
	return nil
}

func (c *checkout) setState(state checkoutState) {
	c.logger.Info("checkout state", "state", string(state))
}

func (c *checkout) authenticate(ctx context.Context) error {
	c.setState(stateAuthenticating)

	if err := c.session.Navigate(ctx, loginURL); err != nil {
		return err
	}
	if err := c.session.Fill(ctx, selUsername, c.creds.Email); err != nil {
		return err
	}
	if err := c.session.Fill(ctx, selPassword, c.creds.Password); err != nil {
		return err
	}
	return c.session.Click(ctx, selSubmit)
}

func (c *checkout) submitSecondFactor(ctx context.Context) error {
	c.setState(stateAwaitSecondFactor)

	// The site sometimes shows an interstitial before the code field. The
	// check carries its own deadline: a missing button must not stall the
	// rest of the flow.
	clickCtx := ctx
	if c.waits.Interstitial > 0 {
		var cancel context.CancelFunc
		clickCtx, cancel = context.WithTimeout(ctx, c.waits.Interstitial)
		defer cancel()
	}
	if err := c.session.ClickByText(clickCtx, textContinue); err != nil {
		c.logger.Debug("no second-factor interstitial", "error", err)
	}

	if err := c.session.WaitVisible(ctx, selCodeField, c.waits.CodeField); err != nil {
		return fmt.Errorf("code field not shown: %w", err)
	}

	// Give the SMS time to arrive before the first lookup.
	if err := sleep(ctx, c.waits.SmsDelivery); err != nil {
		return err
	}

	code, err := c.codes.ConsumeLatestCode(ctx)
	if err != nil {
		c.logger.Warn("no stored two-factor code", "error", err)
		code = ""
	}

	if code == "" {
		code, err = c.prompt.Prompt(ctx, "Couldn't find 2FA code. Please type it manually and press Enter: ")
		if err != nil {
			return fmt.Errorf("manual code entry: %w", err)
		}
	}

	c.setState(stateSecondFactorSent)

	if err := c.session.Fill(ctx, selCodeField, code); err != nil {
		return err
	}
	if err := c.session.Click(ctx, selSubmit); err != nil {
		return err
	}
	return sleep(ctx, c.waits.PostCode)
}

// populateCart visits each resolved product in order. An out-of-stock or
// otherwise unaddable product is skipped; it never aborts the rest of the
// cart.
func (c *checkout) populateCart(ctx context.Context, order domain.Order) error {
	c.setState(statePopulatingCart)

	for _, line := range order {
		if err := ctx.Err(); err != nil {
			return err
		}

		productURL := c.baseURL + productDetailPath + line.Product.Stockcode
		if err := c.session.Navigate(ctx, productURL); err != nil {
			c.logger.Warn("skipping product, page unreachable", "product", line.Product.Name, "error", err)
			continue
		}

		disabled, err := c.session.FirstDisabled(ctx, selAddToCart)
		if err != nil {
			c.logger.Warn("skipping product, add-to-cart state unknown", "product", line.Product.Name, "error", err)
			continue
		}
		if disabled {
			c.logger.Warn("product out of stock, skipping", "product", line.Product.Name, "stockcode", line.Product.Stockcode)
			continue
		}

		c.logger.Info("adding product to cart", "product", line.Product.Name, "stockcode", line.Product.Stockcode)
		if err := c.session.Click(ctx, selAddToCart); err != nil {
			c.logger.Warn("failed to add product to cart", "product", line.Product.Name, "error", err)
		}
	}

	return nil
}

// openCheckout opens the cart drawer and the checkout control, each only
// if the site shows it; some sessions jump straight to checkout.
func (c *checkout) openCheckout(ctx context.Context) error {
	c.setState(stateCartReview)

	visible, err := c.session.IsVisible(ctx, selCartButton)
	if err != nil {
		return err
	}
	if visible {
		if err := c.session.Click(ctx, selCartButton); err != nil {
			return err
		}
	}

	c.setState(stateCheckout)

	visible, err = c.session.IsVisible(ctx, selSubmit)
	if err != nil {
		return err
	}
	if visible {
		if err := c.session.Click(ctx, selSubmit); err != nil {
			return err
		}
	}

	return sleep(ctx, c.waits.PostCheckout)
}

// selectDeliverySlot handles the page the checkout lands on: either the
// "Have You Forgotten?" upsell, which is dismissed, or the slot picker,
// where the first slot wins. Neither reachable fails the placement.
func (c *checkout) selectDeliverySlot(ctx context.Context) error {
	c.setState(stateDeliverySlot)

	forgotten, err := c.session.TextVisible(ctx, textForgotten)
	if err != nil {
		return err
	}
	if forgotten {
		return c.session.Click(ctx, selContinue)
	}

	hasSlots, err := c.session.IsVisible(ctx, selTimeSlot)
	if err != nil {
		return err
	}
	if !hasSlots {
		return ErrNoDeliverySlot
	}

	if err := c.session.Click(ctx, selTimeSlot); err != nil {
		return err
	}
	if err := sleep(ctx, c.waits.PostSlot); err != nil {
		return err
	}
	return c.session.Click(ctx, selSubmit)
}

// confirmPayment fills the card verification code and submits. The upsell
// page can reappear here (or show for the first time); dismiss it again.
// Submission is the commit signal; no confirmation page is parsed.
func (c *checkout) confirmPayment(ctx context.Context) error {
	c.setState(statePaymentConfirm)

	if err := sleep(ctx, c.waits.PrePayment); err != nil {
		return err
	}

	forgotten, err := c.session.TextVisible(ctx, textForgotten)
	if err != nil {
		return err
	}
	if forgotten {
		if err := c.session.Click(ctx, selContinue); err != nil {
			return err
		}
		if err := sleep(ctx, c.waits.PrePayment); err != nil {
			return err
		}
	}

	if err := c.session.Fill(ctx, selCVV, c.creds.CardCVV); err != nil {
		return err
	}
	return c.session.Click(ctx, selSubmit)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

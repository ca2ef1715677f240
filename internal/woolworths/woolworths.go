package woolworths

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"aisle/internal/browser"
	"aisle/internal/domain"
	"aisle/internal/retailer"
)

var _ retailer.Retailer = (*Woolworths)(nil)

// Config carries the account credentials and knobs for one Woolworths
// account. Credentials are required; missing ones fail construction so the
// service refuses to start rather than failing mid-checkout.
type Config struct {
	Email    string
	Password string
	CardCVV  string

	// BaseURL overrides the production site, for tests.
	BaseURL  string
	Headless bool
	Waits    Waits
}

// Woolworths implements retailer.Retailer for the Woolworths online store.
type Woolworths struct {
	client     *Client
	codes      CodeSource
	prompt     Prompter
	creds      Credentials
	waits      Waits
	baseURL    string
	newSession func() (browser.Session, error)
	logger     *slog.Logger

	// placing serializes checkouts: concurrent placements against one
	// account would race on cart and 2FA state.
	placing sync.Mutex
}

func New(cfg Config, codes CodeSource, prompt Prompter, logger *slog.Logger) (*Woolworths, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return nil, errors.New("woolworths account email and password are required")
	}
	if cfg.CardCVV == "" {
		return nil, errors.New("woolworths card verification code is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	waits := cfg.Waits
	if waits == (Waits{}) {
		waits = DefaultWaits()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	httpClient := &http.Client{
		Jar:       jar,
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	headless := cfg.Headless
	return &Woolworths{
		client: NewClient(baseURL, httpClient, logger),
		codes:  codes,
		prompt: prompt,
		creds: Credentials{
			Email:    cfg.Email,
			Password: cfg.Password,
			CardCVV:  cfg.CardCVV,
		},
		waits:   waits,
		baseURL: baseURL,
		newSession: func() (browser.Session, error) {
			return browser.NewChromeSession(headless)
		},
		logger: logger,
	}, nil
}

func (w *Woolworths) Search(ctx context.Context, term string) ([]domain.Product, error) {
	return w.client.Search(ctx, term)
}

// PlaceOrder acquires a fresh browser session, runs the checkout flow, and
// tears the session down on every exit path.
func (w *Woolworths) PlaceOrder(ctx context.Context, order domain.Order) error {
	w.placing.Lock()
	defer w.placing.Unlock()

	session, err := w.newSession()
	if err != nil {
		return fmt.Errorf("open browser session: %w", err)
	}
	defer func() { _ = session.Close() }()

	co := &checkout{
		session: session,
		codes:   w.codes,
		prompt:  w.prompt,
		creds:   w.creds,
		waits:   w.waits,
		baseURL: w.baseURL,
		logger:  w.logger,
	}

	return co.run(ctx, order)
}

// Package woolworths implements the retailer capability against the
// Woolworths (AU) online store: product search through the site's JSON
// search API and order placement through a driven browser. Every
// site-specific constant and selector lives in this package.
package woolworths

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"

	"aisle/internal/domain"
)

const (
	defaultBaseURL = "https://www.woolworths.com.au"
	searchPath     = "/apis/ui/Search/products"
	searchPageSize = 24

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Client queries the Woolworths product search API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	bootstrapOnce sync.Once
}

// NewClient builds a search client. baseURL is overridable for tests; an
// empty string selects the production site. The http.Client should carry a
// cookie jar: the search API expects session cookies issued by the
// homepage.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

type searchRequest struct {
	Filters            []string `json:"Filters"`
	PageNumber         int      `json:"PageNumber"`
	PageSize           int      `json:"PageSize"`
	SearchTerm         string   `json:"SearchTerm"`
	SortType           string   `json:"SortType"`
	ExcludeSearchTypes []string `json:"ExcludeSearchTypes"`
}

type searchResponse struct {
	Products []searchResult `json:"Products"`
}

// searchResult is one hit; the canonical product sits inside the nested
// variant list.
type searchResult struct {
	Products []searchVariant `json:"Products"`
}

type searchVariant struct {
	DisplayName   string          `json:"DisplayName"`
	Stockcode     json.Number     `json:"Stockcode"`
	Price         decimal.Decimal `json:"Price"`
	CupString     string          `json:"CupString"`
	IsAvailable   bool            `json:"IsAvailable"`
	IsPurchasable bool            `json:"IsPurchasable"`
}

// Search runs a relevance-sorted first-page search and returns only
// products that are both available and purchasable. An error is a failed
// search; zero matches yield an empty slice.
func (c *Client) Search(ctx context.Context, term string) ([]domain.Product, error) {
	c.bootstrapOnce.Do(func() { c.bootstrap(ctx) })

	reqBody := searchRequest{
		Filters:            []string{},
		PageNumber:         1,
		PageSize:           searchPageSize,
		SearchTerm:         term,
		SortType:           "TraderRelevance",
		ExcludeSearchTypes: []string{"UntraceableVendors"},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %q: unexpected status %d", term, resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	products := make([]domain.Product, 0, len(result.Products))
	for _, hit := range result.Products {
		if len(hit.Products) == 0 {
			continue
		}

		// The last nested variant carries the freshest pricing.
		variant := hit.Products[len(hit.Products)-1]
		product := domain.Product{
			Name:             variant.DisplayName,
			Stockcode:        variant.Stockcode.String(),
			PriceTotal:       variant.Price,
			PriceUnitMeasure: variant.CupString,
			IsAvailable:      variant.IsAvailable,
			IsPurchasable:    variant.IsPurchasable,
		}
		if product.Eligible() {
			products = append(products, product)
		}
	}

	return products, nil
}

// bootstrap fetches the homepage once so the cookie jar holds a site
// session before the first search. Failure is non-fatal; the search itself
// will report anything that actually matters.
func (c *Client) bootstrap(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("homepage bootstrap failed", "error", err)
		return
	}
	_ = resp.Body.Close()
}

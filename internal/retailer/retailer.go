// Package retailer defines the capability interface a supermarket
// integration must provide. Each retailer supplies its own implementation;
// everything site-specific (search payloads, page selectors) stays inside
// the implementation package.
package retailer

import (
	"context"

	"aisle/internal/domain"
)

type Retailer interface {
	// Search resolves a free-text term to eligible catalog products.
	// An error means the search itself failed; zero results come back as
	// an empty slice with a nil error, and callers must treat the two
	// differently.
	Search(ctx context.Context, term string) ([]domain.Product, error)

	// PlaceOrder drives a full checkout for an already-resolved order.
	// Implementations own their browser session for the duration of the
	// call and release it on every exit path. At most one placement runs
	// at a time per retailer account.
	PlaceOrder(ctx context.Context, order domain.Order) error
}

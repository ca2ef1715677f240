// Package resolver turns free-text shopping-list items into concrete
// catalog products. Strategies run in strict precedence, cheapest first:
// exact name match, purchase history, recommendation oracle, then the
// catalog's own relevance ranking. Any item with at least one candidate
// always resolves.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"aisle/internal/domain"
)

// Searcher is the catalog lookup. A nil error with an empty slice means
// the search worked and found nothing; an error means the search failed.
type Searcher interface {
	Search(ctx context.Context, term string) ([]domain.Product, error)
}

// History answers whether a stockcode has been ordered before.
type History interface {
	HasStockcode(ctx context.Context, stockcode string) (bool, error)
}

// Advisor picks one candidate's stock code using outside knowledge. Any
// error counts as strategy failure, never as a resolution failure.
type Advisor interface {
	Recommend(ctx context.Context, item string, candidates []domain.Product) (string, error)
}

type Resolver struct {
	catalog Searcher
	history History
	advisor Advisor
	logger  *slog.Logger
}

func New(catalog Searcher, history History, advisor Advisor, logger *slog.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		history: history,
		advisor: advisor,
		logger:  logger,
	}
}

type searchOutcome struct {
	products []domain.Product
	err      error
}

// Resolve maps each item to exactly one product. Items whose search fails
// or finds nothing are dropped with a log line; they never fail the batch.
// The returned order preserves submission order.
func (r *Resolver) Resolve(ctx context.Context, items []string) (domain.Order, error) {
	// One line per distinct item: a repeated entry would double up in the
	// cart, so later occurrences are dropped here.
	seen := make(map[string]struct{}, len(items))
	distinct := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			r.logger.Debug("duplicate shopping list item dropped", "item", item)
			continue
		}
		seen[item] = struct{}{}
		distinct = append(distinct, item)
	}
	items = distinct

	// Searches are independent; fan them out. Results land in a slice
	// indexed by item position so each item only ever sees its own
	// candidates, regardless of completion order.
	outcomes := make([]searchOutcome, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			products, err := r.catalog.Search(ctx, item)
			outcomes[i] = searchOutcome{products: products, err: err}
		}()
	}
	wg.Wait()

	order := make(domain.Order, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome := outcomes[i]
		if outcome.err != nil {
			r.logger.Warn("product search failed, dropping item", "item", item, "error", outcome.err)
			continue
		}
		if len(outcome.products) == 0 {
			r.logger.Info("no products found, dropping item", "item", item)
			continue
		}

		product := r.pick(ctx, item, outcome.products)
		order = append(order, domain.Line{Item: item, Product: product})
	}

	return order, nil
}

// pick applies the strategy precedence to a non-empty candidate set and
// always selects exactly one product.
func (r *Resolver) pick(ctx context.Context, item string, candidates []domain.Product) domain.Product {
	if product, ok := r.exactMatch(item, candidates); ok {
		r.logger.Info("resolved by exact name match", "item", item, "stockcode", product.Stockcode)
		return product
	}

	if product, ok := r.historyMatch(ctx, item, candidates); ok {
		r.logger.Info("resolved from order history", "item", item, "stockcode", product.Stockcode)
		return product
	}

	if product, ok := r.advisorMatch(ctx, item, candidates); ok {
		r.logger.Info("resolved by recommendation", "item", item, "stockcode", product.Stockcode)
		return product
	}

	// Guaranteed selection: the catalog's top relevance hit.
	r.logger.Info("resolved by search ranking fallback", "item", item, "stockcode", candidates[0].Stockcode)
	return candidates[0]
}

func (r *Resolver) exactMatch(item string, candidates []domain.Product) (domain.Product, bool) {
	for _, p := range candidates {
		if strings.EqualFold(p.Name, item) {
			return p, true
		}
	}
	return domain.Product{}, false
}

// historyMatch walks candidates in catalog order and picks the first one
// bought before. A lookup error for one candidate skips just that
// candidate.
func (r *Resolver) historyMatch(ctx context.Context, item string, candidates []domain.Product) (domain.Product, bool) {
	for _, p := range candidates {
		ordered, err := r.history.HasStockcode(ctx, p.Stockcode)
		if err != nil {
			r.logger.Warn("history lookup failed", "item", item, "stockcode", p.Stockcode, "error", err)
			continue
		}
		if ordered {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (r *Resolver) advisorMatch(ctx context.Context, item string, candidates []domain.Product) (domain.Product, bool) {
	stockcode, err := r.advisor.Recommend(ctx, item, candidates)
	if err != nil {
		r.logger.Debug("recommendation unavailable", "item", item, "error", err)
		return domain.Product{}, false
	}

	for _, p := range candidates {
		if p.Stockcode == stockcode {
			return p, true
		}
	}

	// The model must name one of the candidates; anything else is a miss.
	r.logger.Debug("recommendation did not match a candidate", "item", item, "stockcode", stockcode)
	return domain.Product{}, false
}

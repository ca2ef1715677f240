package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"aisle/internal/domain"
)

// DefaultPlacementTimeout bounds one whole placement, including the
// manual-entry fallback, so a stalled checkout cannot hang the worker
// forever.
const DefaultPlacementTimeout = 15 * time.Minute

type ListResolver interface {
	Resolve(ctx context.Context, items []string) (domain.Order, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order domain.Order) error
}

type OrderStore interface {
	Store(ctx context.Context, order domain.Order) (string, error)
}

type PlacementStore interface {
	SetStatus(ctx context.Context, id string, status domain.PlacementStatus, reason string) error
}

// PlacementHandler consumes placement-requested events and drives each
// placement end to end: resolve, check out, persist. A failed placement is
// recorded on its placement row and absorbed; only a malformed payload
// propagates an error to the consumer.
type PlacementHandler struct {
	resolver   ListResolver
	retailer   OrderPlacer
	orderStore OrderStore
	placements PlacementStore
	timeout    time.Duration
	logger     *slog.Logger
}

func NewPlacementHandler(resolver ListResolver, retailer OrderPlacer, orderStore OrderStore, placements PlacementStore, logger *slog.Logger) *PlacementHandler {
	return &PlacementHandler{
		resolver:   resolver,
		retailer:   retailer,
		orderStore: orderStore,
		placements: placements,
		timeout:    DefaultPlacementTimeout,
		logger:     logger,
	}
}

func (h *PlacementHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.PlacementRequestedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal placement requested event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.logger.Info("processing placement", "placement_id", event.PlacementID, "items", len(event.Items))

	h.setStatus(ctx, event.PlacementID, domain.PlacementResolving, "")

	order, err := h.resolver.Resolve(ctx, event.Items)
	if err != nil {
		h.fail(ctx, event.PlacementID, fmt.Errorf("resolve shopping list: %w", err))
		return nil
	}
	if len(order) == 0 {
		h.fail(ctx, event.PlacementID, fmt.Errorf("no shopping list items could be resolved"))
		return nil
	}

	h.setStatus(ctx, event.PlacementID, domain.PlacementPlacing, "")

	if err := h.retailer.PlaceOrder(ctx, order); err != nil {
		h.fail(ctx, event.PlacementID, fmt.Errorf("place order: %w", err))
		return nil
	}

	// The order is only persisted once placement succeeded; a failed
	// placement leaves no partial order behind.
	orderID, err := h.orderStore.Store(ctx, order)
	if err != nil {
		// The retailer accepted the order; losing the record is worse
		// than a placement failure, so it gets its own status message.
		h.fail(ctx, event.PlacementID, fmt.Errorf("order placed but not recorded: %w", err))
		return nil
	}

	h.setStatus(ctx, event.PlacementID, domain.PlacementPlaced, "")
	h.logger.Info("placement complete", "placement_id", event.PlacementID, "order_id", orderID, "lines", len(order))
	return nil
}

func (h *PlacementHandler) fail(ctx context.Context, placementID string, err error) {
	h.logger.Error("placement failed", "placement_id", placementID, "error", err)
	h.setStatus(ctx, placementID, domain.PlacementFailed, err.Error())
}

func (h *PlacementHandler) setStatus(ctx context.Context, placementID string, status domain.PlacementStatus, reason string) {
	// Status updates must survive a placement that already blew its
	// deadline.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
	}
	if err := h.placements.SetStatus(ctx, placementID, status, reason); err != nil {
		h.logger.Error("failed to update placement status", "placement_id", placementID, "status", status, "error", err)
	}
}

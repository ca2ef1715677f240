package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aisle/internal/domain"
)

type fakeResolver struct {
	order domain.Order
	err   error
	items []string
}

func (f *fakeResolver) Resolve(_ context.Context, items []string) (domain.Order, error) {
	f.items = items
	return f.order, f.err
}

type fakePlacer struct {
	err    error
	placed []domain.Order
}

func (f *fakePlacer) PlaceOrder(_ context.Context, order domain.Order) error {
	if f.err != nil {
		return f.err
	}
	f.placed = append(f.placed, order)
	return nil
}

type fakeOrderStore struct {
	err    error
	stored []domain.Order
}

func (f *fakeOrderStore) Store(_ context.Context, order domain.Order) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.stored = append(f.stored, order)
	return "order-1", nil
}

type statusUpdate struct {
	status domain.PlacementStatus
	reason string
}

type fakePlacements struct {
	updates map[string][]statusUpdate
}

func (f *fakePlacements) SetStatus(_ context.Context, id string, status domain.PlacementStatus, reason string) error {
	if f.updates == nil {
		f.updates = map[string][]statusUpdate{}
	}
	f.updates[id] = append(f.updates[id], statusUpdate{status: status, reason: reason})
	return nil
}

func (f *fakePlacements) last(id string) statusUpdate {
	updates := f.updates[id]
	if len(updates) == 0 {
		return statusUpdate{}
	}
	return updates[len(updates)-1]
}

func newHandler(resolver *fakeResolver, placer *fakePlacer, store *fakeOrderStore, placements *fakePlacements) *PlacementHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPlacementHandler(resolver, placer, store, placements, logger)
}

func eventPayload(t *testing.T, id string, items ...string) []byte {
	t.Helper()
	payload, err := json.Marshal(domain.PlacementRequestedEvent{
		PlacementID: id,
		Items:       items,
		Timestamp:   time.Now().UTC(),
	})
	require.NoError(t, err)
	return payload
}

func resolvedOrder(items ...string) domain.Order {
	order := make(domain.Order, 0, len(items))
	for i, item := range items {
		order = append(order, domain.Line{
			Item:    item,
			Product: domain.Product{Name: item, Stockcode: string(rune('1' + i))},
		})
	}
	return order
}

func TestPlacementHandler_Handle(t *testing.T) {
	t.Run("successful placement walks the full status machine", func(t *testing.T) {
		resolver := &fakeResolver{order: resolvedOrder("milk", "bread")}
		placer := &fakePlacer{}
		store := &fakeOrderStore{}
		placements := &fakePlacements{}
		handler := newHandler(resolver, placer, store, placements)

		err := handler.Handle(context.Background(), eventPayload(t, "p-1", "milk", "bread"))
		require.NoError(t, err)

		assert.Equal(t, []string{"milk", "bread"}, resolver.items)
		require.Len(t, placer.placed, 1)
		require.Len(t, store.stored, 1)
		assert.Equal(t, placer.placed[0], store.stored[0])

		updates := placements.updates["p-1"]
		require.Len(t, updates, 3)
		assert.Equal(t, domain.PlacementResolving, updates[0].status)
		assert.Equal(t, domain.PlacementPlacing, updates[1].status)
		assert.Equal(t, domain.PlacementPlaced, updates[2].status)
	})

	t.Run("resolution error fails the placement and is absorbed", func(t *testing.T) {
		resolver := &fakeResolver{err: errors.New("catalog down")}
		placer := &fakePlacer{}
		store := &fakeOrderStore{}
		placements := &fakePlacements{}
		handler := newHandler(resolver, placer, store, placements)

		err := handler.Handle(context.Background(), eventPayload(t, "p-2", "milk"))
		require.NoError(t, err, "placement failures must not bounce the message")

		last := placements.last("p-2")
		assert.Equal(t, domain.PlacementFailed, last.status)
		assert.Contains(t, last.reason, "catalog down")
		assert.Empty(t, placer.placed)
		assert.Empty(t, store.stored)
	})

	t.Run("empty resolution fails the placement", func(t *testing.T) {
		resolver := &fakeResolver{order: domain.Order{}}
		placer := &fakePlacer{}
		placements := &fakePlacements{}
		handler := newHandler(resolver, placer, &fakeOrderStore{}, placements)

		err := handler.Handle(context.Background(), eventPayload(t, "p-3", "unicorn steak"))
		require.NoError(t, err)

		last := placements.last("p-3")
		assert.Equal(t, domain.PlacementFailed, last.status)
		assert.Empty(t, placer.placed)
	})

	t.Run("checkout error fails the placement without storing an order", func(t *testing.T) {
		resolver := &fakeResolver{order: resolvedOrder("milk")}
		placer := &fakePlacer{err: errors.New("no delivery time slots available")}
		store := &fakeOrderStore{}
		placements := &fakePlacements{}
		handler := newHandler(resolver, placer, store, placements)

		err := handler.Handle(context.Background(), eventPayload(t, "p-4", "milk"))
		require.NoError(t, err)

		last := placements.last("p-4")
		assert.Equal(t, domain.PlacementFailed, last.status)
		assert.Contains(t, last.reason, "no delivery time slots")
		assert.Empty(t, store.stored)
	})

	t.Run("store failure after placement gets its own failure reason", func(t *testing.T) {
		resolver := &fakeResolver{order: resolvedOrder("milk")}
		store := &fakeOrderStore{err: errors.New("db gone")}
		placements := &fakePlacements{}
		handler := newHandler(resolver, &fakePlacer{}, store, placements)

		err := handler.Handle(context.Background(), eventPayload(t, "p-5", "milk"))
		require.NoError(t, err)

		last := placements.last("p-5")
		assert.Equal(t, domain.PlacementFailed, last.status)
		assert.Contains(t, last.reason, "order placed but not recorded")
	})

	t.Run("malformed payload is the only propagated error", func(t *testing.T) {
		placements := &fakePlacements{}
		handler := newHandler(&fakeResolver{}, &fakePlacer{}, &fakeOrderStore{}, placements)

		err := handler.Handle(context.Background(), []byte("not json"))
		require.Error(t, err)
		assert.Empty(t, placements.updates)
	})
}

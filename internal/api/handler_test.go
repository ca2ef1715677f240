package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aisle/internal/domain"
)

type fakePlacementStore struct {
	created    [][]string
	createErr  error
	placements map[string]*domain.Placement
	statuses   map[string]domain.PlacementStatus
}

func (f *fakePlacementStore) Create(_ context.Context, items []string) (*domain.Placement, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, items)
	return &domain.Placement{
		ID:        "placement-1",
		Items:     items,
		Status:    domain.PlacementPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakePlacementStore) GetByID(_ context.Context, id string) (*domain.Placement, error) {
	return f.placements[id], nil
}

func (f *fakePlacementStore) SetStatus(_ context.Context, id string, status domain.PlacementStatus, _ string) error {
	if f.statuses == nil {
		f.statuses = map[string]domain.PlacementStatus{}
	}
	f.statuses[id] = status
	return nil
}

type fakeOrderReader struct {
	orders map[string]*domain.StoredOrder
	list   []domain.StoredOrder
}

func (f *fakeOrderReader) GetByID(_ context.Context, id string) (*domain.StoredOrder, error) {
	return f.orders[id], nil
}

func (f *fakeOrderReader) List(_ context.Context) ([]domain.StoredOrder, error) {
	return f.list, nil
}

type fakeSmsStore struct {
	stored []string
	err    error
}

func (f *fakeSmsStore) Store(_ context.Context, body string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.stored = append(f.stored, body)
	return int64(len(f.stored)), nil
}

type fakePublisher struct {
	published []any
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event any) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event)
	return nil
}

func newTestHandler(placements *fakePlacementStore, orders *fakeOrderReader, smsStore *fakeSmsStore, producer *fakePublisher) *Handler {
	if placements == nil {
		placements = &fakePlacementStore{}
	}
	if orders == nil {
		orders = &fakeOrderReader{}
	}
	if smsStore == nil {
		smsStore = &fakeSmsStore{}
	}
	if producer == nil {
		producer = &fakePublisher{}
	}
	return NewHandler(placements, orders, smsStore, producer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandler_HandleSubmitOrder(t *testing.T) {
	t.Run("accepts a shopping list and publishes one event", func(t *testing.T) {
		placements := &fakePlacementStore{}
		producer := &fakePublisher{}
		handler := newTestHandler(placements, nil, nil, producer)

		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"shopping_list":["chicken","milk"]}`))
		rec := httptest.NewRecorder()

		handler.HandleSubmitOrder(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp submitOrderResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.PlacementID == "" {
			t.Error("expected a placement id")
		}
		if resp.Status != string(domain.PlacementPending) {
			t.Errorf("expected pending status, got %s", resp.Status)
		}
		if len(resp.Items) != 2 {
			t.Errorf("expected 2 items, got %d", len(resp.Items))
		}

		if len(placements.created) != 1 {
			t.Fatalf("expected 1 placement, got %d", len(placements.created))
		}
		if len(producer.published) != 1 {
			t.Fatalf("expected 1 published event, got %d", len(producer.published))
		}
		event, ok := producer.published[0].(domain.PlacementRequestedEvent)
		if !ok {
			t.Fatalf("unexpected event type %T", producer.published[0])
		}
		if event.PlacementID != resp.PlacementID {
			t.Errorf("event placement id %s does not match response %s", event.PlacementID, resp.PlacementID)
		}
	})

	t.Run("rejects invalid body", func(t *testing.T) {
		handler := newTestHandler(nil, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`not json`))
		rec := httptest.NewRecorder()

		handler.HandleSubmitOrder(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("rejects empty shopping list without side effects", func(t *testing.T) {
		placements := &fakePlacementStore{}
		producer := &fakePublisher{}
		handler := newTestHandler(placements, nil, nil, producer)

		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"shopping_list":[]}`))
		rec := httptest.NewRecorder()

		handler.HandleSubmitOrder(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		if len(placements.created) != 0 {
			t.Errorf("expected no placements, got %d", len(placements.created))
		}
		if len(producer.published) != 0 {
			t.Errorf("expected no events, got %d", len(producer.published))
		}
	})

	t.Run("rejects blank items", func(t *testing.T) {
		placements := &fakePlacementStore{}
		handler := newTestHandler(placements, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"shopping_list":["milk","  "]}`))
		rec := httptest.NewRecorder()

		handler.HandleSubmitOrder(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		if len(placements.created) != 0 {
			t.Errorf("expected no placements, got %d", len(placements.created))
		}
	})

	t.Run("returns 500 when publish fails and fails the placement", func(t *testing.T) {
		placements := &fakePlacementStore{}
		handler := newTestHandler(placements, nil, nil, &fakePublisher{err: errors.New("broker down")})

		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"shopping_list":["milk"]}`))
		rec := httptest.NewRecorder()

		handler.HandleSubmitOrder(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rec.Code)
		}
		if len(placements.created) != 1 {
			t.Fatalf("expected 1 placement, got %d", len(placements.created))
		}
		if placements.statuses["placement-1"] != domain.PlacementFailed {
			t.Errorf("expected unqueued placement to be failed, got %q", placements.statuses["placement-1"])
		}
	})
}

func TestHandler_HandleSubmitSms(t *testing.T) {
	t.Run("stores a message", func(t *testing.T) {
		smsStore := &fakeSmsStore{}
		handler := newTestHandler(nil, nil, smsStore, nil)

		req := httptest.NewRequest(http.MethodPost, "/sms", strings.NewReader(`{"message":"Your code is 123456"}`))
		rec := httptest.NewRecorder()

		handler.HandleSubmitSms(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp submitSmsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.MessageID != 1 {
			t.Errorf("expected message id 1, got %d", resp.MessageID)
		}
		if len(smsStore.stored) != 1 {
			t.Fatalf("expected 1 stored message, got %d", len(smsStore.stored))
		}
	})

	t.Run("rejects empty message without storing", func(t *testing.T) {
		smsStore := &fakeSmsStore{}
		handler := newTestHandler(nil, nil, smsStore, nil)

		req := httptest.NewRequest(http.MethodPost, "/sms", strings.NewReader(`{"message":""}`))
		rec := httptest.NewRecorder()

		handler.HandleSubmitSms(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		if len(smsStore.stored) != 0 {
			t.Errorf("expected no stored messages, got %d", len(smsStore.stored))
		}
	})
}

func TestHandler_HandleGetPlacement(t *testing.T) {
	t.Run("returns a placement", func(t *testing.T) {
		placements := &fakePlacementStore{placements: map[string]*domain.Placement{
			"p-1": {ID: "p-1", Items: []string{"milk"}, Status: domain.PlacementPlaced},
		}}
		handler := newTestHandler(placements, nil, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/placements/p-1", nil)
		req.SetPathValue("id", "p-1")
		rec := httptest.NewRecorder()

		handler.HandleGetPlacement(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}

		var placement domain.Placement
		if err := json.Unmarshal(rec.Body.Bytes(), &placement); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if placement.Status != domain.PlacementPlaced {
			t.Errorf("expected placed status, got %s", placement.Status)
		}
	})

	t.Run("returns 404 for unknown placement", func(t *testing.T) {
		handler := newTestHandler(&fakePlacementStore{}, nil, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/placements/missing", nil)
		req.SetPathValue("id", "missing")
		rec := httptest.NewRecorder()

		handler.HandleGetPlacement(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleGetOrder(t *testing.T) {
	t.Run("returns 404 for unknown order", func(t *testing.T) {
		handler := newTestHandler(nil, &fakeOrderReader{}, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/orders/missing", nil)
		req.SetPathValue("id", "missing")
		rec := httptest.NewRecorder()

		handler.HandleGetOrder(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

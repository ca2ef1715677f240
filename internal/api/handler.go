package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"aisle/internal/domain"
)

// Publisher publishes placement-requested events for the background
// worker.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// PlacementStore is the subset of the placement repository the API needs.
type PlacementStore interface {
	Create(ctx context.Context, items []string) (*domain.Placement, error)
	GetByID(ctx context.Context, id string) (*domain.Placement, error)
	SetStatus(ctx context.Context, id string, status domain.PlacementStatus, reason string) error
}

// OrderReader reads successfully placed orders.
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*domain.StoredOrder, error)
	List(ctx context.Context) ([]domain.StoredOrder, error)
}

// SmsStore ingests intercepted messages.
type SmsStore interface {
	Store(ctx context.Context, body string) (int64, error)
}

type Handler struct {
	placements PlacementStore
	orderRepo  OrderReader
	smsRepo    SmsStore
	producer   Publisher
	logger     *slog.Logger
}

func NewHandler(placements PlacementStore, orderRepo OrderReader, smsRepo SmsStore, producer Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		placements: placements,
		orderRepo:  orderRepo,
		smsRepo:    smsRepo,
		producer:   producer,
		logger:     logger,
	}
}

type submitOrderRequest struct {
	ShoppingList []string `json:"shopping_list"`
}

type submitOrderResponse struct {
	PlacementID string   `json:"placement_id"`
	Status      string   `json:"status"`
	Items       []string `json:"items"`
}

// HandleSubmitOrder validates the shopping list, records a pending
// placement, and kicks off background processing. The response is only an
// acknowledgment; placement outcome is observable through the placement
// record.
func (h *Handler) HandleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.ShoppingList) == 0 {
		h.writeError(w, http.StatusBadRequest, "shopping list is required")
		return
	}
	for _, item := range req.ShoppingList {
		if strings.TrimSpace(item) == "" {
			h.writeError(w, http.StatusBadRequest, "shopping list items must not be empty")
			return
		}
	}

	placement, err := h.placements.Create(r.Context(), req.ShoppingList)
	if err != nil {
		h.logger.Error("failed to create placement", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	event := domain.PlacementRequestedEvent{
		PlacementID: placement.ID,
		Items:       placement.Items,
		Timestamp:   time.Now().UTC(),
	}
	if err := h.producer.Publish(r.Context(), placement.ID, event); err != nil {
		h.logger.Error("failed to publish placement event", "error", err, "placement_id", placement.ID)
		// No worker will ever pick this placement up; a pending row here
		// would dangle forever.
		if err := h.placements.SetStatus(r.Context(), placement.ID, domain.PlacementFailed, "placement request could not be queued"); err != nil {
			h.logger.Error("failed to mark unqueued placement failed", "error", err, "placement_id", placement.ID)
		}
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("placement accepted", "placement_id", placement.ID, "items", len(placement.Items))
	h.writeJSON(w, http.StatusAccepted, submitOrderResponse{
		PlacementID: placement.ID,
		Status:      string(placement.Status),
		Items:       placement.Items,
	})
}

type submitSmsRequest struct {
	Message string `json:"message"`
}

type submitSmsResponse struct {
	MessageID int64 `json:"message_id"`
}

// HandleSubmitSms ingests an intercepted text message for later 2FA code
// extraction.
func (h *Handler) HandleSubmitSms(w http.ResponseWriter, r *http.Request) {
	var req submitSmsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	id, err := h.smsRepo.Store(r.Context(), req.Message)
	if err != nil {
		h.logger.Error("failed to store sms message", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("sms message stored", "message_id", id)
	h.writeJSON(w, http.StatusOK, submitSmsResponse{MessageID: id})
}

func (h *Handler) HandleGetPlacement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing placement id")
		return
	}

	placement, err := h.placements.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get placement", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if placement == nil {
		h.writeError(w, http.StatusNotFound, "placement not found")
		return
	}

	h.writeJSON(w, http.StatusOK, placement)
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.orderRepo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orderRepo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

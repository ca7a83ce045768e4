package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"payment-platform/internal/auth"
	"payment-platform/internal/cart"
)

const maxJSONBodyBytes = 1 << 20

// Store is what the handler needs from order persistence.
type Store interface {
	Create(ctx context.Context, input CreateInput) (Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	Reject(ctx context.Context, id string) error
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type createRequest struct {
	OrderNumber string            `json:"orderNumber"`
	Name        string            `json:"name"`
	CustomerID  int64             `json:"customerId"`
	Cart        *cart.CreateInput `json:"cart"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body createRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.OrderNumber = strings.TrimSpace(body.OrderNumber)
	if body.OrderNumber == "" {
		writeError(w, http.StatusBadRequest, "orderNumber is required")
		return
	}
	if body.Cart == nil || len(body.Cart.Items) == 0 {
		writeError(w, http.StatusBadRequest, "cart with at least one item is required")
		return
	}
	for _, item := range body.Cart.Items {
		if strings.TrimSpace(item.Name) == "" || item.Quantity <= 0 || item.Price < 0 {
			writeError(w, http.StatusBadRequest, "cart item is invalid")
			return
		}
	}

	customerID := body.CustomerID
	if customerID == 0 {
		if principal, ok := auth.PrincipalFrom(r.Context()); ok {
			customerID = principal.ID
		}
	}

	o, err := h.store.Create(r.Context(), CreateInput{
		OrderNumber: body.OrderNumber,
		Name:        body.Name,
		CustomerID:  customerID,
		Cart:        *body.Cart,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateOrderNumber) {
			writeError(w, http.StatusConflict, "order number already exists")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := parseCustomerID(w, r)
	if !ok {
		return
	}

	orders, err := h.store.ListByCustomer(r.Context(), customerID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("orderId")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("orderId")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.store.Reject(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, ErrNotRejectable):
			writeError(w, http.StatusConflict, "order cannot be rejected")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to reject order")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func parseCustomerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("customerId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid customer id")
		return 0, false
	}

	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

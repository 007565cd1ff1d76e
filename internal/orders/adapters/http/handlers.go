package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	catalogports "github.com/freshmart/storefront/internal/catalog/ports"
	"github.com/freshmart/storefront/internal/orders/app"
	"github.com/freshmart/storefront/internal/orders/domain"
	"github.com/freshmart/storefront/internal/orders/ports"
	"github.com/freshmart/storefront/internal/promotions/loyalty"
)

// Handler exposes HTTP endpoints for the order engine.
type Handler struct {
	service *app.Service
	loyalty *loyalty.Settings
	catalog catalogports.ProductRepository
}

// NewHandler constructs a Handler.
func NewHandler(service *app.Service, loyaltySettings *loyalty.Settings, catalog catalogports.ProductRepository) *Handler {
	return &Handler{service: service, loyalty: loyaltySettings, catalog: catalog}
}

// Register binds the handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/orders", h.checkout)
	mux.HandleFunc("GET /v1/orders", h.listOrders)
	mux.HandleFunc("GET /v1/orders/{id}", h.getOrder)
	mux.HandleFunc("GET /v1/orders/{id}/invoice", h.getInvoice)
	mux.HandleFunc("POST /v1/orders/{id}/claim", h.claimOrder)
	mux.HandleFunc("POST /v1/orders/{id}/drop", h.dropOrder)
	mux.HandleFunc("POST /v1/orders/{id}/complete", h.completeOrder)
	mux.HandleFunc("POST /v1/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("GET /v1/products", h.listProducts)
	mux.HandleFunc("GET /v1/loyalty/settings", h.getLoyaltySettings)
	mux.HandleFunc("PUT /v1/loyalty/settings", h.updateLoyaltySettings)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey == "" {
		writeError(w, http.StatusBadRequest, "validation", "Idempotency-Key header required")
		return
	}

	if stored, err := h.service.GetIdempotentResponse(ctx, idemKey); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	} else if stored != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stored.StatusCode)
		_, _ = w.Write(stored.Body)
		return
	}

	var payload app.CheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON payload")
		return
	}

	order, err := h.service.Checkout(ctx, payload)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	body, err := json.Marshal(map[string]any{"order": order})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}

	stored := ports.StoredResponse{
		StatusCode: http.StatusCreated,
		Body:       body,
		OrderID:    order.ID,
	}
	if err := h.service.SaveIdempotentResponse(ctx, idemKey, stored); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(invoice)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter := ports.ListFilter{
		CustomerID: r.URL.Query().Get("customer_id"),
		CarrierID:  r.URL.Query().Get("carrier_id"),
	}
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status := domain.OrderStatus(statusParam)
		filter.Status = &status
	}

	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		if page, err := strconv.Atoi(pageParam); err == nil {
			filter.Page = page
		}
	}

	if pageSizeParam := r.URL.Query().Get("page_size"); pageSizeParam != "" {
		if pageSize, err := strconv.Atoi(pageSizeParam); err == nil {
			filter.PageSize = pageSize
		}
	}

	orders, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type carrierRequest struct {
	CarrierID string `json:"carrier_id"`
}

func (h *Handler) claimOrder(w http.ResponseWriter, r *http.Request) {
	var payload carrierRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.CarrierID) == "" {
		writeError(w, http.StatusBadRequest, "validation", "carrier_id is required")
		return
	}

	order, err := h.service.ClaimOrder(r.Context(), r.PathValue("id"), payload.CarrierID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) dropOrder(w http.ResponseWriter, r *http.Request) {
	var payload carrierRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.CarrierID) == "" {
		writeError(w, http.StatusBadRequest, "validation", "carrier_id is required")
		return
	}

	order, err := h.service.DropOrder(r.Context(), r.PathValue("id"), payload.CarrierID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DeliveredAt *time.Time `json:"delivered_at"`
	}
	if r.Body != nil {
		// Body is optional; an empty or absent payload means "delivered now".
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}

	var deliveredAt time.Time
	if payload.DeliveredAt != nil {
		deliveredAt = *payload.DeliveredAt
	}

	order, err := h.service.CompleteOrder(r.Context(), r.PathValue("id"), deliveredAt)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CustomerID string `json:"customer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.CustomerID) == "" {
		writeError(w, http.StatusBadRequest, "validation", "customer_id is required")
		return
	}

	order, err := h.service.CancelOrder(r.Context(), r.PathValue("id"), payload.CustomerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) getLoyaltySettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"threshold": h.loyalty.Threshold(),
		"percent":   h.loyalty.DiscountPercent(),
	})
}

func (h *Handler) updateLoyaltySettings(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Threshold int             `json:"threshold"`
		Percent   decimal.Decimal `json:"percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid JSON payload")
		return
	}

	if err := h.loyalty.Update(payload.Threshold, payload.Percent); err != nil {
		writeError(w, http.StatusBadRequest, "validation", err.Error())
		return
	}

	h.getLoyaltySettings(w, r)
}

// writeDomainError maps engine errors onto the HTTP taxonomy. Conflict
// responses carry a machine-readable code so clients can refresh stale state
// instead of blindly retrying.
func writeDomainError(w http.ResponseWriter, err error) {
	var stockErr *domain.InsufficientStockError
	var collabErr *domain.CollaboratorError
	var valErr *domain.ValidationError

	switch {
	case errors.Is(err, ports.ErrNotFound), errors.Is(err, catalogports.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ports.ErrNoInvoice):
		writeError(w, http.StatusNotFound, "no_invoice", err.Error())
	case errors.Is(err, domain.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, "already_claimed", err.Error())
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, domain.ErrNotCancellable):
		writeError(w, http.StatusConflict, "not_cancellable", err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.As(err, &collabErr):
		writeError(w, http.StatusBadGateway, "collaborator_unavailable", err.Error())
	case errors.As(err, &valErr),
		errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidDelivery),
		errors.Is(err, domain.ErrBelowMinimum),
		errors.Is(err, domain.ErrCouponInvalid):
		writeError(w, http.StatusBadRequest, "validation", err.Error())
	default:
		// Anything unclassified is a storage or programming fault. The body
		// stays generic; the message is not the client's to see.
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": message, "code": code})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/platform/httpx"
	"github.com/roastline/api/internal/services"
)

const (
	maxAdminRequestBody = 16 * 1024
	defaultListLimit    = 50
	maxListLimit        = 200
)

// AdminOrderHandlers serves the back-office order surface. The router mounts
// these behind the admin session gate.
type AdminOrderHandlers struct {
	orders services.OrderService
}

// NewAdminOrderHandlers constructs admin order handlers.
func NewAdminOrderHandlers(orders services.OrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{orders: orders}
}

// Routes registers admin order endpoints under the provided router.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{paymentIntentID}", h.getOrder)
	r.Post("/orders/{paymentIntentID}/ship", h.shipOrder)
	r.Post("/orders/{paymentIntentID}/refund", h.refundOrder)
}

type shipOrderRequest struct {
	Carrier      string `json:"carrier"`
	TrackingCode string `json:"trackingCode"`
}

type refundOrderRequest struct {
	Amount *float64 `json:"amount"`
	Reason string   `json:"reason"`
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	status := domain.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !validOrderStatus(status) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown order status filter", http.StatusBadRequest))
		return
	}

	orders, err := h.orders.ListOrders(ctx, status, parseLimit(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, orderFromDomain(order))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": payload})
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "paymentIntentID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderFromDomain(order))
}

func (h *AdminOrderHandlers) shipOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req shipOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.ShipOrder(ctx, services.ShipOrderCommand{
		PaymentIntentID: chi.URLParam(r, "paymentIntentID"),
		Carrier:         strings.TrimSpace(req.Carrier),
		TrackingCode:    strings.TrimSpace(req.TrackingCode),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderFromDomain(order))
}

func (h *AdminOrderHandlers) refundOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req refundOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.RefundOrderCommand{
		PaymentIntentID: chi.URLParam(r, "paymentIntentID"),
		Reason:          strings.TrimSpace(req.Reason),
	}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "refund amount must be positive", http.StatusBadRequest))
			return
		}
		minor := domain.MoneyFromMajorUnits(*req.Amount, "").MinorUnits
		cmd.Amount = &minor
	}

	order, err := h.orders.RefundOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderFromDomain(order))
}

func validOrderStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusCompleted, domain.OrderStatusFailed, domain.OrderStatusRefunded:
		return true
	}
	return false
}

func parseLimit(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

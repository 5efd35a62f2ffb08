package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/platform/httpx"
	"github.com/roastline/api/internal/services"
)

const (
	maxCheckoutRequestBody = 8 * 1024
	idempotencyKeyHeader   = "Idempotency-Key"
)

// CheckoutHandlers exposes the public checkout endpoints. Both endpoints are
// unauthenticated; the cart is re-priced server side and the staged order
// stays provisional until the payment settles.
type CheckoutHandlers struct {
	checkout services.CheckoutService
	orders   services.OrderService
}

// NewCheckoutHandlers constructs handlers for the checkout surface.
func NewCheckoutHandlers(checkout services.CheckoutService, orders services.OrderService) *CheckoutHandlers {
	return &CheckoutHandlers{
		checkout: checkout,
		orders:   orders,
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payment-intent", h.createPaymentIntent)
	r.Post("/shipping", h.stageShipping)
}

type cartLineRequest struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type paymentIntentRequest struct {
	Items        []cartLineRequest `json:"items"`
	ReceiptEmail string            `json:"receiptEmail"`
}

type totalsPayload struct {
	Subtotal    float64 `json:"subtotal"`
	ShippingFee float64 `json:"shippingFee"`
	GrandTotal  float64 `json:"grandTotal"`
	Currency    string  `json:"currency"`
}

type paymentIntentResponse struct {
	PaymentIntentID string        `json:"paymentIntentId"`
	ClientSecret    string        `json:"clientSecret"`
	Totals          totalsPayload `json:"totals"`
	Items           []linePayload `json:"items"`
}

type stageShippingRequest struct {
	PaymentIntentID string          `json:"paymentIntentId"`
	ShippingAddress *addressPayload `json:"shippingAddress"`
	BillingAddress  *addressPayload `json:"billingAddress"`
	Client          *clientPayload  `json:"client"`
}

type stageShippingResponse struct {
	PaymentIntentID string `json:"paymentIntentId"`
	Status          string `json:"status"`
	StagedFields    int    `json:"stagedFields"`
}

func (h *CheckoutHandlers) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req paymentIntentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	lines := make([]domain.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, domain.CartLine{
			ItemID:           strings.TrimSpace(item.ID),
			Name:             strings.TrimSpace(item.Name),
			ClaimedUnitPrice: item.Price,
			Quantity:         item.Quantity,
		})
	}

	result, err := h.checkout.CreatePaymentIntent(ctx, services.CreatePaymentIntentCommand{
		Lines:          lines,
		ReceiptEmail:   strings.TrimSpace(req.ReceiptEmail),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, paymentIntentResponse{
		PaymentIntentID: result.PaymentIntentID,
		ClientSecret:    result.ClientSecret,
		Totals: totalsPayload{
			Subtotal:    majorUnits(result.Totals.Subtotal),
			ShippingFee: majorUnits(result.Totals.ShippingFee),
			GrandTotal:  majorUnits(result.Totals.GrandTotal),
			Currency:    result.Totals.Currency,
		},
		Items: linesFromDomain(result.Lines),
	})
}

func (h *CheckoutHandlers) stageShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req stageShippingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.StageShippingCommand{
		PaymentIntentID: strings.TrimSpace(req.PaymentIntentID),
		ShippingAddress: req.ShippingAddress.toDomain(),
		BillingAddress:  req.BillingAddress.toDomain(),
		Client:          req.Client.toDomain(),
	}

	order, err := h.orders.StageShipping(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	staged := 0
	if cmd.ShippingAddress != nil {
		staged++
	}
	if cmd.BillingAddress != nil {
		staged++
	}
	if cmd.Client != nil {
		staged++
	}
	httpx.WriteJSON(w, http.StatusOK, stageShippingResponse{
		PaymentIntentID: order.PaymentIntentID,
		Status:          string(order.Status),
		StagedFields:    staged,
	})
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var mismatch *services.PriceMismatchError
	switch {
	case errors.As(err, &mismatch):
		httpx.WriteError(ctx, w, httpx.NewError("price_mismatch", "claimed price deviates from the catalog", http.StatusBadRequest).WithDetails(map[string]any{
			"itemId":       mismatch.ItemID,
			"claimedPrice": majorUnits(mismatch.ClaimedPrice),
			"catalogPrice": majorUnits(mismatch.CatalogPrice),
		}))
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrPriceMismatch),
		errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("cart_invalid", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPricingUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "catalog temporarily unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrCheckoutPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment processor rejected the request", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to create payment intent", http.StatusInternalServerError))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "no order for that payment intent", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrRefundFailed):
		httpx.WriteError(ctx, w, httpx.NewError("refund_failed", "payment processor rejected the refund", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "order operation failed", http.StatusInternalServerError))
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/services"
)

func newCheckoutRouter(checkout services.CheckoutService, orders services.OrderService) chi.Router {
	r := chi.NewRouter()
	NewCheckoutHandlers(checkout, orders).Routes(r)
	return r
}

func TestCreatePaymentIntentReturnsVerifiedTotals(t *testing.T) {
	var gotCmd services.CreatePaymentIntentCommand
	checkout := &stubCheckoutService{
		createFunc: func(_ context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntentResult, error) {
			gotCmd = cmd
			return services.PaymentIntentResult{
				PaymentIntentID: "pi_123",
				ClientSecret:    "pi_123_secret",
				Totals:          domain.CheckoutTotals{Subtotal: 2500, ShippingFee: 499, GrandTotal: 2999, Currency: "GBP"},
				Lines: []domain.VerifiedLine{
					{ItemID: "v1", Name: "House Blend 250g", Quantity: 2, VerifiedUnitPrice: 1250, LineTotal: 2500, Source: domain.CatalogCoffeeVariant},
				},
			}, nil
		},
	}
	router := newCheckoutRouter(checkout, &stubOrderService{})

	body := `{"items":[{"id":"v1","name":"House Blend 250g","price":12.50,"quantity":2}],"receiptEmail":"kai@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/payment-intent", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "key-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCmd.IdempotencyKey != "key-1" {
		t.Fatalf("idempotency key not forwarded: %q", gotCmd.IdempotencyKey)
	}
	if len(gotCmd.Lines) != 1 || gotCmd.Lines[0].ClaimedUnitPrice != 12.50 {
		t.Fatalf("cart lines not forwarded: %+v", gotCmd.Lines)
	}

	var resp paymentIntentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PaymentIntentID != "pi_123" || resp.ClientSecret != "pi_123_secret" {
		t.Fatalf("unexpected intent fields: %+v", resp)
	}
	if resp.Totals.GrandTotal != 29.99 || resp.Totals.Currency != "GBP" {
		t.Fatalf("unexpected totals: %+v", resp.Totals)
	}
	if len(resp.Items) != 1 || resp.Items[0].UnitPrice != 12.50 {
		t.Fatalf("unexpected items: %+v", resp.Items)
	}
}

func TestCreatePaymentIntentRendersPriceMismatchDetail(t *testing.T) {
	checkout := &stubCheckoutService{
		createFunc: func(context.Context, services.CreatePaymentIntentCommand) (services.PaymentIntentResult, error) {
			return services.PaymentIntentResult{}, &services.PriceMismatchError{ItemID: "v1", ClaimedPrice: 999, CatalogPrice: 1250}
		},
	}
	router := newCheckoutRouter(checkout, &stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/payment-intent", strings.NewReader(`{"items":[{"id":"v1","price":9.99,"quantity":1}]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] != "price_mismatch" {
		t.Fatalf("expected price_mismatch, got %v", body["error"])
	}
	if body["itemId"] != "v1" || body["catalogPrice"] != 12.50 {
		t.Fatalf("mismatch detail missing: %v", body)
	}
}

func TestCreatePaymentIntentStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"empty cart", services.ErrEmptyCart, http.StatusBadRequest},
		{"unknown product", services.ErrProductNotFound, http.StatusBadRequest},
		{"catalog outage", services.ErrPricingUnavailable, http.StatusServiceUnavailable},
		{"psp rejection", services.ErrCheckoutPaymentFailed, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkout := &stubCheckoutService{
				createFunc: func(context.Context, services.CreatePaymentIntentCommand) (services.PaymentIntentResult, error) {
					return services.PaymentIntentResult{}, tc.err
				},
			}
			router := newCheckoutRouter(checkout, &stubOrderService{})

			req := httptest.NewRequest(http.MethodPost, "/payment-intent", strings.NewReader(`{"items":[{"id":"v1","price":1,"quantity":1}]}`))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestCreatePaymentIntentRejectsEmptyBody(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{}, &stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/payment-intent", strings.NewReader("   "))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d", rr.Code)
	}
}

func TestStageShippingForwardsMergedDetails(t *testing.T) {
	var gotCmd services.StageShippingCommand
	orders := &stubOrderService{
		stageFunc: func(_ context.Context, cmd services.StageShippingCommand) (domain.Order, error) {
			gotCmd = cmd
			return domain.Order{PaymentIntentID: cmd.PaymentIntentID, Status: domain.OrderStatusPending}, nil
		},
	}
	router := newCheckoutRouter(&stubCheckoutService{}, orders)

	body := `{
		"paymentIntentId": "pi_123",
		"shippingAddress": {"line1": "1 Bean St", "city": "London", "postalCode": "E1 6AN"},
		"client": {"name": "Kai", "email": "kai@example.com"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/shipping", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCmd.PaymentIntentID != "pi_123" {
		t.Fatalf("intent id not forwarded: %q", gotCmd.PaymentIntentID)
	}
	if gotCmd.ShippingAddress == nil || gotCmd.ShippingAddress.City != "London" {
		t.Fatalf("shipping address not forwarded: %+v", gotCmd.ShippingAddress)
	}
	if gotCmd.BillingAddress != nil {
		t.Fatalf("billing address fabricated: %+v", gotCmd.BillingAddress)
	}
	if gotCmd.Client == nil || gotCmd.Client.Email != "kai@example.com" {
		t.Fatalf("client not forwarded: %+v", gotCmd.Client)
	}

	var resp stageShippingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "pending" || resp.StagedFields != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestStageShippingRejectsMissingDetails(t *testing.T) {
	orders := &stubOrderService{
		stageFunc: func(context.Context, services.StageShippingCommand) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderInvalidInput
		},
	}
	router := newCheckoutRouter(&stubCheckoutService{}, orders)

	req := httptest.NewRequest(http.MethodPost, "/shipping", strings.NewReader(`{"paymentIntentId":"pi_123"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

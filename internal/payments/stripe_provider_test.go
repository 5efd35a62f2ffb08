package payments

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v78"
)

type stubIntentAPI struct {
	newFunc    func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	updateFunc func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	getFunc    func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func (s *stubIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.newFunc(params)
}

func (s *stubIntentAPI) Update(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.updateFunc(id, params)
}

func (s *stubIntentAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.getFunc(id, params)
}

type stubRefundAPI struct {
	newFunc func(params *stripe.RefundParams) (*stripe.Refund, error)
}

func (s *stubRefundAPI) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	return s.newFunc(params)
}

func newTestProvider(t *testing.T, intents stripePaymentIntentAPI, refunds stripeRefundAPI) *StripeProvider {
	t.Helper()
	if refunds == nil {
		refunds = &stubRefundAPI{newFunc: func(*stripe.RefundParams) (*stripe.Refund, error) {
			return nil, errors.New("unexpected refund call")
		}}
	}
	provider, err := NewStripeProvider(StripeProviderConfig{
		Clients: &stripeClients{intents: intents, refunds: refunds},
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider
}

func TestCreateIntentPassesIdempotencyKeyAndMetadata(t *testing.T) {
	var captured *stripe.PaymentIntentParams
	intents := &stubIntentAPI{
		newFunc: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			captured = params
			return &stripe.PaymentIntent{
				ID:           "pi_123",
				ClientSecret: "pi_123_secret",
				Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
				Amount:       2499,
				Currency:     "gbp",
			}, nil
		},
	}
	provider := newTestProvider(t, intents, nil)

	intent, err := provider.CreateIntent(context.Background(), IntentRequest{
		Amount:         2499,
		Currency:       "GBP",
		IdempotencyKey: "order-abc",
		Metadata:       map[string]string{"cart": `[{"id":"v1","qty":2}]`},
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if intent.ID != "pi_123" || intent.ClientSecret != "pi_123_secret" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if intent.Status != StatusPending {
		t.Fatalf("expected pending status, got %q", intent.Status)
	}
	if got := captured.IdempotencyKey; got == nil || *got != "order-abc" {
		t.Fatalf("idempotency key not forwarded: %v", got)
	}
	if got := *captured.Currency; got != "gbp" {
		t.Fatalf("expected lowercase currency, got %q", got)
	}
	if captured.Metadata["cart"] == "" {
		t.Fatalf("metadata not forwarded")
	}
	if captured.AutomaticPaymentMethods == nil || !*captured.AutomaticPaymentMethods.Enabled {
		t.Fatalf("automatic payment methods not enabled")
	}
}

func TestCreateIntentRejectsNonPositiveAmount(t *testing.T) {
	provider := newTestProvider(t, &stubIntentAPI{}, nil)

	if _, err := provider.CreateIntent(context.Background(), IntentRequest{Amount: 0, Currency: "GBP"}); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if _, err := provider.CreateIntent(context.Background(), IntentRequest{Amount: -100, Currency: "GBP"}); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestClampMetadataTruncatesDeterministically(t *testing.T) {
	oversized := strings.Repeat("x", stripeMetadataValueLimit+100)

	first := clampMetadata(map[string]string{"cart": oversized, "ok": "short"})
	second := clampMetadata(map[string]string{"cart": oversized, "ok": "short"})

	if len(first["cart"]) != stripeMetadataValueLimit {
		t.Fatalf("expected clamped length %d, got %d", stripeMetadataValueLimit, len(first["cart"]))
	}
	if !strings.HasSuffix(first["cart"], truncationMarker) {
		t.Fatalf("expected truncation marker suffix, got %q", first["cart"][len(first["cart"])-20:])
	}
	if first["cart"] != second["cart"] {
		t.Fatal("truncation is not deterministic")
	}
	if first["ok"] != "short" {
		t.Fatalf("short value altered: %q", first["ok"])
	}
}

func TestUpdateMetadataFallsBackToLookupWhenEmpty(t *testing.T) {
	var gotID string
	intents := &stubIntentAPI{
		getFunc: func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			gotID = id
			return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusSucceeded}, nil
		},
	}
	provider := newTestProvider(t, intents, nil)

	intent, err := provider.UpdateMetadata(context.Background(), MetadataUpdate{IntentID: "pi_42"})
	if err != nil {
		t.Fatalf("update metadata: %v", err)
	}
	if gotID != "pi_42" {
		t.Fatalf("expected lookup of pi_42, got %q", gotID)
	}
	if intent.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %q", intent.Status)
	}
}

func TestRefundIntentMapsStatus(t *testing.T) {
	refunds := &stubRefundAPI{
		newFunc: func(params *stripe.RefundParams) (*stripe.Refund, error) {
			if got := *params.PaymentIntent; got != "pi_7" {
				t.Fatalf("unexpected intent id %q", got)
			}
			return &stripe.Refund{ID: "re_1", Amount: 1500, Status: stripe.RefundStatusSucceeded}, nil
		},
	}
	provider := newTestProvider(t, &stubIntentAPI{}, refunds)

	refund, err := provider.RefundIntent(context.Background(), RefundRequest{IntentID: "pi_7"})
	if err != nil {
		t.Fatalf("refund intent: %v", err)
	}
	if refund.Status != StatusRefunded {
		t.Fatalf("expected refunded, got %q", refund.Status)
	}
	if refund.Amount != 1500 {
		t.Fatalf("expected amount 1500, got %d", refund.Amount)
	}
}

func TestWrapStripeErrorPreservesCode(t *testing.T) {
	intents := &stubIntentAPI{
		newFunc: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return nil, &stripe.Error{Code: stripe.ErrorCodeCardDeclined, Msg: "card declined"}
		},
	}
	provider := newTestProvider(t, intents, nil)

	_, err := provider.CreateIntent(context.Background(), IntentRequest{Amount: 100, Currency: "GBP"})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if provErr.Code != string(stripe.ErrorCodeCardDeclined) {
		t.Fatalf("expected card_declined code, got %q", provErr.Code)
	}
}

func TestManagerResolvesByNameAndDefault(t *testing.T) {
	provider := newTestProvider(t, &stubIntentAPI{}, nil)
	mgr, err := NewManager(provider)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if _, err := mgr.Provider(""); err != nil {
		t.Fatalf("default provider: %v", err)
	}
	if _, err := mgr.Provider("STRIPE"); err != nil {
		t.Fatalf("named provider: %v", err)
	}
	if _, err := mgr.Provider("paypal"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

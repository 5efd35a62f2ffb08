package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v78"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/services"
)

func newWebhookFixture(t *testing.T, orders services.OrderService) (*WebhookHandlers, chi.Router) {
	t.Helper()
	handlers, err := NewWebhookHandlers(WebhookHandlersConfig{
		StripeWebhookSecret: "whsec_test",
		Orders:              orders,
		Clock:               func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new webhook handlers: %v", err)
	}
	r := chi.NewRouter()
	handlers.Routes(r)
	return handlers, r
}

func intentEvent(eventType string, intent map[string]any) stripe.Event {
	raw, _ := json.Marshal(intent)
	return stripe.Event{
		Type:    stripe.EventType(eventType),
		Created: time.Date(2026, 8, 31, 11, 59, 0, 0, time.UTC).Unix(),
		Data:    &stripe.EventData{Raw: raw},
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	_, router := newWebhookFixture(t, &stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", rr.Code)
	}
}

func TestStripeWebhookReconcilesSucceededIntent(t *testing.T) {
	var gotCmd services.ReconcilePaymentCommand
	orders := &stubOrderService{
		reconcileFunc: func(_ context.Context, cmd services.ReconcilePaymentCommand) (services.ReconcileResult, error) {
			gotCmd = cmd
			return services.ReconcileResult{
				Order: domain.Order{PaymentIntentID: cmd.PaymentIntentID, Status: domain.OrderStatusCompleted},
			}, nil
		},
	}
	handlers, router := newWebhookFixture(t, orders)
	handlers.verify = func([]byte, string) (stripe.Event, error) {
		return intentEvent("payment_intent.succeeded", map[string]any{
			"id":              "pi_123",
			"amount":          2999,
			"amount_received": 2999,
			"currency":        "gbp",
			"metadata":        map[string]string{"total": "2999"},
		}), nil
	}

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCmd.PaymentIntentID != "pi_123" || gotCmd.Amount != 2999 {
		t.Fatalf("reconcile command not forwarded: %+v", gotCmd)
	}
	if gotCmd.Currency != "GBP" {
		t.Fatalf("currency not normalised: %q", gotCmd.Currency)
	}
	if gotCmd.Metadata["total"] != "2999" {
		t.Fatalf("metadata not forwarded: %v", gotCmd.Metadata)
	}
	if gotCmd.OccurredAt.IsZero() {
		t.Fatalf("event time not forwarded")
	}
}

func TestStripeWebhookRefusesMetadataFailuresForRedelivery(t *testing.T) {
	orders := &stubOrderService{
		reconcileFunc: func(context.Context, services.ReconcilePaymentCommand) (services.ReconcileResult, error) {
			return services.ReconcileResult{}, services.ErrReconcileMetadata
		},
	}
	handlers, router := newWebhookFixture(t, orders)
	handlers.verify = func([]byte, string) (stripe.Event, error) {
		return intentEvent("payment_intent.succeeded", map[string]any{"id": "pi_123", "amount": 100}), nil
	}

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 so the event is redelivered, got %d", rr.Code)
	}
}

func TestStripeWebhookRecordsPaymentFailure(t *testing.T) {
	var gotCmd services.FailPaymentCommand
	orders := &stubOrderService{
		failFunc: func(_ context.Context, cmd services.FailPaymentCommand) error {
			gotCmd = cmd
			return nil
		},
	}
	handlers, router := newWebhookFixture(t, orders)
	handlers.verify = func([]byte, string) (stripe.Event, error) {
		return intentEvent("payment_intent.payment_failed", map[string]any{
			"id":                 "pi_123",
			"last_payment_error": map[string]any{"message": "card declined"},
		}), nil
	}

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotCmd.PaymentIntentID != "pi_123" {
		t.Fatalf("intent id not forwarded: %q", gotCmd.PaymentIntentID)
	}
	if gotCmd.Reason != "card declined" {
		t.Fatalf("failure reason not forwarded: %q", gotCmd.Reason)
	}
}

func TestStripeWebhookAcknowledgesUnhandledEvents(t *testing.T) {
	orders := &stubOrderService{
		reconcileFunc: func(context.Context, services.ReconcilePaymentCommand) (services.ReconcileResult, error) {
			return services.ReconcileResult{}, errors.New("must not be called")
		},
	}
	handlers, router := newWebhookFixture(t, orders)
	handlers.verify = func([]byte, string) (stripe.Event, error) {
		return intentEvent("charge.updated", map[string]any{"id": "ch_1"}), nil
	}

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for unhandled event, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ignored"] != "charge.updated" {
		t.Fatalf("expected ignored marker, got %v", body)
	}
}

func TestStripeWebhookRejectsEventWithoutIntent(t *testing.T) {
	handlers, router := newWebhookFixture(t, &stubOrderService{})
	handlers.verify = func([]byte, string) (stripe.Event, error) {
		return stripe.Event{Type: "payment_intent.succeeded", Data: &stripe.EventData{}}, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/stripe", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for event without intent, got %d", rr.Code)
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/roastline/api/internal/platform/httpx"
	"github.com/roastline/api/internal/services"
)

// Stripe webhook payloads are bounded but larger than admin request bodies.
const maxWebhookBody = 64 * 1024

const stripeSignatureHeader = "Stripe-Signature"

// WebhookHandlersConfig wires the dependencies for the webhook surface.
type WebhookHandlersConfig struct {
	StripeWebhookSecret string
	Orders              services.OrderService
	Clock               func() time.Time
	Logger              func(r *http.Request, event string, fields map[string]any)
}

// WebhookHandlers receives payment lifecycle signals from the processor.
// Responses steer redelivery: a non-2xx answer makes Stripe retry the event.
type WebhookHandlers struct {
	orders services.OrderService
	clock  func() time.Time
	logger func(r *http.Request, event string, fields map[string]any)
	verify func(payload []byte, header string) (stripe.Event, error)
}

// NewWebhookHandlers constructs handlers validating required configuration.
func NewWebhookHandlers(cfg WebhookHandlersConfig) (*WebhookHandlers, error) {
	if cfg.Orders == nil {
		return nil, errors.New("webhook handlers: order service is required")
	}
	secret := strings.TrimSpace(cfg.StripeWebhookSecret)
	if secret == "" {
		return nil, errors.New("webhook handlers: stripe webhook secret is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(*http.Request, string, map[string]any) {}
	}
	return &WebhookHandlers{
		orders: cfg.Orders,
		clock:  clock,
		logger: logger,
		verify: func(payload []byte, header string) (stripe.Event, error) {
			return webhook.ConstructEvent(payload, header, secret)
		},
	}, nil
}

// Routes registers webhook endpoints under the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read webhook payload", http.StatusBadRequest))
		return
	}
	if int64(len(payload)) > maxWebhookBody {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "webhook payload too large", http.StatusRequestEntityTooLarge))
		return
	}

	event, err := h.verify(payload, r.Header.Get(stripeSignatureHeader))
	if err != nil {
		h.logger(r, "webhooks.signature_invalid", map[string]any{"error": err.Error()})
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
		return
	}

	switch string(event.Type) {
	case "payment_intent.succeeded":
		h.handlePaymentSucceeded(w, r, event)
	case "payment_intent.payment_failed":
		h.handlePaymentFailed(w, r, event)
	default:
		// Unsubscribed event types are acknowledged so Stripe stops sending them.
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"received": true, "ignored": string(event.Type)})
	}
}

func (h *WebhookHandlers) handlePaymentSucceeded(w http.ResponseWriter, r *http.Request, event stripe.Event) {
	ctx := r.Context()

	intent, err := decodeEventIntent(event)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_event", err.Error(), http.StatusBadRequest))
		return
	}

	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}

	result, err := h.orders.ReconcilePayment(ctx, services.ReconcilePaymentCommand{
		PaymentIntentID: intent.ID,
		Amount:          amount,
		Currency:        strings.ToUpper(string(intent.Currency)),
		Metadata:        intent.Metadata,
		OccurredAt:      eventTime(event, h.clock),
	})
	if err != nil {
		h.logger(r, "webhooks.reconcile_failed", map[string]any{
			"intent_id": intent.ID,
			"error":     err.Error(),
		})
		switch {
		case errors.Is(err, services.ErrReconcileMetadata), errors.Is(err, services.ErrReconcileAmountMismatch):
			// Refusing the event keeps it in Stripe's retry queue until the
			// underlying data problem is investigated.
			httpx.WriteError(ctx, w, httpx.NewError("reconciliation_failed", err.Error(), http.StatusUnprocessableEntity))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to reconcile payment", http.StatusInternalServerError))
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"received":         true,
		"paymentIntentId":  result.Order.PaymentIntentID,
		"status":           string(result.Order.Status),
		"alreadyCompleted": result.AlreadyCompleted,
	})
}

func (h *WebhookHandlers) handlePaymentFailed(w http.ResponseWriter, r *http.Request, event stripe.Event) {
	ctx := r.Context()

	intent, err := decodeEventIntent(event)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_event", err.Error(), http.StatusBadRequest))
		return
	}

	reason := ""
	if intent.LastPaymentError != nil {
		reason = intent.LastPaymentError.Msg
	}

	err = h.orders.FailPayment(ctx, services.FailPaymentCommand{
		PaymentIntentID: intent.ID,
		Reason:          reason,
		OccurredAt:      eventTime(event, h.clock),
	})
	if err != nil {
		h.logger(r, "webhooks.fail_payment_error", map[string]any{
			"intent_id": intent.ID,
			"error":     err.Error(),
		})
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to record payment failure", http.StatusInternalServerError))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"received":        true,
		"paymentIntentId": intent.ID,
	})
}

func decodeEventIntent(event stripe.Event) (stripe.PaymentIntent, error) {
	var intent stripe.PaymentIntent
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return intent, errors.New("event carries no payment intent")
	}
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return intent, errors.New("event payload is not a payment intent")
	}
	if strings.TrimSpace(intent.ID) == "" {
		return intent, errors.New("event payment intent has no id")
	}
	return intent, nil
}

func eventTime(event stripe.Event, clock func() time.Time) time.Time {
	if event.Created > 0 {
		return time.Unix(event.Created, 0).UTC()
	}
	return clock().UTC()
}

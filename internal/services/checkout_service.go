package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roastline/api/internal/payments"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutPaymentFailed indicates the PSP intent could not be created.
	ErrCheckoutPaymentFailed = errors.New("checkout: payment failed")
)

// checkoutIntentCreator abstracts the payment provider for easier testing.
type checkoutIntentCreator interface {
	CreateIntent(ctx context.Context, req payments.IntentRequest) (payments.Intent, error)
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Pricing  PricingService
	Payments checkoutIntentCreator
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	pricing  PricingService
	payments checkoutIntentCreator
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Pricing == nil {
		return nil, errors.New("checkout service: pricing service is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment provider is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &checkoutService{
		pricing:  deps.Pricing,
		payments: deps.Payments,
		now:      nowUTC(deps.Clock),
		logger:   logger,
	}, nil
}

// CreatePaymentIntent verifies the cart against the catalog and opens a
// payment intent for the verified total. The client's claimed prices never
// reach the PSP.
func (s *checkoutService) CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntentResult, error) {
	cart, err := s.pricing.VerifyCart(ctx, cmd.Lines)
	if err != nil {
		return PaymentIntentResult{}, err
	}

	idempotencyKey := strings.TrimSpace(cmd.IdempotencyKey)
	metadata, err := encodeIntentMetadata(cart, idempotencyKey)
	if err != nil {
		return PaymentIntentResult{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}

	intent, err := s.payments.CreateIntent(ctx, payments.IntentRequest{
		Amount:         cart.Totals.GrandTotal,
		Currency:       cart.Totals.Currency,
		Description:    orderDescription(cart),
		ReceiptEmail:   strings.TrimSpace(cmd.ReceiptEmail),
		Metadata:       metadata,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		s.logger(ctx, "checkout.intent_failed", map[string]any{
			"amount": cart.Totals.GrandTotal,
			"error":  err.Error(),
		})
		return PaymentIntentResult{}, fmt.Errorf("%w: %v", ErrCheckoutPaymentFailed, err)
	}

	s.logger(ctx, "checkout.intent_created", map[string]any{
		"intent_id": intent.ID,
		"amount":    cart.Totals.GrandTotal,
		"currency":  cart.Totals.Currency,
		"lines":     len(cart.Lines),
	})
	return PaymentIntentResult{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Totals:          cart.Totals,
		Lines:           cart.Lines,
	}, nil
}

func orderDescription(cart VerifiedCart) string {
	var units int
	for _, line := range cart.Lines {
		units += line.Quantity
	}
	return fmt.Sprintf("Roastline order: %d items", units)
}

package payments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const (
	// Stripe rejects metadata values longer than 500 characters.
	stripeMetadataValueLimit = 500
	// truncationMarker replaces the tail of oversized metadata values so the
	// truncation is visible in the Stripe dashboard.
	truncationMarker = "...[truncated]"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Update(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	intents stripePaymentIntentAPI
	refunds stripeRefundAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   StripeLogger
	Clock    func() time.Time
	Clients  *stripeClients
}

// StripeProvider implements the Provider interface using Stripe PaymentIntents.
type StripeProvider struct {
	api    stripeClients
	clock  func() time.Time
	logger StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents: sc.PaymentIntents,
			refunds: sc.Refunds,
		}
	}
	if clients.intents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api: clients,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Name identifies the provider within the manager.
func (p *StripeProvider) Name() string { return "stripe" }

// CreateIntent creates a payment intent with automatic payment methods and
// the caller's metadata. The caller's idempotency key is passed through to
// Stripe so retried requests return the original intent.
func (p *StripeProvider) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if p == nil {
		return Intent{}, errors.New("stripe: provider is nil")
	}
	if req.Amount <= 0 {
		return Intent{}, errors.New("stripe: amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return Intent{}, errors.New("stripe: currency is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	if len(req.Metadata) > 0 {
		params.Metadata = clampMetadata(req.Metadata)
	}

	intent, err := p.api.intents.New(params)
	if err != nil {
		return Intent{}, wrapStripeError("create intent", err)
	}

	p.logger(ctx, "stripe.intent_created", map[string]any{
		"intent_id": intent.ID,
		"amount":    intent.Amount,
		"currency":  string(intent.Currency),
	})
	return fromStripeIntent(intent), nil
}

// UpdateMetadata merges metadata onto an existing intent. Stripe merges
// per-key, so keys absent from the update survive.
func (p *StripeProvider) UpdateMetadata(ctx context.Context, req MetadataUpdate) (Intent, error) {
	if p == nil {
		return Intent{}, errors.New("stripe: provider is nil")
	}
	id := strings.TrimSpace(req.IntentID)
	if id == "" {
		return Intent{}, errors.New("stripe: intent id is required")
	}
	if len(req.Metadata) == 0 {
		return p.LookupIntent(ctx, id)
	}

	params := &stripe.PaymentIntentParams{
		Metadata: clampMetadata(req.Metadata),
	}
	params.Context = ctx

	intent, err := p.api.intents.Update(id, params)
	if err != nil {
		return Intent{}, wrapStripeError("update metadata", err)
	}

	p.logger(ctx, "stripe.intent_metadata_updated", map[string]any{
		"intent_id": intent.ID,
		"keys":      metadataKeys(req.Metadata),
	})
	return fromStripeIntent(intent), nil
}

// LookupIntent fetches the current intent state from Stripe.
func (p *StripeProvider) LookupIntent(ctx context.Context, intentID string) (Intent, error) {
	if p == nil {
		return Intent{}, errors.New("stripe: provider is nil")
	}
	id := strings.TrimSpace(intentID)
	if id == "" {
		return Intent{}, errors.New("stripe: intent id is required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := p.api.intents.Get(id, params)
	if err != nil {
		return Intent{}, wrapStripeError("lookup intent", err)
	}
	return fromStripeIntent(intent), nil
}

// RefundIntent issues a refund against the intent's latest charge.
func (p *StripeProvider) RefundIntent(ctx context.Context, req RefundRequest) (Refund, error) {
	if p == nil {
		return Refund{}, errors.New("stripe: provider is nil")
	}
	id := strings.TrimSpace(req.IntentID)
	if id == "" {
		return Refund{}, errors.New("stripe: intent id is required")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(id),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.Amount != nil {
		params.Amount = stripe.Int64(*req.Amount)
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}

	refund, err := p.api.refunds.New(params)
	if err != nil {
		return Refund{}, wrapStripeError("refund intent", err)
	}

	p.logger(ctx, "stripe.refund_created", map[string]any{
		"refund_id": refund.ID,
		"intent_id": id,
		"amount":    refund.Amount,
	})
	return Refund{
		ID:       refund.ID,
		IntentID: id,
		Amount:   refund.Amount,
		Status:   refundStatus(refund.Status),
	}, nil
}

// clampMetadata enforces Stripe's per-value size limit deterministically:
// oversized values keep their head and end with the truncation marker.
func clampMetadata(metadata map[string]string) map[string]string {
	clamped := make(map[string]string, len(metadata))
	for key, value := range metadata {
		if len(value) > stripeMetadataValueLimit {
			value = value[:stripeMetadataValueLimit-len(truncationMarker)] + truncationMarker
		}
		clamped[key] = value
	}
	return clamped
}

func metadataKeys(metadata map[string]string) []string {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func fromStripeIntent(intent *stripe.PaymentIntent) Intent {
	if intent == nil {
		return Intent{}
	}
	return Intent{
		ID:           intent.ID,
		Provider:     "stripe",
		ClientSecret: intent.ClientSecret,
		Status:       intentStatus(intent.Status),
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		Metadata:     intent.Metadata,
	}
}

func intentStatus(status stripe.PaymentIntentStatus) Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusProcessing:
		return StatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	default:
		return StatusPending
	}
}

func refundStatus(status stripe.RefundStatus) Status {
	switch status {
	case stripe.RefundStatusSucceeded:
		return StatusRefunded
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return StatusFailed
	default:
		return StatusPending
	}
}

func wrapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &ProviderError{
			Provider: "stripe",
			Op:       op,
			Code:     string(stripeErr.Code),
			Message:  stripeErr.Msg,
			Err:      err,
		}
	}
	return &ProviderError{Provider: "stripe", Op: op, Err: err}
}

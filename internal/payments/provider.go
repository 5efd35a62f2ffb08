package payments

import (
	"context"
	"errors"
	"strings"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or PSP confirmation.
	StatusPending Status = "pending"
	// StatusProcessing indicates the PSP is settling the payment.
	StatusProcessing Status = "processing"
	// StatusSucceeded indicates the PSP reports the payment as successfully captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the PSP reports a failure and no further action is possible.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the payment has been refunded.
	StatusRefunded Status = "refunded"
)

// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// IntentRequest captures the payload required to create a payment intent.
type IntentRequest struct {
	Amount         int64
	Currency       string
	Description    string
	ReceiptEmail   string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent represents a PSP payment intent returned to the client.
type Intent struct {
	ID           string
	Provider     string
	ClientSecret string
	Status       Status
	Amount       int64
	Currency     string
	Metadata     map[string]string
}

// MetadataUpdate merges additional metadata onto an existing intent. Existing
// keys not present in the update are preserved by the provider.
type MetadataUpdate struct {
	IntentID string
	Metadata map[string]string
}

// RefundRequest defines a PSP refund attempt. A nil Amount refunds in full.
type RefundRequest struct {
	IntentID       string
	Amount         *int64
	Reason         string
	IdempotencyKey string
}

// Refund normalises the PSP refund result.
type Refund struct {
	ID       string
	IntentID string
	Amount   int64
	Status   Status
}

// Provider abstracts a payment service provider.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	UpdateMetadata(ctx context.Context, req MetadataUpdate) (Intent, error)
	LookupIntent(ctx context.Context, intentID string) (Intent, error)
	RefundIntent(ctx context.Context, req RefundRequest) (Refund, error)
}

// Manager resolves providers by name.
type Manager struct {
	providers map[string]Provider
	fallback  string
}

// NewManager registers the given providers; the first becomes the default.
func NewManager(providers ...Provider) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	m := &Manager{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			return nil, errors.New("payments: nil provider")
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			return nil, errors.New("payments: provider name is required")
		}
		if _, exists := m.providers[name]; exists {
			return nil, errors.New("payments: duplicate provider " + name)
		}
		m.providers[name] = p
		if m.fallback == "" {
			m.fallback = name
		}
	}
	return m, nil
}

// Provider returns the provider registered under name, or the default when
// name is empty.
func (m *Manager) Provider(name string) (Provider, error) {
	if m == nil || len(m.providers) == 0 {
		return nil, ErrUnsupportedProvider
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = m.fallback
	}
	provider, ok := m.providers[key]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return provider, nil
}

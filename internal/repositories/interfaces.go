package repositories

import (
	"context"
	"time"

	domain "github.com/roastline/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Catalog() CatalogRepository
	Orders() OrderRepository
	Invoices() InvoiceRepository
	Settings() SettingsRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogRepository resolves catalog items for price verification. Lookups
// cascade: coffee variant by id, then coffee by id, then equipment by id,
// then equipment by slug.
type CatalogRepository interface {
	ResolveItem(ctx context.Context, itemID string) (domain.CatalogItem, error)
}

// StagingDetails carries the optional order fields that may arrive before or
// after payment settlement. Nil fields are left untouched by MergeStaging.
type StagingDetails struct {
	ShippingAddress   *domain.Address
	BillingAddress    *domain.Address
	Client            *domain.ClientDetails
	ShippingConfirmed bool
}

// ReconcileInput is the verified payment data applied when a payment succeeds.
type ReconcileInput struct {
	Items       []domain.VerifiedLine
	Subtotal    int64
	ShippingFee int64
	Total       int64
	Currency    string
	Flags       domain.OrderFlags
	CompletedAt time.Time
}

// OrderRepository persists orders keyed by payment intent. At most one order
// exists per payment intent; concurrent writers converge on the same record.
type OrderRepository interface {
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)

	// MergeStaging upserts the order record for the intent and merges the
	// provided detail fields without touching status, items or totals.
	MergeStaging(ctx context.Context, paymentIntentID string, details StagingDetails, now time.Time) (domain.Order, error)

	// Complete transitions the order to completed, applying the reconciled
	// payment data. It creates the order if no staged record exists. When the
	// order is already completed it returns the stored order and
	// alreadyCompleted=true without writing.
	Complete(ctx context.Context, paymentIntentID string, input ReconcileInput) (order domain.Order, alreadyCompleted bool, err error)

	// MarkFailed transitions a pending or processing order to failed. Orders
	// already completed are left untouched and reported via guarded=true.
	MarkFailed(ctx context.Context, paymentIntentID string, reason string, now time.Time) (guarded bool, err error)

	// SetFlags overwrites the degraded-path flags on an existing order.
	SetFlags(ctx context.Context, paymentIntentID string, flags domain.OrderFlags) error

	// RecordShipment stores fulfillment details on a completed order.
	RecordShipment(ctx context.Context, paymentIntentID string, fulfillment domain.OrderFulfillment, now time.Time) error

	// MarkRefunded transitions a completed order to refunded.
	MarkRefunded(ctx context.Context, paymentIntentID string, refundedAt time.Time) error
}

// OrderListFilter narrows order listings for the back office.
type OrderListFilter struct {
	Status domain.OrderStatus
	Limit  int
}

// InvoiceRepository persists invoices. Invoice numbers are unique; Insert
// fails with a conflict when the number is already taken.
type InvoiceRepository interface {
	Insert(ctx context.Context, invoice domain.Invoice) error
	FindByNumber(ctx context.Context, number string) (domain.Invoice, error)
	List(ctx context.Context, filter InvoiceListFilter) ([]domain.Invoice, error)
	MarkPaid(ctx context.Context, number string, paidAt time.Time) (domain.Invoice, error)
}

// InvoiceListFilter narrows invoice listings for the back office.
type InvoiceListFilter struct {
	Source        domain.InvoiceSource
	PaymentStatus domain.InvoicePaymentStatus
	Limit         int
}

// SettingsRepository stores the runtime shipping policy.
type SettingsRepository interface {
	ShippingSettings(ctx context.Context) (domain.ShippingSettings, error)
	SaveShippingSettings(ctx context.Context, settings domain.ShippingSettings) error
}

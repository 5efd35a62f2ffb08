package services

import (
	"context"
	"time"

	domain "github.com/roastline/api/internal/domain"
)

// VerifiedCart is the result of price verification: catalog-priced lines plus
// derived totals.
type VerifiedCart struct {
	Lines  []domain.VerifiedLine
	Totals domain.CheckoutTotals
}

// PricingService re-prices client carts against the catalog and derives totals.
type PricingService interface {
	VerifyCart(ctx context.Context, lines []domain.CartLine) (VerifiedCart, error)
	Totals(ctx context.Context, subtotal int64) (domain.CheckoutTotals, error)
}

// CreatePaymentIntentCommand carries the checkout payload from the client.
type CreatePaymentIntentCommand struct {
	Lines          []domain.CartLine
	ReceiptEmail   string
	IdempotencyKey string
}

// PaymentIntentResult is returned to the client for payment confirmation.
type PaymentIntentResult struct {
	PaymentIntentID string
	ClientSecret    string
	Totals          domain.CheckoutTotals
	Lines           []domain.VerifiedLine
}

// CheckoutService verifies carts and opens payment intents at the PSP.
type CheckoutService interface {
	CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntentResult, error)
}

// StageShippingCommand carries order details submitted ahead of settlement.
type StageShippingCommand struct {
	PaymentIntentID string
	ShippingAddress *domain.Address
	BillingAddress  *domain.Address
	Client          *domain.ClientDetails
}

// ReconcilePaymentCommand carries a verified payment-success event.
type ReconcilePaymentCommand struct {
	PaymentIntentID string
	Amount          int64
	Currency        string
	Metadata        map[string]string
	OccurredAt      time.Time
}

// ReconcileResult reports what the reconciler did for an event.
type ReconcileResult struct {
	Order            domain.Order
	AlreadyCompleted bool
	InvoiceNumber    string
}

// FailPaymentCommand carries a verified payment-failure event.
type FailPaymentCommand struct {
	PaymentIntentID string
	Reason          string
	OccurredAt      time.Time
}

// ShipOrderCommand records fulfillment from the back office.
type ShipOrderCommand struct {
	PaymentIntentID string
	Carrier         string
	TrackingCode    string
}

// RefundOrderCommand refunds a completed order at the PSP and locally.
type RefundOrderCommand struct {
	PaymentIntentID string
	Amount          *int64
	Reason          string
}

// OrderService stages order details, reconciles settled payments and serves
// the back office.
type OrderService interface {
	StageShipping(ctx context.Context, cmd StageShippingCommand) (domain.Order, error)
	ReconcilePayment(ctx context.Context, cmd ReconcilePaymentCommand) (ReconcileResult, error)
	FailPayment(ctx context.Context, cmd FailPaymentCommand) error
	GetOrder(ctx context.Context, paymentIntentID string) (domain.Order, error)
	ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error)
	ShipOrder(ctx context.Context, cmd ShipOrderCommand) (domain.Order, error)
	RefundOrder(ctx context.Context, cmd RefundOrderCommand) (domain.Order, error)
}

// CreateInvoiceCommand raises a manual invoice from the back office.
type CreateInvoiceCommand struct {
	OrderNumber string
	Items       []domain.VerifiedLine
	Shipping    int64
	Currency    string
	Client      domain.ClientDetails
	DueDate     *time.Time
}

// InvoiceService issues and settles invoices.
type InvoiceService interface {
	CreateManualInvoice(ctx context.Context, cmd CreateInvoiceCommand) (domain.Invoice, error)
	CreateFromOrder(ctx context.Context, order domain.Order) (domain.Invoice, error)
	MarkPaid(ctx context.Context, invoiceNumber string) (domain.Invoice, error)
	GetInvoice(ctx context.Context, invoiceNumber string) (domain.Invoice, error)
	ListInvoices(ctx context.Context, source domain.InvoiceSource, limit int) ([]domain.Invoice, error)
}

// SettingsService reads and updates the runtime shipping policy.
type SettingsService interface {
	ShippingSettings(ctx context.Context) (domain.ShippingSettings, error)
	UpdateShippingSettings(ctx context.Context, settings domain.ShippingSettings) (domain.ShippingSettings, error)
}

// OrderNotification is the payload handed to notification dispatchers.
type OrderNotification struct {
	Order         domain.Order
	InvoiceNumber string
}

// NotificationDispatcher delivers order lifecycle emails. Dispatch failures
// are soft: the caller records them on the order and moves on.
type NotificationDispatcher interface {
	DispatchOrderConfirmation(ctx context.Context, notification OrderNotification) error
	DispatchShipmentNotice(ctx context.Context, notification OrderNotification) error
	DispatchRefundNotice(ctx context.Context, notification OrderNotification) error
}

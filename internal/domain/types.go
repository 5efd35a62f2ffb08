package domain

import (
	"fmt"
	"time"
)

// Money carries an amount in integer minor units with an explicit currency.
// Prices never travel as floating point inside the service; decimal major
// units appear only at the API boundary.
type Money struct {
	MinorUnits int64
	Currency   string
}

// MajorUnits renders the amount as decimal major units for API responses,
// rounding half-up to two decimal places.
func (m Money) MajorUnits() float64 {
	return float64(m.MinorUnits) / 100
}

// String renders the amount for logs, e.g. "GBP 12.50".
func (m Money) String() string {
	return fmt.Sprintf("%s %d.%02d", m.Currency, m.MinorUnits/100, m.MinorUnits%100)
}

// MoneyFromMajorUnits converts a decimal major-unit amount (as submitted by
// clients) into minor units, rounding half-up.
func MoneyFromMajorUnits(amount float64, currency string) Money {
	minor := int64(amount*100 + 0.5)
	if amount < 0 {
		minor = int64(amount*100 - 0.5)
	}
	return Money{MinorUnits: minor, Currency: currency}
}

// CatalogSource identifies which catalog table an item resolved from.
type CatalogSource string

const (
	// CatalogCoffeeVariant resolves from the coffee variant table (bag size/grind).
	CatalogCoffeeVariant CatalogSource = "coffee_variant"
	// CatalogCoffee resolves from the coffee table.
	CatalogCoffee CatalogSource = "coffee"
	// CatalogEquipment resolves from the equipment table (by id or slug).
	CatalogEquipment CatalogSource = "equipment"
)

// CartLine is a client-submitted, untrusted cart entry.
type CartLine struct {
	ItemID           string
	Name             string
	ClaimedUnitPrice float64
	Quantity         int
}

// VerifiedLine is a cart entry re-priced against the catalog.
type VerifiedLine struct {
	ItemID            string
	Name              string
	Quantity          int
	VerifiedUnitPrice int64
	LineTotal         int64
	Source            CatalogSource
}

// CheckoutTotals derives from a verified cart; all amounts in minor units.
type CheckoutTotals struct {
	Subtotal    int64
	ShippingFee int64
	GrandTotal  int64
	Currency    string
}

// Address captures shipping or billing address fields. All fields optional;
// staging merges field-by-field.
type Address struct {
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// IsZero reports whether no field of the address is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// ClientDetails identifies the customer placing an order.
type ClientDetails struct {
	Name  string
	Email string
	Phone string
}

// IsZero reports whether no field of the client details is set.
func (c ClientDetails) IsZero() bool {
	return c == ClientDetails{}
}

// OrderStatus enumerates order lifecycle states. Only the reconciler may move
// an order out of pending.
type OrderStatus string

const (
	// OrderStatusPending marks a provisional order awaiting payment settlement.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing marks an order whose payment is in flight at the processor.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted marks a reconciled, paid order. Terminal success.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusFailed marks an order whose payment failed. Terminal.
	OrderStatusFailed OrderStatus = "failed"
	// OrderStatusRefunded marks a completed order that was refunded. Terminal.
	OrderStatusRefunded OrderStatus = "refunded"
)

// OrderFlags records reconciliation provenance and degraded-path markers.
type OrderFlags struct {
	ShippingConfirmed    bool
	PricesVerified       bool
	ProcessorSyncPending bool
	NotificationFailed   bool
	IdempotencyKey       string
}

// OrderFulfillment holds shipment details recorded by the back office.
type OrderFulfillment struct {
	Carrier      string
	TrackingCode string
	ShippedAt    *time.Time
}

// Order is the durable record reconciled from a succeeded payment. At most
// one order exists per payment intent.
type Order struct {
	ID              string
	PaymentIntentID string
	Items           []VerifiedLine
	Subtotal        int64
	ShippingFee     int64
	Total           int64
	Currency        string
	Status          OrderStatus
	ShippingAddress *Address
	BillingAddress  *Address
	Client          *ClientDetails
	Flags           OrderFlags
	Fulfillment     OrderFulfillment
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
	RefundedAt      *time.Time
}

// InvoiceSource distinguishes manually issued invoices from payment-derived ones.
type InvoiceSource string

const (
	// InvoiceSourceManual marks invoices raised by an administrator.
	InvoiceSourceManual InvoiceSource = "manual"
	// InvoiceSourceStripe marks invoices raised by the payment-success path.
	InvoiceSourceStripe InvoiceSource = "stripe"
)

// InvoicePaymentStatus tracks whether an invoice has been settled.
type InvoicePaymentStatus string

const (
	// InvoiceUnpaid is the initial state of every invoice.
	InvoiceUnpaid InvoicePaymentStatus = "unpaid"
	// InvoicePaid marks a settled invoice. Only manual invoices may be marked
	// paid by an administrator; stripe-sourced invoices are paid by definition.
	InvoicePaid InvoicePaymentStatus = "paid"
)

// Invoice is a billing document with a lifecycle independent of orders.
// ID is the generated human-facing invoice number (INV-<year>-<yyyymmdd>-
// <rand4>) and doubles as the document key. OrderNumber references the
// commercial order being billed: the payment intent id for stripe-sourced
// invoices, an admin-supplied reference for manual ones.
type Invoice struct {
	ID            string
	OrderNumber   string
	Items         []VerifiedLine
	Subtotal      int64
	Shipping      int64
	Total         int64
	Currency      string
	Client        ClientDetails
	Source        InvoiceSource
	PaymentStatus InvoicePaymentStatus
	PaidAt        *time.Time
	DueDate       *time.Time
	CreatedAt     time.Time
}

// CatalogItem is the price oracle's view of a catalog record.
type CatalogItem struct {
	ID     string
	Slug   string
	Name   string
	Price  Money
	Stock  int
	Source CatalogSource
}

// ShippingSettings is the runtime-configurable shipping policy stored in the
// settings document and editable from the back office.
type ShippingSettings struct {
	DeliveryFeeMinorUnits int64
	FreeShippingThreshold int64
	FreeShippingEnabled   bool
	UpdatedAt             time.Time
}

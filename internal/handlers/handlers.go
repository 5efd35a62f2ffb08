package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/roastline/api/internal/domain"
)

const defaultMaxRequestBody = 8 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body exceeds the allowed size")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxRequestBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// Amounts cross the API boundary as decimal major units; everything behind
// the handlers stays in integer minor units.
func majorUnits(minorUnits int64) float64 {
	return domain.Money{MinorUnits: minorUnits}.MajorUnits()
}

type addressPayload struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

func (p *addressPayload) toDomain() *domain.Address {
	if p == nil {
		return nil
	}
	addr := domain.Address{
		Line1:      strings.TrimSpace(p.Line1),
		Line2:      strings.TrimSpace(p.Line2),
		City:       strings.TrimSpace(p.City),
		Region:     strings.TrimSpace(p.Region),
		PostalCode: strings.TrimSpace(p.PostalCode),
		Country:    strings.TrimSpace(p.Country),
	}
	if addr.IsZero() {
		return nil
	}
	return &addr
}

func addressFromDomain(addr *domain.Address) *addressPayload {
	if addr == nil {
		return nil
	}
	return &addressPayload{
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		Region:     addr.Region,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}

type clientPayload struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (p *clientPayload) toDomain() *domain.ClientDetails {
	if p == nil {
		return nil
	}
	client := domain.ClientDetails{
		Name:  strings.TrimSpace(p.Name),
		Email: strings.TrimSpace(p.Email),
		Phone: strings.TrimSpace(p.Phone),
	}
	if client.IsZero() {
		return nil
	}
	return &client
}

func clientFromDomain(client *domain.ClientDetails) *clientPayload {
	if client == nil {
		return nil
	}
	return &clientPayload{Name: client.Name, Email: client.Email, Phone: client.Phone}
}

type linePayload struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	LineTotal float64 `json:"lineTotal"`
	Source    string  `json:"source,omitempty"`
}

func linesFromDomain(lines []domain.VerifiedLine) []linePayload {
	payload := make([]linePayload, 0, len(lines))
	for _, line := range lines {
		payload = append(payload, linePayload{
			ID:        line.ItemID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: majorUnits(line.VerifiedUnitPrice),
			LineTotal: majorUnits(line.LineTotal),
			Source:    string(line.Source),
		})
	}
	return payload
}

type fulfillmentPayload struct {
	Carrier      string `json:"carrier,omitempty"`
	TrackingCode string `json:"trackingCode,omitempty"`
	ShippedAt    string `json:"shippedAt,omitempty"`
}

type orderFlagsPayload struct {
	ShippingConfirmed    bool `json:"shippingConfirmed"`
	PricesVerified       bool `json:"pricesVerified"`
	ProcessorSyncPending bool `json:"processorSyncPending,omitempty"`
	NotificationFailed   bool `json:"notificationFailed,omitempty"`
}

type orderPayload struct {
	PaymentIntentID string              `json:"paymentIntentId"`
	Status          string              `json:"status"`
	Items           []linePayload       `json:"items"`
	Subtotal        float64             `json:"subtotal"`
	ShippingFee     float64             `json:"shippingFee"`
	Total           float64             `json:"total"`
	Currency        string              `json:"currency,omitempty"`
	ShippingAddress *addressPayload     `json:"shippingAddress,omitempty"`
	BillingAddress  *addressPayload     `json:"billingAddress,omitempty"`
	Client          *clientPayload      `json:"client,omitempty"`
	Flags           orderFlagsPayload   `json:"flags"`
	Fulfillment     *fulfillmentPayload `json:"fulfillment,omitempty"`
	CreatedAt       string              `json:"createdAt,omitempty"`
	UpdatedAt       string              `json:"updatedAt,omitempty"`
	CompletedAt     string              `json:"completedAt,omitempty"`
	RefundedAt      string              `json:"refundedAt,omitempty"`
}

func orderFromDomain(order domain.Order) orderPayload {
	payload := orderPayload{
		PaymentIntentID: order.PaymentIntentID,
		Status:          string(order.Status),
		Items:           linesFromDomain(order.Items),
		Subtotal:        majorUnits(order.Subtotal),
		ShippingFee:     majorUnits(order.ShippingFee),
		Total:           majorUnits(order.Total),
		Currency:        order.Currency,
		ShippingAddress: addressFromDomain(order.ShippingAddress),
		BillingAddress:  addressFromDomain(order.BillingAddress),
		Client:          clientFromDomain(order.Client),
		Flags: orderFlagsPayload{
			ShippingConfirmed:    order.Flags.ShippingConfirmed,
			PricesVerified:       order.Flags.PricesVerified,
			ProcessorSyncPending: order.Flags.ProcessorSyncPending,
			NotificationFailed:   order.Flags.NotificationFailed,
		},
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}
	if order.Fulfillment.Carrier != "" || order.Fulfillment.TrackingCode != "" {
		payload.Fulfillment = &fulfillmentPayload{
			Carrier:      order.Fulfillment.Carrier,
			TrackingCode: order.Fulfillment.TrackingCode,
		}
		if order.Fulfillment.ShippedAt != nil {
			payload.Fulfillment.ShippedAt = formatTime(*order.Fulfillment.ShippedAt)
		}
	}
	if order.CompletedAt != nil {
		payload.CompletedAt = formatTime(*order.CompletedAt)
	}
	if order.RefundedAt != nil {
		payload.RefundedAt = formatTime(*order.RefundedAt)
	}
	return payload
}

type invoicePayload struct {
	InvoiceNumber string         `json:"invoiceNumber"`
	OrderNumber   string         `json:"orderNumber,omitempty"`
	Items         []linePayload  `json:"items"`
	Subtotal      float64        `json:"subtotal"`
	Shipping      float64        `json:"shipping"`
	Total         float64        `json:"total"`
	Currency      string         `json:"currency,omitempty"`
	Client        *clientPayload `json:"client,omitempty"`
	Source        string         `json:"source"`
	PaymentStatus string         `json:"paymentStatus"`
	PaidAt        string         `json:"paidAt,omitempty"`
	DueDate       string         `json:"dueDate,omitempty"`
	CreatedAt     string         `json:"createdAt,omitempty"`
}

func invoiceFromDomain(invoice domain.Invoice) invoicePayload {
	payload := invoicePayload{
		InvoiceNumber: invoice.ID,
		OrderNumber:   invoice.OrderNumber,
		Items:         linesFromDomain(invoice.Items),
		Subtotal:      majorUnits(invoice.Subtotal),
		Shipping:      majorUnits(invoice.Shipping),
		Total:         majorUnits(invoice.Total),
		Currency:      invoice.Currency,
		Source:        string(invoice.Source),
		PaymentStatus: string(invoice.PaymentStatus),
		CreatedAt:     formatTime(invoice.CreatedAt),
	}
	if !invoice.Client.IsZero() {
		client := invoice.Client
		payload.Client = clientFromDomain(&client)
	}
	if invoice.PaidAt != nil {
		payload.PaidAt = formatTime(*invoice.PaidAt)
	}
	if invoice.DueDate != nil {
		payload.DueDate = formatTime(*invoice.DueDate)
	}
	return payload
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

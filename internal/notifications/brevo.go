package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/services"
)

const (
	defaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"
	defaultTimeout       = 10 * time.Second
)

// ErrDispatchFailed indicates the mail API rejected or failed the send.
var ErrDispatchFailed = errors.New("notifications: dispatch failed")

// BrevoDispatcherConfig configures the transactional email dispatcher.
type BrevoDispatcherConfig struct {
	APIKey      string
	SenderName  string
	SenderEmail string
	Endpoint    string
	HTTPClient  *http.Client
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// BrevoDispatcher sends order confirmations through the Brevo transactional
// email API.
type BrevoDispatcher struct {
	apiKey      string
	senderName  string
	senderEmail string
	endpoint    string
	client      *http.Client
	logger      func(ctx context.Context, event string, fields map[string]any)
}

// NewBrevoDispatcher constructs a BrevoDispatcher validating required configuration.
func NewBrevoDispatcher(cfg BrevoDispatcherConfig) (*BrevoDispatcher, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("brevo dispatcher: api key is required")
	}
	senderEmail := strings.TrimSpace(cfg.SenderEmail)
	if senderEmail == "" {
		return nil, errors.New("brevo dispatcher: sender email is required")
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultBrevoEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &BrevoDispatcher{
		apiKey:      apiKey,
		senderName:  strings.TrimSpace(cfg.SenderName),
		senderEmail: senderEmail,
		endpoint:    endpoint,
		client:      client,
		logger:      logger,
	}, nil
}

type brevoParty struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoEmail struct {
	Sender      brevoParty   `json:"sender"`
	To          []brevoParty `json:"to"`
	Subject     string       `json:"subject"`
	HTMLContent string       `json:"htmlContent"`
}

// DispatchOrderConfirmation sends the confirmation email for a settled order.
// Orders without a customer email are skipped rather than failed.
func (d *BrevoDispatcher) DispatchOrderConfirmation(ctx context.Context, notification services.OrderNotification) error {
	subject := fmt.Sprintf("Your Roastline order confirmation (%s)", orderReference(notification))
	return d.send(ctx, notification, subject, renderOrderConfirmation(notification))
}

// DispatchShipmentNotice sends the dispatch email once an order leaves the roastery.
func (d *BrevoDispatcher) DispatchShipmentNotice(ctx context.Context, notification services.OrderNotification) error {
	subject := fmt.Sprintf("Your Roastline order is on its way (%s)", orderReference(notification))
	return d.send(ctx, notification, subject, renderShipmentNotice(notification))
}

// DispatchRefundNotice sends the refund confirmation email.
func (d *BrevoDispatcher) DispatchRefundNotice(ctx context.Context, notification services.OrderNotification) error {
	subject := fmt.Sprintf("Your Roastline refund (%s)", orderReference(notification))
	return d.send(ctx, notification, subject, renderRefundNotice(notification))
}

func (d *BrevoDispatcher) send(ctx context.Context, notification services.OrderNotification, subject, htmlContent string) error {
	order := notification.Order
	if order.Client == nil || strings.TrimSpace(order.Client.Email) == "" {
		d.logger(ctx, "notifications.skipped_no_email", map[string]any{
			"intent_id": order.PaymentIntentID,
		})
		return nil
	}

	payload := brevoEmail{
		Sender:      brevoParty{Name: d.senderName, Email: d.senderEmail},
		To:          []brevoParty{{Name: order.Client.Name, Email: order.Client.Email}},
		Subject:     subject,
		HTMLContent: htmlContent,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode payload: %v", ErrDispatchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrDispatchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrDispatchFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	d.logger(ctx, "notifications.sent", map[string]any{
		"intent_id": order.PaymentIntentID,
		"recipient": order.Client.Email,
	})
	return nil
}

func orderReference(notification services.OrderNotification) string {
	if notification.InvoiceNumber != "" {
		return notification.InvoiceNumber
	}
	return notification.Order.PaymentIntentID
}

func renderOrderConfirmation(notification services.OrderNotification) string {
	order := notification.Order
	var b strings.Builder
	b.WriteString("<h1>Thanks for your order</h1>")
	fmt.Fprintf(&b, "<p>Order reference: <strong>%s</strong></p>", orderReference(notification))
	b.WriteString("<table><tbody>")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>x%d</td><td>%s</td></tr>",
			item.Name, item.Quantity, formatAmount(item.LineTotal, order.Currency))
	}
	b.WriteString("</tbody></table>")
	fmt.Fprintf(&b, "<p>Subtotal: %s</p>", formatAmount(order.Subtotal, order.Currency))
	fmt.Fprintf(&b, "<p>Shipping: %s</p>", formatAmount(order.ShippingFee, order.Currency))
	fmt.Fprintf(&b, "<p><strong>Total: %s</strong></p>", formatAmount(order.Total, order.Currency))
	return b.String()
}

func renderShipmentNotice(notification services.OrderNotification) string {
	order := notification.Order
	var b strings.Builder
	b.WriteString("<h1>Your order has shipped</h1>")
	fmt.Fprintf(&b, "<p>Order reference: <strong>%s</strong></p>", orderReference(notification))
	if order.Fulfillment.Carrier != "" {
		fmt.Fprintf(&b, "<p>Carrier: %s</p>", order.Fulfillment.Carrier)
	}
	if order.Fulfillment.TrackingCode != "" {
		fmt.Fprintf(&b, "<p>Tracking: %s</p>", order.Fulfillment.TrackingCode)
	}
	return b.String()
}

func renderRefundNotice(notification services.OrderNotification) string {
	order := notification.Order
	var b strings.Builder
	b.WriteString("<h1>Your refund is on its way</h1>")
	fmt.Fprintf(&b, "<p>Order reference: <strong>%s</strong></p>", orderReference(notification))
	fmt.Fprintf(&b, "<p>Amount refunded: <strong>%s</strong></p>", formatAmount(order.Total, order.Currency))
	b.WriteString("<p>Refunds typically reach your account within five working days.</p>")
	return b.String()
}

func formatAmount(minorUnits int64, currency string) string {
	return domain.Money{MinorUnits: minorUnits, Currency: currency}.String()
}

package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/roastline/api/internal/domain"
	pfirestore "github.com/roastline/api/internal/platform/firestore"
	"github.com/roastline/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository stores orders keyed by payment intent id. Using the intent
// id as the document id makes "at most one order per intent" a property of
// the schema rather than of the callers.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs the Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	orders := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil)
	return &OrderRepository{provider: provider, orders: orders}, nil
}

type orderDocument struct {
	PaymentIntentID string              `firestore:"paymentIntentId"`
	Items           []orderItemDocument `firestore:"items"`
	Subtotal        int64               `firestore:"subtotal"`
	ShippingFee     int64               `firestore:"shippingFee"`
	Total           int64               `firestore:"total"`
	Currency        string              `firestore:"currency"`
	Status          string              `firestore:"status"`
	ShippingAddress *addressDocument    `firestore:"shippingAddress,omitempty"`
	BillingAddress  *addressDocument    `firestore:"billingAddress,omitempty"`
	Client          *clientDocument     `firestore:"client,omitempty"`

	ShippingConfirmed    bool   `firestore:"shippingConfirmed"`
	PricesVerified       bool   `firestore:"pricesVerified"`
	ProcessorSyncPending bool   `firestore:"processorSyncPending"`
	NotificationFailed   bool   `firestore:"notificationFailed"`
	IdempotencyKey       string `firestore:"idempotencyKey,omitempty"`
	FailureReason        string `firestore:"failureReason,omitempty"`

	Carrier      string     `firestore:"carrier,omitempty"`
	TrackingCode string     `firestore:"trackingCode,omitempty"`
	ShippedAt    *time.Time `firestore:"shippedAt,omitempty"`

	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
	CompletedAt *time.Time `firestore:"completedAt,omitempty"`
	RefundedAt  *time.Time `firestore:"refundedAt,omitempty"`
}

type orderItemDocument struct {
	ItemID    string `firestore:"itemId"`
	Name      string `firestore:"name"`
	Quantity  int    `firestore:"quantity"`
	UnitPrice int64  `firestore:"unitPrice"`
	LineTotal int64  `firestore:"lineTotal"`
	Source    string `firestore:"source"`
}

type addressDocument struct {
	Line1      string `firestore:"line1,omitempty"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city,omitempty"`
	Region     string `firestore:"region,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country,omitempty"`
}

type clientDocument struct {
	Name  string `firestore:"name,omitempty"`
	Email string `firestore:"email,omitempty"`
	Phone string `firestore:"phone,omitempty"`
}

// FindByPaymentIntentID fetches a single order.
func (r *OrderRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (domain.Order, error) {
	id := strings.TrimSpace(paymentIntentID)
	if id == "" {
		return domain.Order{}, errors.New("order lookup: payment intent id is required")
	}
	doc, err := r.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nil
}

// MergeStaging upserts the order document for the intent and merges detail
// fields. It never touches status, items or totals, so it commutes with
// Complete regardless of arrival order.
func (r *OrderRepository) MergeStaging(ctx context.Context, paymentIntentID string, details repositories.StagingDetails, now time.Time) (domain.Order, error) {
	id := strings.TrimSpace(paymentIntentID)
	if id == "" {
		return domain.Order{}, errors.New("order staging: payment intent id is required")
	}
	now = now.UTC()

	var merged orderDocument
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		doc := orderDocument{
			PaymentIntentID: id,
			Status:          string(domain.OrderStatusPending),
			CreatedAt:       now,
		}
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			if decodeErr := snap.DataTo(&doc); decodeErr != nil {
				return fmt.Errorf("decode order %s: %w", id, decodeErr)
			}
		case status.Code(err) == codes.NotFound:
			// provisional record; reconciliation fills in items and totals
		default:
			return err
		}

		if details.ShippingAddress != nil {
			doc.ShippingAddress = mergeAddress(doc.ShippingAddress, *details.ShippingAddress)
		}
		if details.BillingAddress != nil {
			doc.BillingAddress = mergeAddress(doc.BillingAddress, *details.BillingAddress)
		}
		if details.Client != nil {
			doc.Client = mergeClient(doc.Client, *details.Client)
		}
		if details.ShippingConfirmed {
			doc.ShippingConfirmed = true
		}
		doc.UpdatedAt = now

		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		merged = doc
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.merge_staging", err)
	}
	return merged.toDomain(id), nil
}

// Complete applies reconciled payment data and transitions the order to
// completed. The status guard inside the transaction makes the transition
// exactly-once under duplicate webhook delivery.
func (r *OrderRepository) Complete(ctx context.Context, paymentIntentID string, input repositories.ReconcileInput) (domain.Order, bool, error) {
	id := strings.TrimSpace(paymentIntentID)
	if id == "" {
		return domain.Order{}, false, errors.New("order complete: payment intent id is required")
	}
	completedAt := input.CompletedAt.UTC()

	var (
		result           orderDocument
		alreadyCompleted bool
	)
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		alreadyCompleted = false
		ref, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		doc := orderDocument{
			PaymentIntentID: id,
			Status:          string(domain.OrderStatusPending),
			CreatedAt:       completedAt,
		}
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			if decodeErr := snap.DataTo(&doc); decodeErr != nil {
				return fmt.Errorf("decode order %s: %w", id, decodeErr)
			}
		case status.Code(err) == codes.NotFound:
			// success webhook arrived before any staging write
		default:
			return err
		}

		switch domain.OrderStatus(doc.Status) {
		case domain.OrderStatusCompleted, domain.OrderStatusRefunded:
			result = doc
			alreadyCompleted = true
			return nil
		}

		doc.Items = toItemDocuments(input.Items)
		doc.Subtotal = input.Subtotal
		doc.ShippingFee = input.ShippingFee
		doc.Total = input.Total
		doc.Currency = input.Currency
		doc.Status = string(domain.OrderStatusCompleted)
		doc.PricesVerified = input.Flags.PricesVerified
		doc.ProcessorSyncPending = input.Flags.ProcessorSyncPending
		if input.Flags.IdempotencyKey != "" {
			doc.IdempotencyKey = input.Flags.IdempotencyKey
		}
		if input.Flags.ShippingConfirmed {
			doc.ShippingConfirmed = true
		}
		doc.FailureReason = ""
		doc.CompletedAt = &completedAt
		doc.UpdatedAt = completedAt

		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		result = doc
		return nil
	})
	if err != nil {
		return domain.Order{}, false, pfirestore.WrapError("orders.complete", err)
	}
	return result.toDomain(id), alreadyCompleted, nil
}

// MarkFailed records a failed payment. Completed orders are never demoted.
func (r *OrderRepository) MarkFailed(ctx context.Context, paymentIntentID string, reason string, now time.Time) (bool, error) {
	id := strings.TrimSpace(paymentIntentID)
	if id == "" {
		return false, errors.New("order fail: payment intent id is required")
	}
	now = now.UTC()

	var guarded bool
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		guarded = false
		ref, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		doc := orderDocument{
			PaymentIntentID: id,
			Status:          string(domain.OrderStatusPending),
			CreatedAt:       now,
		}
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			if decodeErr := snap.DataTo(&doc); decodeErr != nil {
				return fmt.Errorf("decode order %s: %w", id, decodeErr)
			}
		case status.Code(err) == codes.NotFound:
		default:
			return err
		}

		switch domain.OrderStatus(doc.Status) {
		case domain.OrderStatusCompleted, domain.OrderStatusRefunded:
			guarded = true
			return nil
		}

		doc.Status = string(domain.OrderStatusFailed)
		doc.FailureReason = reason
		doc.UpdatedAt = now
		return tx.Set(ref, doc)
	})
	if err != nil {
		return false, pfirestore.WrapError("orders.mark_failed", err)
	}
	return guarded, nil
}

// SetFlags overwrites the degraded-path flags on an existing order.
func (r *OrderRepository) SetFlags(ctx context.Context, paymentIntentID string, flags domain.OrderFlags) error {
	id := strings.TrimSpace(paymentIntentID)
	if id == "" {
		return errors.New("order flags: payment intent id is required")
	}
	updates := []firestore.Update{
		{Path: "shippingConfirmed", Value: flags.ShippingConfirmed},
		{Path: "pricesVerified", Value: flags.PricesVerified},
		{Path: "processorSyncPending", Value: flags.ProcessorSyncPending},
		{Path: "notificationFailed", Value: flags.NotificationFailed},
	}
	if flags.IdempotencyKey != "" {
		updates = append(updates, firestore.Update{Path: "idempotencyKey", Value: flags.IdempotencyKey})
	}
	_, err := r.orders.Update(ctx, id, updates)
	return err
}

// RecordShipment stores fulfillment details. Only completed orders can ship.
func (r *OrderRepository) RecordShipment(ctx context.Context, paymentIntentID string, fulfillment domain.OrderFulfillment, now time.Time) error {
	id := strings.TrimSpace(paymentIntentID)
	if id == "" {
		return errors.New("order shipment: payment intent id is required")
	}
	now = now.UTC()

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", id, err)
		}
		if domain.OrderStatus(doc.Status) != domain.OrderStatusCompleted {
			return pfirestore.NewConflict("orders.record_shipment", fmt.Errorf("order %s is %s, not completed", id, doc.Status))
		}

		doc.Carrier = fulfillment.Carrier
		doc.TrackingCode = fulfillment.TrackingCode
		shippedAt := now
		if fulfillment.ShippedAt != nil {
			shippedAt = fulfillment.ShippedAt.UTC()
		}
		doc.ShippedAt = &shippedAt
		doc.UpdatedAt = now
		return tx.Set(ref, doc)
	})
	return pfirestore.WrapError("orders.record_shipment", err)
}

// MarkRefunded transitions a completed order to refunded.
func (r *OrderRepository) MarkRefunded(ctx context.Context, paymentIntentID string, refundedAt time.Time) error {
	id := strings.TrimSpace(paymentIntentID)
	if id == "" {
		return errors.New("order refund: payment intent id is required")
	}
	refundedAt = refundedAt.UTC()

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", id, err)
		}
		if domain.OrderStatus(doc.Status) != domain.OrderStatusCompleted {
			return pfirestore.NewConflict("orders.mark_refunded", fmt.Errorf("order %s is %s, not completed", id, doc.Status))
		}

		doc.Status = string(domain.OrderStatusRefunded)
		doc.RefundedAt = &refundedAt
		doc.UpdatedAt = refundedAt
		return tx.Set(ref, doc)
	})
	return pfirestore.WrapError("orders.mark_refunded", err)
}

func mergeAddress(existing *addressDocument, incoming domain.Address) *addressDocument {
	doc := addressDocument{}
	if existing != nil {
		doc = *existing
	}
	if incoming.Line1 != "" {
		doc.Line1 = incoming.Line1
	}
	if incoming.Line2 != "" {
		doc.Line2 = incoming.Line2
	}
	if incoming.City != "" {
		doc.City = incoming.City
	}
	if incoming.Region != "" {
		doc.Region = incoming.Region
	}
	if incoming.PostalCode != "" {
		doc.PostalCode = incoming.PostalCode
	}
	if incoming.Country != "" {
		doc.Country = incoming.Country
	}
	return &doc
}

func mergeClient(existing *clientDocument, incoming domain.ClientDetails) *clientDocument {
	doc := clientDocument{}
	if existing != nil {
		doc = *existing
	}
	if incoming.Name != "" {
		doc.Name = incoming.Name
	}
	if incoming.Email != "" {
		doc.Email = incoming.Email
	}
	if incoming.Phone != "" {
		doc.Phone = incoming.Phone
	}
	return &doc
}

func toItemDocuments(items []domain.VerifiedLine) []orderItemDocument {
	if len(items) == 0 {
		return nil
	}
	docs := make([]orderItemDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, orderItemDocument{
			ItemID:    item.ItemID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.VerifiedUnitPrice,
			LineTotal: item.LineTotal,
			Source:    string(item.Source),
		})
	}
	return docs
}

func (d orderDocument) toDomain(id string) domain.Order {
	order := domain.Order{
		ID:              id,
		PaymentIntentID: d.PaymentIntentID,
		Subtotal:        d.Subtotal,
		ShippingFee:     d.ShippingFee,
		Total:           d.Total,
		Currency:        d.Currency,
		Status:          domain.OrderStatus(d.Status),
		Flags: domain.OrderFlags{
			ShippingConfirmed:    d.ShippingConfirmed,
			PricesVerified:       d.PricesVerified,
			ProcessorSyncPending: d.ProcessorSyncPending,
			NotificationFailed:   d.NotificationFailed,
			IdempotencyKey:       d.IdempotencyKey,
		},
		Fulfillment: domain.OrderFulfillment{
			Carrier:      d.Carrier,
			TrackingCode: d.TrackingCode,
			ShippedAt:    d.ShippedAt,
		},
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		CompletedAt: d.CompletedAt,
		RefundedAt:  d.RefundedAt,
	}
	if order.PaymentIntentID == "" {
		order.PaymentIntentID = id
	}
	if len(d.Items) > 0 {
		order.Items = make([]domain.VerifiedLine, 0, len(d.Items))
		for _, item := range d.Items {
			order.Items = append(order.Items, domain.VerifiedLine{
				ItemID:            item.ItemID,
				Name:              item.Name,
				Quantity:          item.Quantity,
				VerifiedUnitPrice: item.UnitPrice,
				LineTotal:         item.LineTotal,
				Source:            domain.CatalogSource(item.Source),
			})
		}
	}
	if d.ShippingAddress != nil {
		addr := d.ShippingAddress.toDomain()
		order.ShippingAddress = &addr
	}
	if d.BillingAddress != nil {
		addr := d.BillingAddress.toDomain()
		order.BillingAddress = &addr
	}
	if d.Client != nil {
		client := domain.ClientDetails{Name: d.Client.Name, Email: d.Client.Email, Phone: d.Client.Phone}
		order.Client = &client
	}
	return order
}

func (d addressDocument) toDomain() domain.Address {
	return domain.Address{
		Line1:      d.Line1,
		Line2:      d.Line2,
		City:       d.City,
		Region:     d.Region,
		PostalCode: d.PostalCode,
		Country:    d.Country,
	}
}

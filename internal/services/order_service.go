package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/payments"
	"github.com/roastline/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid input parameters.
	ErrOrderInvalidInput = errors.New("orders: invalid input")
	// ErrOrderNotFound indicates no order exists for the payment intent.
	ErrOrderNotFound = errors.New("orders: not found")
	// ErrOrderConflict indicates the order state forbids the requested transition.
	ErrOrderConflict = errors.New("orders: conflict")
	// ErrReconcileMetadata indicates intent metadata was missing or malformed.
	// Reconciliation halts so the webhook redelivers after the data is fixed.
	ErrReconcileMetadata = errors.New("orders: reconcile metadata invalid")
	// ErrReconcileAmountMismatch indicates the settled amount disagrees with
	// the verified total recorded at checkout.
	ErrReconcileAmountMismatch = errors.New("orders: reconcile amount mismatch")
	// ErrRefundFailed indicates the PSP rejected the refund.
	ErrRefundFailed = errors.New("orders: refund failed")
)

// orderPaymentsAPI abstracts the PSP operations the order service needs.
type orderPaymentsAPI interface {
	UpdateMetadata(ctx context.Context, req payments.MetadataUpdate) (payments.Intent, error)
	RefundIntent(ctx context.Context, req payments.RefundRequest) (payments.Refund, error)
}

// OrderEventPublisher announces order lifecycle transitions to downstream
// consumers. Publishing is best-effort.
type OrderEventPublisher interface {
	PublishOrderCompleted(ctx context.Context, order domain.Order) error
	PublishOrderRefunded(ctx context.Context, order domain.Order) error
}

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Orders   repositories.OrderRepository
	Invoices InvoiceService
	Payments orderPaymentsAPI
	Notifier NotificationDispatcher
	Events   OrderEventPublisher
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	invoices InvoiceService
	payments orderPaymentsAPI
	notifier NotificationDispatcher
	events   OrderEventPublisher
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs an OrderService validating required dependencies.
// Invoices, Notifier and Events are optional; the corresponding side effects
// are skipped when absent.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("order service: payment provider is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{
		orders:   deps.Orders,
		invoices: deps.Invoices,
		payments: deps.Payments,
		notifier: deps.Notifier,
		events:   deps.Events,
		now:      nowUTC(deps.Clock),
		logger:   logger,
	}, nil
}

// StageShipping merges shipping details into the order record for the intent,
// creating a provisional pending order when none exists yet. Staging is
// idempotent and commutes with reconciliation.
func (s *orderService) StageShipping(ctx context.Context, cmd StageShippingCommand) (domain.Order, error) {
	intentID := strings.TrimSpace(cmd.PaymentIntentID)
	if intentID == "" {
		return domain.Order{}, fmt.Errorf("%w: payment intent id is required", ErrOrderInvalidInput)
	}
	if cmd.ShippingAddress == nil && cmd.BillingAddress == nil && cmd.Client == nil {
		return domain.Order{}, fmt.Errorf("%w: no details to stage", ErrOrderInvalidInput)
	}

	details := repositories.StagingDetails{
		ShippingAddress:   cmd.ShippingAddress,
		BillingAddress:    cmd.BillingAddress,
		Client:            cmd.Client,
		ShippingConfirmed: cmd.ShippingAddress != nil && !cmd.ShippingAddress.IsZero(),
	}
	order, err := s.orders.MergeStaging(ctx, intentID, details, s.now())
	if err != nil {
		return domain.Order{}, err
	}

	s.logger(ctx, "orders.shipping_staged", map[string]any{
		"intent_id": intentID,
		"status":    string(order.Status),
	})
	return order, nil
}

// ReconcilePayment turns a verified payment-success event into a completed
// order. The repository's status guard makes the transition exactly-once, so
// duplicate webhook deliveries settle without a second invoice, notification
// or event.
func (s *orderService) ReconcilePayment(ctx context.Context, cmd ReconcilePaymentCommand) (ReconcileResult, error) {
	intentID := strings.TrimSpace(cmd.PaymentIntentID)
	if intentID == "" {
		return ReconcileResult{}, fmt.Errorf("%w: payment intent id is required", ErrOrderInvalidInput)
	}

	cart, idempotencyKey, err := decodeIntentMetadata(cmd.Metadata)
	if err != nil {
		s.logger(ctx, "orders.reconcile_metadata_invalid", map[string]any{
			"intent_id": intentID,
			"error":     err.Error(),
		})
		return ReconcileResult{}, fmt.Errorf("%w: %v", ErrReconcileMetadata, err)
	}
	if cmd.Amount != cart.Totals.GrandTotal {
		s.logger(ctx, "orders.reconcile_amount_mismatch", map[string]any{
			"intent_id": intentID,
			"settled":   cmd.Amount,
			"expected":  cart.Totals.GrandTotal,
		})
		return ReconcileResult{}, fmt.Errorf("%w: settled %d, expected %d", ErrReconcileAmountMismatch, cmd.Amount, cart.Totals.GrandTotal)
	}

	occurredAt := cmd.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	order, alreadyCompleted, err := s.orders.Complete(ctx, intentID, repositories.ReconcileInput{
		Items:       cart.Lines,
		Subtotal:    cart.Totals.Subtotal,
		ShippingFee: cart.Totals.ShippingFee,
		Total:       cart.Totals.GrandTotal,
		Currency:    cart.Totals.Currency,
		Flags: domain.OrderFlags{
			PricesVerified: cmd.Metadata[metadataKeyPricesVerified] == "true",
			IdempotencyKey: idempotencyKey,
		},
		CompletedAt: occurredAt.UTC(),
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	if alreadyCompleted {
		s.logger(ctx, "orders.reconcile_duplicate", map[string]any{"intent_id": intentID})
		return ReconcileResult{Order: order, AlreadyCompleted: true}, nil
	}

	result := ReconcileResult{Order: order}
	flags := order.Flags
	flagsDirty := false

	if s.invoices != nil {
		invoice, err := s.invoices.CreateFromOrder(ctx, order)
		if err != nil {
			// Invoice creation is recoverable from the back office; the order
			// itself is already settled.
			s.logger(ctx, "orders.invoice_failed", map[string]any{
				"intent_id": intentID,
				"error":     err.Error(),
			})
		} else {
			result.InvoiceNumber = invoice.ID
		}
	}

	if err := s.syncProcessorMetadata(ctx, order, result.InvoiceNumber); err != nil {
		s.logger(ctx, "orders.processor_sync_failed", map[string]any{
			"intent_id": intentID,
			"error":     err.Error(),
		})
		flags.ProcessorSyncPending = true
		flagsDirty = true
	}

	if s.notifier != nil {
		if err := s.notifier.DispatchOrderConfirmation(ctx, OrderNotification{Order: order, InvoiceNumber: result.InvoiceNumber}); err != nil {
			s.logger(ctx, "orders.notification_failed", map[string]any{
				"intent_id": intentID,
				"error":     err.Error(),
			})
			flags.NotificationFailed = true
			flagsDirty = true
		}
	}

	if flagsDirty {
		if err := s.orders.SetFlags(ctx, intentID, flags); err != nil {
			s.logger(ctx, "orders.flag_update_failed", map[string]any{
				"intent_id": intentID,
				"error":     err.Error(),
			})
		} else {
			result.Order.Flags = flags
		}
	}

	if s.events != nil {
		if err := s.events.PublishOrderCompleted(ctx, result.Order); err != nil {
			s.logger(ctx, "orders.event_publish_failed", map[string]any{
				"intent_id": intentID,
				"error":     err.Error(),
			})
		}
	}

	s.logger(ctx, "orders.completed", map[string]any{
		"intent_id": intentID,
		"total":     order.Total,
		"currency":  order.Currency,
		"invoice":   result.InvoiceNumber,
	})
	return result, nil
}

// syncProcessorMetadata writes the settled order reference back onto the PSP
// intent. The database remains the source of truth; a failure here only sets
// the pending flag.
func (s *orderService) syncProcessorMetadata(ctx context.Context, order domain.Order, invoiceNumber string) error {
	metadata := map[string]string{
		"order_status": string(order.Status),
	}
	if invoiceNumber != "" {
		metadata["invoice_number"] = invoiceNumber
	}
	_, err := s.payments.UpdateMetadata(ctx, payments.MetadataUpdate{
		IntentID: order.PaymentIntentID,
		Metadata: metadata,
	})
	return err
}

// FailPayment records a failed payment. A success that already settled wins
// over a late failure event.
func (s *orderService) FailPayment(ctx context.Context, cmd FailPaymentCommand) error {
	intentID := strings.TrimSpace(cmd.PaymentIntentID)
	if intentID == "" {
		return fmt.Errorf("%w: payment intent id is required", ErrOrderInvalidInput)
	}

	occurredAt := cmd.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	guarded, err := s.orders.MarkFailed(ctx, intentID, strings.TrimSpace(cmd.Reason), occurredAt.UTC())
	if err != nil {
		return err
	}
	if guarded {
		s.logger(ctx, "orders.fail_ignored_completed", map[string]any{"intent_id": intentID})
		return nil
	}
	s.logger(ctx, "orders.payment_failed", map[string]any{
		"intent_id": intentID,
		"reason":    cmd.Reason,
	})
	return nil
}

// GetOrder fetches a single order for the back office.
func (s *orderService) GetOrder(ctx context.Context, paymentIntentID string) (domain.Order, error) {
	intentID := strings.TrimSpace(paymentIntentID)
	if intentID == "" {
		return domain.Order{}, fmt.Errorf("%w: payment intent id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		return domain.Order{}, mapOrderRepoError(err)
	}
	return order, nil
}

// ListOrders lists orders for the back office, optionally filtered by status.
func (s *orderService) ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	return s.orders.List(ctx, repositories.OrderListFilter{Status: status, Limit: limit})
}

// ShipOrder records fulfillment details on a completed order.
func (s *orderService) ShipOrder(ctx context.Context, cmd ShipOrderCommand) (domain.Order, error) {
	intentID := strings.TrimSpace(cmd.PaymentIntentID)
	if intentID == "" {
		return domain.Order{}, fmt.Errorf("%w: payment intent id is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.Carrier) == "" {
		return domain.Order{}, fmt.Errorf("%w: carrier is required", ErrOrderInvalidInput)
	}

	err := s.orders.RecordShipment(ctx, intentID, domain.OrderFulfillment{
		Carrier:      strings.TrimSpace(cmd.Carrier),
		TrackingCode: strings.TrimSpace(cmd.TrackingCode),
	}, s.now())
	if err != nil {
		return domain.Order{}, mapOrderRepoError(err)
	}

	order, err := s.orders.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		return domain.Order{}, mapOrderRepoError(err)
	}

	if s.notifier != nil {
		if err := s.notifier.DispatchShipmentNotice(ctx, OrderNotification{Order: order}); err != nil {
			s.recordNotificationFailure(ctx, &order, "orders.shipment_notice_failed", err)
		}
	}

	s.logger(ctx, "orders.shipped", map[string]any{
		"intent_id": intentID,
		"carrier":   cmd.Carrier,
	})
	return order, nil
}

// RefundOrder refunds the payment at the PSP and transitions the order.
func (s *orderService) RefundOrder(ctx context.Context, cmd RefundOrderCommand) (domain.Order, error) {
	intentID := strings.TrimSpace(cmd.PaymentIntentID)
	if intentID == "" {
		return domain.Order{}, fmt.Errorf("%w: payment intent id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		return domain.Order{}, mapOrderRepoError(err)
	}
	if order.Status != domain.OrderStatusCompleted {
		return domain.Order{}, fmt.Errorf("%w: order is %s, not completed", ErrOrderConflict, order.Status)
	}

	refund, err := s.payments.RefundIntent(ctx, payments.RefundRequest{
		IntentID:       intentID,
		Amount:         cmd.Amount,
		Reason:         strings.TrimSpace(cmd.Reason),
		IdempotencyKey: "refund-" + intentID,
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}

	now := s.now()
	if err := s.orders.MarkRefunded(ctx, intentID, now); err != nil {
		// The PSP refund went through; surface the local inconsistency loudly.
		s.logger(ctx, "orders.refund_record_failed", map[string]any{
			"intent_id": intentID,
			"refund_id": refund.ID,
			"error":     err.Error(),
		})
		return domain.Order{}, mapOrderRepoError(err)
	}

	order, err = s.orders.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		return domain.Order{}, mapOrderRepoError(err)
	}

	if s.notifier != nil {
		if err := s.notifier.DispatchRefundNotice(ctx, OrderNotification{Order: order}); err != nil {
			s.recordNotificationFailure(ctx, &order, "orders.refund_notice_failed", err)
		}
	}
	if s.events != nil {
		if err := s.events.PublishOrderRefunded(ctx, order); err != nil {
			s.logger(ctx, "orders.event_publish_failed", map[string]any{
				"intent_id": intentID,
				"error":     err.Error(),
			})
		}
	}

	s.logger(ctx, "orders.refunded", map[string]any{
		"intent_id": intentID,
		"refund_id": refund.ID,
	})
	return order, nil
}

// recordNotificationFailure marks the order after a failed email attempt.
// The transition itself already committed; only the flag is updated.
func (s *orderService) recordNotificationFailure(ctx context.Context, order *domain.Order, event string, cause error) {
	s.logger(ctx, event, map[string]any{
		"intent_id": order.PaymentIntentID,
		"error":     cause.Error(),
	})
	flags := order.Flags
	flags.NotificationFailed = true
	if err := s.orders.SetFlags(ctx, order.PaymentIntentID, flags); err != nil {
		s.logger(ctx, "orders.flag_update_failed", map[string]any{
			"intent_id": order.PaymentIntentID,
			"error":     err.Error(),
		})
		return
	}
	order.Flags = flags
}

func mapOrderRepoError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		}
	}
	return err
}

package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/payments"
	"github.com/roastline/api/internal/repositories"
)

// memoryOrderRepo mirrors the persistence contract: upsert-merge staging,
// status-guarded completion, guarded failure.
type memoryOrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: make(map[string]domain.Order)}
}

func (r *memoryOrderRepo) FindByPaymentIntentID(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, notFoundErr{}
	}
	return order, nil
}

func (r *memoryOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, order := range r.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (r *memoryOrderRepo) MergeStaging(_ context.Context, id string, details repositories.StagingDetails, now time.Time) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		order = domain.Order{ID: id, PaymentIntentID: id, Status: domain.OrderStatusPending, CreatedAt: now}
	}
	if details.ShippingAddress != nil {
		merged := mergeTestAddress(order.ShippingAddress, *details.ShippingAddress)
		order.ShippingAddress = &merged
	}
	if details.BillingAddress != nil {
		merged := mergeTestAddress(order.BillingAddress, *details.BillingAddress)
		order.BillingAddress = &merged
	}
	if details.Client != nil {
		client := *details.Client
		if order.Client != nil {
			if client.Name == "" {
				client.Name = order.Client.Name
			}
			if client.Email == "" {
				client.Email = order.Client.Email
			}
			if client.Phone == "" {
				client.Phone = order.Client.Phone
			}
		}
		order.Client = &client
	}
	if details.ShippingConfirmed {
		order.Flags.ShippingConfirmed = true
	}
	order.UpdatedAt = now
	r.orders[id] = order
	return order, nil
}

func mergeTestAddress(existing *domain.Address, incoming domain.Address) domain.Address {
	merged := domain.Address{}
	if existing != nil {
		merged = *existing
	}
	if incoming.Line1 != "" {
		merged.Line1 = incoming.Line1
	}
	if incoming.Line2 != "" {
		merged.Line2 = incoming.Line2
	}
	if incoming.City != "" {
		merged.City = incoming.City
	}
	if incoming.Region != "" {
		merged.Region = incoming.Region
	}
	if incoming.PostalCode != "" {
		merged.PostalCode = incoming.PostalCode
	}
	if incoming.Country != "" {
		merged.Country = incoming.Country
	}
	return merged
}

func (r *memoryOrderRepo) Complete(_ context.Context, id string, input repositories.ReconcileInput) (domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		order = domain.Order{ID: id, PaymentIntentID: id, Status: domain.OrderStatusPending, CreatedAt: input.CompletedAt}
	}
	switch order.Status {
	case domain.OrderStatusCompleted, domain.OrderStatusRefunded:
		return order, true, nil
	}

	order.Items = input.Items
	order.Subtotal = input.Subtotal
	order.ShippingFee = input.ShippingFee
	order.Total = input.Total
	order.Currency = input.Currency
	order.Status = domain.OrderStatusCompleted
	order.Flags.PricesVerified = input.Flags.PricesVerified
	if input.Flags.IdempotencyKey != "" {
		order.Flags.IdempotencyKey = input.Flags.IdempotencyKey
	}
	completedAt := input.CompletedAt
	order.CompletedAt = &completedAt
	order.UpdatedAt = input.CompletedAt
	r.orders[id] = order
	return order, false, nil
}

func (r *memoryOrderRepo) MarkFailed(_ context.Context, id string, reason string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		order = domain.Order{ID: id, PaymentIntentID: id, Status: domain.OrderStatusPending, CreatedAt: now}
	}
	switch order.Status {
	case domain.OrderStatusCompleted, domain.OrderStatusRefunded:
		return true, nil
	}
	order.Status = domain.OrderStatusFailed
	order.UpdatedAt = now
	r.orders[id] = order
	return false, nil
}

func (r *memoryOrderRepo) SetFlags(_ context.Context, id string, flags domain.OrderFlags) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return notFoundErr{}
	}
	order.Flags = flags
	r.orders[id] = order
	return nil
}

func (r *memoryOrderRepo) RecordShipment(_ context.Context, id string, fulfillment domain.OrderFulfillment, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return notFoundErr{}
	}
	if order.Status != domain.OrderStatusCompleted {
		return conflictErr{}
	}
	if fulfillment.ShippedAt == nil {
		fulfillment.ShippedAt = &now
	}
	order.Fulfillment = fulfillment
	order.UpdatedAt = now
	r.orders[id] = order
	return nil
}

func (r *memoryOrderRepo) MarkRefunded(_ context.Context, id string, refundedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return notFoundErr{}
	}
	if order.Status != domain.OrderStatusCompleted {
		return conflictErr{}
	}
	order.Status = domain.OrderStatusRefunded
	order.RefundedAt = &refundedAt
	order.UpdatedAt = refundedAt
	r.orders[id] = order
	return nil
}

type conflictErr struct{}

func (conflictErr) Error() string       { return "conflict" }
func (conflictErr) IsNotFound() bool    { return false }
func (conflictErr) IsConflict() bool    { return true }
func (conflictErr) IsUnavailable() bool { return false }

type stubOrderPayments struct {
	updateCalls int
	updateErr   error
	refundErr   error
	lastRefund  payments.RefundRequest
}

func (s *stubOrderPayments) UpdateMetadata(_ context.Context, req payments.MetadataUpdate) (payments.Intent, error) {
	s.updateCalls++
	return payments.Intent{ID: req.IntentID, Metadata: req.Metadata}, s.updateErr
}

func (s *stubOrderPayments) RefundIntent(_ context.Context, req payments.RefundRequest) (payments.Refund, error) {
	s.lastRefund = req
	if s.refundErr != nil {
		return payments.Refund{}, s.refundErr
	}
	return payments.Refund{ID: "re_1", IntentID: req.IntentID, Status: payments.StatusRefunded}, nil
}

type stubNotifier struct {
	calls         int
	shipmentCalls int
	refundCalls   int
	err           error
}

func (s *stubNotifier) DispatchOrderConfirmation(context.Context, OrderNotification) error {
	s.calls++
	return s.err
}

func (s *stubNotifier) DispatchShipmentNotice(context.Context, OrderNotification) error {
	s.shipmentCalls++
	return s.err
}

func (s *stubNotifier) DispatchRefundNotice(context.Context, OrderNotification) error {
	s.refundCalls++
	return s.err
}

type stubInvoices struct {
	InvoiceService
	created []domain.Order
	err     error
}

func (s *stubInvoices) CreateFromOrder(_ context.Context, order domain.Order) (domain.Invoice, error) {
	s.created = append(s.created, order)
	if s.err != nil {
		return domain.Invoice{}, s.err
	}
	return domain.Invoice{ID: "INV-2026-20260831-0042", Source: domain.InvoiceSourceStripe}, nil
}

type orderFixture struct {
	repo     *memoryOrderRepo
	psp      *stubOrderPayments
	notifier *stubNotifier
	invoices *stubInvoices
	svc      OrderService
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	f := &orderFixture{
		repo:     newMemoryOrderRepo(),
		psp:      &stubOrderPayments{},
		notifier: &stubNotifier{},
		invoices: &stubInvoices{},
	}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:   f.repo,
		Invoices: f.invoices,
		Payments: f.psp,
		Notifier: f.notifier,
		Clock:    fixedClock(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	f.svc = svc
	return f
}

func successMetadata(total int64) map[string]string {
	return map[string]string{
		metadataKeyCart:           `[{"id":"A","n":"House Blend","q":2,"p":1250,"s":"coffee"}]`,
		metadataKeySubtotal:       "2500",
		metadataKeyShipping:       strconv.FormatInt(total-2500, 10),
		metadataKeyTotal:          strconv.FormatInt(total, 10),
		metadataKeyCurrency:       "GBP",
		metadataKeyPricesVerified: "true",
	}
}

func TestStageShippingIsIdempotent(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	addr := &domain.Address{Line1: "1 Bean St", City: "London", PostalCode: "E1 6AN"}

	first, err := f.svc.StageShipping(ctx, StageShippingCommand{PaymentIntentID: "pi_1", ShippingAddress: addr})
	if err != nil {
		t.Fatalf("first stage: %v", err)
	}
	second, err := f.svc.StageShipping(ctx, StageShippingCommand{PaymentIntentID: "pi_1", ShippingAddress: addr})
	if err != nil {
		t.Fatalf("second stage: %v", err)
	}

	if *second.ShippingAddress != *addr {
		t.Fatalf("address mangled by second stage: %+v", second.ShippingAddress)
	}
	if first.Status != domain.OrderStatusPending || second.Status != domain.OrderStatusPending {
		t.Fatalf("staging must not change status: %s, %s", first.Status, second.Status)
	}
}

func TestStageShippingMergesPartialUpdates(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.svc.StageShipping(ctx, StageShippingCommand{
		PaymentIntentID: "pi_1",
		ShippingAddress: &domain.Address{Line1: "1 Bean St", City: "London"},
	})
	if err != nil {
		t.Fatalf("stage address: %v", err)
	}
	order, err := f.svc.StageShipping(ctx, StageShippingCommand{
		PaymentIntentID: "pi_1",
		ShippingAddress: &domain.Address{PostalCode: "E1 6AN"},
		Client:          &domain.ClientDetails{Email: "kai@example.com"},
	})
	if err != nil {
		t.Fatalf("stage postcode: %v", err)
	}

	if order.ShippingAddress.Line1 != "1 Bean St" || order.ShippingAddress.City != "London" || order.ShippingAddress.PostalCode != "E1 6AN" {
		t.Fatalf("partial update lost fields: %+v", order.ShippingAddress)
	}
	if order.Client == nil || order.Client.Email != "kai@example.com" {
		t.Fatalf("client not merged: %+v", order.Client)
	}
}

func TestStageThenReconcileKeepsStagedAddress(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.svc.StageShipping(ctx, StageShippingCommand{
		PaymentIntentID: "pi_1",
		ShippingAddress: &domain.Address{City: "London"},
	})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	result, err := f.svc.ReconcilePayment(ctx, ReconcilePaymentCommand{
		PaymentIntentID: "pi_1",
		Amount:          2999,
		Metadata:        successMetadata(2999),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	order := result.Order
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", order.Status)
	}
	if order.Total != 2999 || len(order.Items) != 1 {
		t.Fatalf("reconciled data missing: total=%d items=%d", order.Total, len(order.Items))
	}
	if order.ShippingAddress == nil || order.ShippingAddress.City != "London" {
		t.Fatalf("staged address lost: %+v", order.ShippingAddress)
	}
}

func TestReconcileThenStageCommutes(t *testing.T) {
	ctx := context.Background()

	runSequence := func(stageFirst bool) domain.Order {
		f := newOrderFixture(t)
		stage := func() {
			if _, err := f.svc.StageShipping(ctx, StageShippingCommand{
				PaymentIntentID: "pi_1",
				ShippingAddress: &domain.Address{City: "London"},
			}); err != nil {
				t.Fatalf("stage: %v", err)
			}
		}
		reconcile := func() {
			if _, err := f.svc.ReconcilePayment(ctx, ReconcilePaymentCommand{
				PaymentIntentID: "pi_1",
				Amount:          2999,
				Metadata:        successMetadata(2999),
			}); err != nil {
				t.Fatalf("reconcile: %v", err)
			}
		}
		if stageFirst {
			stage()
			reconcile()
		} else {
			reconcile()
			stage()
		}
		order, err := f.svc.GetOrder(ctx, "pi_1")
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		return order
	}

	a := runSequence(true)
	b := runSequence(false)

	if a.Status != domain.OrderStatusCompleted || b.Status != domain.OrderStatusCompleted {
		t.Fatalf("both sequences must complete: %s, %s", a.Status, b.Status)
	}
	if a.ShippingAddress.City != b.ShippingAddress.City {
		t.Fatalf("address differs: %q vs %q", a.ShippingAddress.City, b.ShippingAddress.City)
	}
	if a.Total != b.Total || len(a.Items) != len(b.Items) {
		t.Fatalf("totals differ: %d/%d vs %d/%d", a.Total, len(a.Items), b.Total, len(b.Items))
	}
}

func TestDuplicateSuccessNotifiesOnce(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	cmd := ReconcilePaymentCommand{PaymentIntentID: "pi_1", Amount: 2999, Metadata: successMetadata(2999)}

	first, err := f.svc.ReconcilePayment(ctx, cmd)
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	second, err := f.svc.ReconcilePayment(ctx, cmd)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}

	if first.AlreadyCompleted {
		t.Fatal("first reconcile reported duplicate")
	}
	if !second.AlreadyCompleted {
		t.Fatal("second reconcile not reported as duplicate")
	}
	if f.notifier.calls != 1 {
		t.Fatalf("expected exactly one notification, got %d", f.notifier.calls)
	}
	if len(f.invoices.created) != 1 {
		t.Fatalf("expected exactly one invoice, got %d", len(f.invoices.created))
	}
	if second.Order.UpdatedAt != first.Order.UpdatedAt {
		t.Fatal("duplicate reconcile modified the order")
	}
}

func TestReconcileRejectsMalformedMetadata(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.ReconcilePayment(context.Background(), ReconcilePaymentCommand{
		PaymentIntentID: "pi_1",
		Amount:          2999,
		Metadata:        map[string]string{metadataKeyCart: "{broken"},
	})
	if !errors.Is(err, ErrReconcileMetadata) {
		t.Fatalf("expected ErrReconcileMetadata, got %v", err)
	}
	if _, getErr := f.svc.GetOrder(context.Background(), "pi_1"); !errors.Is(getErr, ErrOrderNotFound) {
		t.Fatal("malformed metadata must not fabricate an order")
	}
	if f.notifier.calls != 0 {
		t.Fatal("notification sent for failed reconciliation")
	}
}

func TestReconcileRejectsMissingCurrency(t *testing.T) {
	f := newOrderFixture(t)

	metadata := successMetadata(2999)
	delete(metadata, metadataKeyCurrency)

	_, err := f.svc.ReconcilePayment(context.Background(), ReconcilePaymentCommand{
		PaymentIntentID: "pi_1",
		Amount:          2999,
		Metadata:        metadata,
	})
	if !errors.Is(err, ErrReconcileMetadata) {
		t.Fatalf("expected ErrReconcileMetadata, got %v", err)
	}
	if _, getErr := f.svc.GetOrder(context.Background(), "pi_1"); !errors.Is(getErr, ErrOrderNotFound) {
		t.Fatal("missing currency must not fabricate an order")
	}
}

func TestReconcileRejectsAmountMismatch(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.ReconcilePayment(context.Background(), ReconcilePaymentCommand{
		PaymentIntentID: "pi_1",
		Amount:          1000,
		Metadata:        successMetadata(2999),
	})
	if !errors.Is(err, ErrReconcileAmountMismatch) {
		t.Fatalf("expected ErrReconcileAmountMismatch, got %v", err)
	}
}

func TestNotificationFailureIsSoftAndFlagged(t *testing.T) {
	f := newOrderFixture(t)
	f.notifier.err = errors.New("smtp relay down")

	result, err := f.svc.ReconcilePayment(context.Background(), ReconcilePaymentCommand{
		PaymentIntentID: "pi_1",
		Amount:          2999,
		Metadata:        successMetadata(2999),
	})
	if err != nil {
		t.Fatalf("reconcile must not fail on notification error: %v", err)
	}
	if result.Order.Status != domain.OrderStatusCompleted {
		t.Fatalf("order not completed: %s", result.Order.Status)
	}

	stored, err := f.svc.GetOrder(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if !stored.Flags.NotificationFailed {
		t.Fatal("notification failure not flagged on the order")
	}
}

func TestProcessorSyncFailureIsSoftAndFlagged(t *testing.T) {
	f := newOrderFixture(t)
	f.psp.updateErr = errors.New("stripe 500")

	result, err := f.svc.ReconcilePayment(context.Background(), ReconcilePaymentCommand{
		PaymentIntentID: "pi_1",
		Amount:          2999,
		Metadata:        successMetadata(2999),
	})
	if err != nil {
		t.Fatalf("reconcile must not fail on metadata sync error: %v", err)
	}
	if result.Order.Status != domain.OrderStatusCompleted {
		t.Fatalf("order not completed: %s", result.Order.Status)
	}

	stored, err := f.svc.GetOrder(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if !stored.Flags.ProcessorSyncPending {
		t.Fatal("processor desync not flagged on the order")
	}
}

func TestFailPaymentNeverDemotesCompletedOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	if _, err := f.svc.ReconcilePayment(ctx, ReconcilePaymentCommand{
		PaymentIntentID: "pi_1",
		Amount:          2999,
		Metadata:        successMetadata(2999),
	}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if err := f.svc.FailPayment(ctx, FailPaymentCommand{PaymentIntentID: "pi_1", Reason: "late decline"}); err != nil {
		t.Fatalf("fail payment: %v", err)
	}

	order, err := f.svc.GetOrder(ctx, "pi_1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("completed order demoted to %s", order.Status)
	}
}

func TestFailPaymentMarksPendingOrderFailed(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StageShipping(ctx, StageShippingCommand{
		PaymentIntentID: "pi_1",
		ShippingAddress: &domain.Address{City: "Leeds"},
	}); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := f.svc.FailPayment(ctx, FailPaymentCommand{PaymentIntentID: "pi_1", Reason: "card declined"}); err != nil {
		t.Fatalf("fail payment: %v", err)
	}

	order, err := f.svc.GetOrder(ctx, "pi_1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusFailed {
		t.Fatalf("expected failed, got %s", order.Status)
	}
}

func TestShipOrderRequiresCompletedOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StageShipping(ctx, StageShippingCommand{
		PaymentIntentID: "pi_1",
		ShippingAddress: &domain.Address{City: "York"},
	}); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if _, err := f.svc.ShipOrder(ctx, ShipOrderCommand{PaymentIntentID: "pi_1", Carrier: "royal-mail"}); !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected ErrOrderConflict for pending order, got %v", err)
	}

	if _, err := f.svc.ReconcilePayment(ctx, ReconcilePaymentCommand{
		PaymentIntentID: "pi_1",
		Amount:          2999,
		Metadata:        successMetadata(2999),
	}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	order, err := f.svc.ShipOrder(ctx, ShipOrderCommand{PaymentIntentID: "pi_1", Carrier: "royal-mail", TrackingCode: "RM123"})
	if err != nil {
		t.Fatalf("ship order: %v", err)
	}
	if order.Fulfillment.Carrier != "royal-mail" || order.Fulfillment.TrackingCode != "RM123" {
		t.Fatalf("fulfillment not recorded: %+v", order.Fulfillment)
	}
	if f.notifier.shipmentCalls != 1 {
		t.Fatalf("expected one shipment notice, got %d", f.notifier.shipmentCalls)
	}
}

func TestRefundOrderTransitionsAndCallsPSP(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	if _, err := f.svc.ReconcilePayment(ctx, ReconcilePaymentCommand{
		PaymentIntentID: "pi_1",
		Amount:          2999,
		Metadata:        successMetadata(2999),
	}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	order, err := f.svc.RefundOrder(ctx, RefundOrderCommand{PaymentIntentID: "pi_1", Reason: "requested_by_customer"})
	if err != nil {
		t.Fatalf("refund order: %v", err)
	}
	if order.Status != domain.OrderStatusRefunded {
		t.Fatalf("expected refunded, got %s", order.Status)
	}
	if f.psp.lastRefund.IntentID != "pi_1" {
		t.Fatalf("PSP refund not issued: %+v", f.psp.lastRefund)
	}
	if f.notifier.refundCalls != 1 {
		t.Fatalf("expected one refund notice, got %d", f.notifier.refundCalls)
	}

	// A second refund attempt must be rejected by the status guard.
	if _, err := f.svc.RefundOrder(ctx, RefundOrderCommand{PaymentIntentID: "pi_1"}); !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected ErrOrderConflict on double refund, got %v", err)
	}
}

func TestRefundOrderKeepsOrderWhenPSPRejects(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	if _, err := f.svc.ReconcilePayment(ctx, ReconcilePaymentCommand{
		PaymentIntentID: "pi_1",
		Amount:          2999,
		Metadata:        successMetadata(2999),
	}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	f.psp.refundErr = errors.New("charge disputed")
	if _, err := f.svc.RefundOrder(ctx, RefundOrderCommand{PaymentIntentID: "pi_1"}); !errors.Is(err, ErrRefundFailed) {
		t.Fatalf("expected ErrRefundFailed, got %v", err)
	}

	order, err := f.svc.GetOrder(ctx, "pi_1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("order moved despite PSP rejection: %s", order.Status)
	}
}

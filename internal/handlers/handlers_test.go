package handlers

import (
	"context"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/services"
)

type stubCheckoutService struct {
	createFunc func(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntentResult, error)
}

func (s *stubCheckoutService) CreatePaymentIntent(ctx context.Context, cmd services.CreatePaymentIntentCommand) (services.PaymentIntentResult, error) {
	if s.createFunc == nil {
		return services.PaymentIntentResult{}, nil
	}
	return s.createFunc(ctx, cmd)
}

type stubOrderService struct {
	stageFunc     func(ctx context.Context, cmd services.StageShippingCommand) (domain.Order, error)
	reconcileFunc func(ctx context.Context, cmd services.ReconcilePaymentCommand) (services.ReconcileResult, error)
	failFunc      func(ctx context.Context, cmd services.FailPaymentCommand) error
	getFunc       func(ctx context.Context, paymentIntentID string) (domain.Order, error)
	listFunc      func(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error)
	shipFunc      func(ctx context.Context, cmd services.ShipOrderCommand) (domain.Order, error)
	refundFunc    func(ctx context.Context, cmd services.RefundOrderCommand) (domain.Order, error)
}

func (s *stubOrderService) StageShipping(ctx context.Context, cmd services.StageShippingCommand) (domain.Order, error) {
	if s.stageFunc == nil {
		return domain.Order{}, nil
	}
	return s.stageFunc(ctx, cmd)
}

func (s *stubOrderService) ReconcilePayment(ctx context.Context, cmd services.ReconcilePaymentCommand) (services.ReconcileResult, error) {
	if s.reconcileFunc == nil {
		return services.ReconcileResult{}, nil
	}
	return s.reconcileFunc(ctx, cmd)
}

func (s *stubOrderService) FailPayment(ctx context.Context, cmd services.FailPaymentCommand) error {
	if s.failFunc == nil {
		return nil
	}
	return s.failFunc(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, paymentIntentID string) (domain.Order, error) {
	if s.getFunc == nil {
		return domain.Order{}, nil
	}
	return s.getFunc(ctx, paymentIntentID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	if s.listFunc == nil {
		return nil, nil
	}
	return s.listFunc(ctx, status, limit)
}

func (s *stubOrderService) ShipOrder(ctx context.Context, cmd services.ShipOrderCommand) (domain.Order, error) {
	if s.shipFunc == nil {
		return domain.Order{}, nil
	}
	return s.shipFunc(ctx, cmd)
}

func (s *stubOrderService) RefundOrder(ctx context.Context, cmd services.RefundOrderCommand) (domain.Order, error) {
	if s.refundFunc == nil {
		return domain.Order{}, nil
	}
	return s.refundFunc(ctx, cmd)
}

type stubInvoiceService struct {
	createManualFunc func(ctx context.Context, cmd services.CreateInvoiceCommand) (domain.Invoice, error)
	markPaidFunc     func(ctx context.Context, invoiceNumber string) (domain.Invoice, error)
	getFunc          func(ctx context.Context, invoiceNumber string) (domain.Invoice, error)
	listFunc         func(ctx context.Context, source domain.InvoiceSource, limit int) ([]domain.Invoice, error)
}

func (s *stubInvoiceService) CreateManualInvoice(ctx context.Context, cmd services.CreateInvoiceCommand) (domain.Invoice, error) {
	if s.createManualFunc == nil {
		return domain.Invoice{}, nil
	}
	return s.createManualFunc(ctx, cmd)
}

func (s *stubInvoiceService) CreateFromOrder(context.Context, domain.Order) (domain.Invoice, error) {
	return domain.Invoice{}, nil
}

func (s *stubInvoiceService) MarkPaid(ctx context.Context, invoiceNumber string) (domain.Invoice, error) {
	if s.markPaidFunc == nil {
		return domain.Invoice{}, nil
	}
	return s.markPaidFunc(ctx, invoiceNumber)
}

func (s *stubInvoiceService) GetInvoice(ctx context.Context, invoiceNumber string) (domain.Invoice, error) {
	if s.getFunc == nil {
		return domain.Invoice{}, nil
	}
	return s.getFunc(ctx, invoiceNumber)
}

func (s *stubInvoiceService) ListInvoices(ctx context.Context, source domain.InvoiceSource, limit int) ([]domain.Invoice, error) {
	if s.listFunc == nil {
		return nil, nil
	}
	return s.listFunc(ctx, source, limit)
}

type stubSettingsService struct {
	getFunc    func(ctx context.Context) (domain.ShippingSettings, error)
	updateFunc func(ctx context.Context, settings domain.ShippingSettings) (domain.ShippingSettings, error)
}

func (s *stubSettingsService) ShippingSettings(ctx context.Context) (domain.ShippingSettings, error) {
	if s.getFunc == nil {
		return domain.ShippingSettings{}, nil
	}
	return s.getFunc(ctx)
}

func (s *stubSettingsService) UpdateShippingSettings(ctx context.Context, settings domain.ShippingSettings) (domain.ShippingSettings, error) {
	if s.updateFunc == nil {
		return settings, nil
	}
	return s.updateFunc(ctx, settings)
}

var (
	_ services.CheckoutService = (*stubCheckoutService)(nil)
	_ services.OrderService    = (*stubOrderService)(nil)
	_ services.InvoiceService  = (*stubInvoiceService)(nil)
	_ services.SettingsService = (*stubSettingsService)(nil)
)

package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/repositories"
)

var (
	// ErrInvoiceInvalidInput indicates the caller supplied invalid input parameters.
	ErrInvoiceInvalidInput = errors.New("invoices: invalid input")
	// ErrInvoiceNotFound indicates no invoice exists under the number.
	ErrInvoiceNotFound = errors.New("invoices: not found")
	// ErrInvoiceConflict indicates the invoice state forbids the operation.
	ErrInvoiceConflict = errors.New("invoices: conflict")
)

// Duplicate invoice numbers are retried with a fresh random suffix.
const invoiceNumberAttempts = 5

// InvoiceServiceDeps wires the dependencies required by the invoice service.
type InvoiceServiceDeps struct {
	Invoices repositories.InvoiceRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
	// Random overrides the suffix source in tests.
	Random func(max int64) (int64, error)
}

type invoiceService struct {
	invoices repositories.InvoiceRepository
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
	random   func(max int64) (int64, error)
}

// NewInvoiceService constructs an InvoiceService validating required dependencies.
func NewInvoiceService(deps InvoiceServiceDeps) (InvoiceService, error) {
	if deps.Invoices == nil {
		return nil, errors.New("invoice service: invoice repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	random := deps.Random
	if random == nil {
		random = cryptoRandom
	}
	return &invoiceService{
		invoices: deps.Invoices,
		now:      nowUTC(deps.Clock),
		logger:   logger,
		random:   random,
	}, nil
}

func cryptoRandom(max int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}

// invoiceNumber builds an invoice number of the form INV-<year>-<yyyymmdd>-<rand4>.
func (s *invoiceService) invoiceNumber(now time.Time) (string, error) {
	suffix, err := s.random(10000)
	if err != nil {
		return "", fmt.Errorf("invoices: generate number: %w", err)
	}
	return fmt.Sprintf("INV-%04d-%s-%04d", now.Year(), now.Format("20060102"), suffix), nil
}

// CreateManualInvoice raises an unpaid manual invoice from the back office.
func (s *invoiceService) CreateManualInvoice(ctx context.Context, cmd CreateInvoiceCommand) (domain.Invoice, error) {
	if len(cmd.Items) == 0 {
		return domain.Invoice{}, fmt.Errorf("%w: at least one item is required", ErrInvoiceInvalidInput)
	}
	if cmd.Shipping < 0 {
		return domain.Invoice{}, fmt.Errorf("%w: negative shipping", ErrInvoiceInvalidInput)
	}

	var subtotal int64
	for _, item := range cmd.Items {
		if item.Quantity <= 0 || item.VerifiedUnitPrice < 0 {
			return domain.Invoice{}, fmt.Errorf("%w: invalid item %s", ErrInvoiceInvalidInput, item.ItemID)
		}
		subtotal += item.VerifiedUnitPrice * int64(item.Quantity)
	}

	now := s.now()
	invoice := domain.Invoice{
		OrderNumber:   strings.TrimSpace(cmd.OrderNumber),
		Items:         cmd.Items,
		Subtotal:      subtotal,
		Shipping:      cmd.Shipping,
		Total:         subtotal + cmd.Shipping,
		Currency:      strings.ToUpper(strings.TrimSpace(cmd.Currency)),
		Client:        cmd.Client,
		Source:        domain.InvoiceSourceManual,
		PaymentStatus: domain.InvoiceUnpaid,
		DueDate:       cmd.DueDate,
		CreatedAt:     now,
	}
	return s.insertWithFreshNumber(ctx, invoice, now)
}

// CreateFromOrder raises a paid, stripe-sourced invoice for a settled order.
func (s *invoiceService) CreateFromOrder(ctx context.Context, order domain.Order) (domain.Invoice, error) {
	if order.PaymentIntentID == "" {
		return domain.Invoice{}, fmt.Errorf("%w: order has no payment intent", ErrInvoiceInvalidInput)
	}

	now := s.now()
	paidAt := now
	if order.CompletedAt != nil {
		paidAt = *order.CompletedAt
	}
	client := domain.ClientDetails{}
	if order.Client != nil {
		client = *order.Client
	}
	invoice := domain.Invoice{
		OrderNumber:   order.PaymentIntentID,
		Items:         order.Items,
		Subtotal:      order.Subtotal,
		Shipping:      order.ShippingFee,
		Total:         order.Total,
		Currency:      order.Currency,
		Client:        client,
		Source:        domain.InvoiceSourceStripe,
		PaymentStatus: domain.InvoicePaid,
		PaidAt:        &paidAt,
		CreatedAt:     now,
	}
	return s.insertWithFreshNumber(ctx, invoice, now)
}

func (s *invoiceService) insertWithFreshNumber(ctx context.Context, invoice domain.Invoice, now time.Time) (domain.Invoice, error) {
	for attempt := 0; attempt < invoiceNumberAttempts; attempt++ {
		number, err := s.invoiceNumber(now)
		if err != nil {
			return domain.Invoice{}, err
		}
		invoice.ID = number
		if invoice.OrderNumber == "" {
			invoice.OrderNumber = number
		}

		err = s.invoices.Insert(ctx, invoice)
		if err == nil {
			s.logger(ctx, "invoices.created", map[string]any{
				"invoice": number,
				"source":  string(invoice.Source),
				"total":   invoice.Total,
			})
			return invoice, nil
		}

		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			continue
		}
		return domain.Invoice{}, err
	}
	return domain.Invoice{}, fmt.Errorf("%w: could not allocate a unique invoice number", ErrInvoiceConflict)
}

// MarkPaid settles a manual invoice.
func (s *invoiceService) MarkPaid(ctx context.Context, invoiceNumber string) (domain.Invoice, error) {
	number := strings.TrimSpace(invoiceNumber)
	if number == "" {
		return domain.Invoice{}, fmt.Errorf("%w: invoice number is required", ErrInvoiceInvalidInput)
	}

	invoice, err := s.invoices.MarkPaid(ctx, number, s.now())
	if err != nil {
		return domain.Invoice{}, mapInvoiceRepoError(err)
	}
	s.logger(ctx, "invoices.paid", map[string]any{"invoice": number})
	return invoice, nil
}

// GetInvoice fetches a single invoice.
func (s *invoiceService) GetInvoice(ctx context.Context, invoiceNumber string) (domain.Invoice, error) {
	number := strings.TrimSpace(invoiceNumber)
	if number == "" {
		return domain.Invoice{}, fmt.Errorf("%w: invoice number is required", ErrInvoiceInvalidInput)
	}
	invoice, err := s.invoices.FindByNumber(ctx, number)
	if err != nil {
		return domain.Invoice{}, mapInvoiceRepoError(err)
	}
	return invoice, nil
}

// ListInvoices lists invoices for the back office, optionally by source.
func (s *invoiceService) ListInvoices(ctx context.Context, source domain.InvoiceSource, limit int) ([]domain.Invoice, error) {
	return s.invoices.List(ctx, repositories.InvoiceListFilter{Source: source, Limit: limit})
}

func mapInvoiceRepoError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrInvoiceNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrInvoiceConflict, err)
		}
	}
	return err
}

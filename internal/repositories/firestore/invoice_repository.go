package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/roastline/api/internal/domain"
	pfirestore "github.com/roastline/api/internal/platform/firestore"
	"github.com/roastline/api/internal/repositories"
)

const invoicesCollection = "invoices"

// InvoiceRepository stores invoices keyed by invoice number, so number
// uniqueness is enforced by document creation.
type InvoiceRepository struct {
	provider *pfirestore.Provider
	invoices *pfirestore.BaseRepository[invoiceDocument]
}

// NewInvoiceRepository constructs the Firestore-backed invoice repository.
func NewInvoiceRepository(provider *pfirestore.Provider) (*InvoiceRepository, error) {
	if provider == nil {
		return nil, errors.New("invoice repository requires firestore provider")
	}
	invoices := pfirestore.NewBaseRepository[invoiceDocument](provider, invoicesCollection, nil)
	return &InvoiceRepository{provider: provider, invoices: invoices}, nil
}

type invoiceDocument struct {
	OrderNumber   string              `firestore:"orderNumber"`
	Items         []orderItemDocument `firestore:"items"`
	Subtotal      int64               `firestore:"subtotal"`
	Shipping      int64               `firestore:"shipping"`
	Total         int64               `firestore:"total"`
	Currency      string              `firestore:"currency"`
	Client        clientDocument      `firestore:"client"`
	Source        string              `firestore:"source"`
	PaymentStatus string              `firestore:"paymentStatus"`
	PaidAt        *time.Time          `firestore:"paidAt,omitempty"`
	DueDate       *time.Time          `firestore:"dueDate,omitempty"`
	CreatedAt     time.Time           `firestore:"createdAt"`
}

// Insert stores a new invoice; a duplicate number yields a conflict.
func (r *InvoiceRepository) Insert(ctx context.Context, invoice domain.Invoice) error {
	number := strings.TrimSpace(invoice.ID)
	if number == "" {
		return errors.New("invoice insert: invoice number is required")
	}
	_, err := r.invoices.Create(ctx, number, newInvoiceDocument(invoice))
	return err
}

// FindByNumber fetches a single invoice.
func (r *InvoiceRepository) FindByNumber(ctx context.Context, number string) (domain.Invoice, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return domain.Invoice{}, errors.New("invoice lookup: invoice number is required")
	}
	doc, err := r.invoices.Get(ctx, number)
	if err != nil {
		return domain.Invoice{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns invoices matching the filter, newest first.
func (r *InvoiceRepository) List(ctx context.Context, filter repositories.InvoiceListFilter) ([]domain.Invoice, error) {
	docs, err := r.invoices.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Source != "" {
			q = q.Where("source", "==", string(filter.Source))
		}
		if filter.PaymentStatus != "" {
			q = q.Where("paymentStatus", "==", string(filter.PaymentStatus))
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
	invoices := make([]domain.Invoice, 0, len(docs))
	for _, doc := range docs {
		invoices = append(invoices, doc.Data.toDomain(doc.ID))
	}
	return invoices, nil
}

// MarkPaid settles a manual invoice. Stripe-sourced invoices and invoices
// already paid yield a conflict.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, number string, paidAt time.Time) (domain.Invoice, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return domain.Invoice{}, errors.New("invoice mark paid: invoice number is required")
	}
	paidAt = paidAt.UTC()

	var updated invoiceDocument
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.invoices.DocumentRef(ctx, number)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc invoiceDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode invoice %s: %w", number, err)
		}
		if domain.InvoiceSource(doc.Source) != domain.InvoiceSourceManual {
			return pfirestore.NewConflict("invoices.mark_paid", fmt.Errorf("invoice %s is %s-sourced, only manual invoices can be marked paid", number, doc.Source))
		}
		if domain.InvoicePaymentStatus(doc.PaymentStatus) == domain.InvoicePaid {
			return pfirestore.NewConflict("invoices.mark_paid", fmt.Errorf("invoice %s is already paid", number))
		}

		doc.PaymentStatus = string(domain.InvoicePaid)
		doc.PaidAt = &paidAt
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = doc
		return nil
	})
	if err != nil {
		return domain.Invoice{}, pfirestore.WrapError("invoices.mark_paid", err)
	}
	return updated.toDomain(number), nil
}

func newInvoiceDocument(invoice domain.Invoice) invoiceDocument {
	doc := invoiceDocument{
		OrderNumber:   invoice.OrderNumber,
		Items:         toItemDocuments(invoice.Items),
		Subtotal:      invoice.Subtotal,
		Shipping:      invoice.Shipping,
		Total:         invoice.Total,
		Currency:      invoice.Currency,
		Client:        clientDocument{Name: invoice.Client.Name, Email: invoice.Client.Email, Phone: invoice.Client.Phone},
		Source:        string(invoice.Source),
		PaymentStatus: string(invoice.PaymentStatus),
		CreatedAt:     invoice.CreatedAt.UTC(),
	}
	if invoice.PaidAt != nil {
		paidAt := invoice.PaidAt.UTC()
		doc.PaidAt = &paidAt
	}
	if invoice.DueDate != nil {
		dueDate := invoice.DueDate.UTC()
		doc.DueDate = &dueDate
	}
	return doc
}

func (d invoiceDocument) toDomain(number string) domain.Invoice {
	invoice := domain.Invoice{
		ID:            number,
		OrderNumber:   d.OrderNumber,
		Subtotal:      d.Subtotal,
		Shipping:      d.Shipping,
		Total:         d.Total,
		Currency:      d.Currency,
		Client:        domain.ClientDetails{Name: d.Client.Name, Email: d.Client.Email, Phone: d.Client.Phone},
		Source:        domain.InvoiceSource(d.Source),
		PaymentStatus: domain.InvoicePaymentStatus(d.PaymentStatus),
		PaidAt:        d.PaidAt,
		DueDate:       d.DueDate,
		CreatedAt:     d.CreatedAt,
	}
	if len(d.Items) > 0 {
		invoice.Items = make([]domain.VerifiedLine, 0, len(d.Items))
		for _, item := range d.Items {
			invoice.Items = append(invoice.Items, domain.VerifiedLine{
				ItemID:            item.ItemID,
				Name:              item.Name,
				Quantity:          item.Quantity,
				VerifiedUnitPrice: item.UnitPrice,
				LineTotal:         item.LineTotal,
				Source:            domain.CatalogSource(item.Source),
			})
		}
	}
	return invoice
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/roastline/api/internal/domain"
	"github.com/roastline/api/internal/platform/httpx"
	"github.com/roastline/api/internal/services"
)

// AdminInvoiceHandlers serves the back-office invoice surface.
type AdminInvoiceHandlers struct {
	invoices services.InvoiceService
}

// NewAdminInvoiceHandlers constructs admin invoice handlers.
func NewAdminInvoiceHandlers(invoices services.InvoiceService) *AdminInvoiceHandlers {
	return &AdminInvoiceHandlers{invoices: invoices}
}

// Routes registers admin invoice endpoints under the provided router.
func (h *AdminInvoiceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/invoices", h.createInvoice)
	r.Get("/invoices", h.listInvoices)
	r.Get("/invoices/{invoiceNumber}", h.getInvoice)
	r.Post("/invoices/{invoiceNumber}/pay", h.markPaid)
}

type invoiceLineRequest struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type createInvoiceRequest struct {
	OrderNumber string               `json:"orderNumber"`
	Items       []invoiceLineRequest `json:"items"`
	Shipping    float64              `json:"shipping"`
	Currency    string               `json:"currency"`
	Client      clientPayload        `json:"client"`
	DueDate     string               `json:"dueDate"`
}

func (h *AdminInvoiceHandlers) createInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.invoices == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invoices_unavailable", "invoice service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxAdminRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req createInvoiceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.CreateInvoiceCommand{
		OrderNumber: strings.TrimSpace(req.OrderNumber),
		Shipping:    domain.MoneyFromMajorUnits(req.Shipping, "").MinorUnits,
		Currency:    strings.TrimSpace(req.Currency),
	}
	if client := req.Client.toDomain(); client != nil {
		cmd.Client = *client
	}
	for _, item := range req.Items {
		unitPrice := domain.MoneyFromMajorUnits(item.Price, "").MinorUnits
		cmd.Items = append(cmd.Items, domain.VerifiedLine{
			ItemID:            strings.TrimSpace(item.ID),
			Name:              strings.TrimSpace(item.Name),
			Quantity:          item.Quantity,
			VerifiedUnitPrice: unitPrice,
			LineTotal:         unitPrice * int64(item.Quantity),
		})
	}
	if due := strings.TrimSpace(req.DueDate); due != "" {
		parsed, err := time.Parse("2006-01-02", due)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "dueDate must be formatted YYYY-MM-DD", http.StatusBadRequest))
			return
		}
		cmd.DueDate = &parsed
	}

	invoice, err := h.invoices.CreateManualInvoice(ctx, cmd)
	if err != nil {
		writeInvoiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, invoiceFromDomain(invoice))
}

func (h *AdminInvoiceHandlers) listInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.invoices == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invoices_unavailable", "invoice service unavailable", http.StatusServiceUnavailable))
		return
	}

	source := domain.InvoiceSource(strings.TrimSpace(r.URL.Query().Get("source")))
	if source != "" && source != domain.InvoiceSourceManual && source != domain.InvoiceSourceStripe {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown invoice source filter", http.StatusBadRequest))
		return
	}

	invoices, err := h.invoices.ListInvoices(ctx, source, parseLimit(r))
	if err != nil {
		writeInvoiceError(ctx, w, err)
		return
	}

	payload := make([]invoicePayload, 0, len(invoices))
	for _, invoice := range invoices {
		payload = append(payload, invoiceFromDomain(invoice))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"invoices": payload})
}

func (h *AdminInvoiceHandlers) getInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.invoices == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invoices_unavailable", "invoice service unavailable", http.StatusServiceUnavailable))
		return
	}

	invoice, err := h.invoices.GetInvoice(ctx, chi.URLParam(r, "invoiceNumber"))
	if err != nil {
		writeInvoiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, invoiceFromDomain(invoice))
}

func (h *AdminInvoiceHandlers) markPaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.invoices == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invoices_unavailable", "invoice service unavailable", http.StatusServiceUnavailable))
		return
	}

	invoice, err := h.invoices.MarkPaid(ctx, chi.URLParam(r, "invoiceNumber"))
	if err != nil {
		writeInvoiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, invoiceFromDomain(invoice))
}

func writeInvoiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvoiceInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInvoiceNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("invoice_not_found", "no invoice with that number", http.StatusNotFound))
	case errors.Is(err, services.ErrInvoiceConflict):
		httpx.WriteError(ctx, w, httpx.NewError("invoice_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "invoice operation failed", http.StatusInternalServerError))
	}
}

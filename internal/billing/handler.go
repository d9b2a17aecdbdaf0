package billing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/erp-lite/internal/platform/httpx"
)

// Handler exposes invoice and receipt endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Get("/{id}", h.showInvoice)
		r.Post("/{id}/cancel", h.cancelInvoice)
		r.Get("/{id}/receipts", h.listReceipts)
		r.Post("/{id}/receipts", h.recordReceipt)
	})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.RespondErrorLogged(w, h.logger, err)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	var err error
	if filter.ClientID, err = httpx.QueryID(r, "client_id"); err != nil {
		h.fail(w, err)
		return
	}
	if filter.OrderID, err = httpx.QueryID(r, "order_id"); err != nil {
		h.fail(w, err)
		return
	}
	if filter.Limit, err = httpx.QueryInt(r, "limit", 0); err != nil {
		h.fail(w, err)
		return
	}
	if filter.Offset, err = httpx.QueryInt(r, "offset", 0); err != nil {
		h.fail(w, err)
		return
	}
	filter.Status = r.URL.Query().Get("status")
	invoices, err := h.service.ListInvoices(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	if invoices == nil {
		invoices = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var input InvoiceInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, err)
		return
	}
	inv, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) showInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	inv, err := h.service.CancelInvoice(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	receipts, err := h.service.ListReceipts(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if receipts == nil {
		receipts = []Receipt{}
	}
	httpx.JSON(w, http.StatusOK, receipts)
}

func (h *Handler) recordReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var input ReceiptInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, err)
		return
	}
	input.InvoiceID = id
	receipt, invoice, err := h.service.RecordReceipt(r.Context(), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"receipt": receipt, "invoice": invoice})
}

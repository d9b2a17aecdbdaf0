package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/erp-lite/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/transactions", h.listTransactions)
	r.Post("/transactions", h.applyTransaction)
	r.Post("/transactions/batch", h.applyBatch)
	r.Get("/products/{id}/reconciliation", h.reconcile)
}

func (h *Handler) applyTransaction(w http.ResponseWriter, r *http.Request) {
	var input ApplyInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.ApplyTransaction(r.Context(), input)
	if err != nil {
		httpx.RespondErrorLogged(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) applyBatch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Lines []ApplyInput `json:"lines"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.ApplyBatch(r.Context(), payload.Lines)
	if err != nil {
		httpx.RespondErrorLogged(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entries)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.QueryID(r, "product_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := httpx.QueryInt(r, "limit", 200)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var id int64
	if productID != nil {
		id = *productID
	}
	entries, err := h.service.ListTransactions(r.Context(), id, limit)
	if err != nil {
		httpx.RespondErrorLogged(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []Transaction{}
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.ReconcileStock(r.Context(), id)
	if err != nil {
		httpx.RespondErrorLogged(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/erp-lite/internal/platform/httpx"
)

// Handler manages sales endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quotations", func(r chi.Router) {
		r.Get("/", h.listQuotations)
		r.Post("/", h.createQuotation)
		r.Get("/{id}", h.showQuotation)
		r.Post("/{id}/status", h.transitionQuotation)
		r.Post("/{id}/convert", h.convertQuotation)
	})
	r.Route("/sales-orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)
		r.Get("/{id}", h.showOrder)
		r.Post("/{id}/status", h.transitionOrder)
		r.Get("/{id}/deliveries", h.listDeliveries)
		r.Post("/{id}/deliveries", h.createDelivery)
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func listFilter(r *http.Request) (ListFilter, error) {
	clientID, err := httpx.QueryID(r, "client_id")
	if err != nil {
		return ListFilter{}, err
	}
	limit, err := httpx.QueryInt(r, "limit", 0)
	if err != nil {
		return ListFilter{}, err
	}
	offset, err := httpx.QueryInt(r, "offset", 0)
	if err != nil {
		return ListFilter{}, err
	}
	return ListFilter{ClientID: clientID, Status: r.URL.Query().Get("status"), Limit: limit, Offset: offset}, nil
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		httpx.RespondErrorLogged(w, h.logger, err)
		return
	}
	httpx.JSON(w, status, v)
}

// Quotation handlers
func (h *Handler) listQuotations(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListQuotations(r.Context(), filter)
	if list == nil {
		list = []Quotation{}
	}
	h.respond(w, http.StatusOK, list, err)
}

func (h *Handler) createQuotation(w http.ResponseWriter, r *http.Request) {
	var input QuotationInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.CreateQuotation(r.Context(), input)
	h.respond(w, http.StatusCreated, q, err)
}

func (h *Handler) showQuotation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.GetQuotation(r.Context(), id)
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) transitionQuotation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.TransitionQuotation(r.Context(), id, req.Status)
	h.respond(w, http.StatusOK, q, err)
}

func (h *Handler) convertQuotation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var opts OrderOptions
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &opts); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	order, err := h.service.ConvertQuotation(r.Context(), id, opts)
	h.respond(w, http.StatusCreated, order, err)
}

// Sales order handlers
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListSalesOrders(r.Context(), filter)
	if list == nil {
		list = []SalesOrder{}
	}
	h.respond(w, http.StatusOK, list, err)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var input SalesOrderInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.CreateSalesOrder(r.Context(), input)
	h.respond(w, http.StatusCreated, order, err)
}

func (h *Handler) showOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.GetSalesOrder(r.Context(), id)
	h.respond(w, http.StatusOK, order, err)
}

func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.TransitionSalesOrder(r.Context(), id, req.Status)
	h.respond(w, http.StatusOK, order, err)
}

// Delivery handlers
func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	notes, err := h.service.ListDeliveryNotes(r.Context(), id)
	if notes == nil {
		notes = []DeliveryNote{}
	}
	h.respond(w, http.StatusOK, notes, err)
}

func (h *Handler) createDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input DeliveryInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input.OrderID = id
	note, err := h.service.CreateDeliveryNote(r.Context(), input)
	h.respond(w, http.StatusCreated, note, err)
}

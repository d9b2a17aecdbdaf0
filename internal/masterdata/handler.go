package masterdata

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/erp-lite/internal/platform/httpx"
)

// Handler manages master data endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.listClients)
		r.Post("/", h.createClient)
		r.Get("/{id}", h.showClient)
		r.Put("/{id}", h.updateClient)
		r.Delete("/{id}", h.deleteClient)
	})
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.listSuppliers)
		r.Post("/", h.createSupplier)
		r.Get("/{id}", h.showSupplier)
		r.Put("/{id}", h.updateSupplier)
		r.Delete("/{id}", h.deleteSupplier)
	})
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.showProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
	})
}

func listFilters(r *http.Request) (ListFilters, error) {
	limit, err := httpx.QueryInt(r, "limit", 0)
	if err != nil {
		return ListFilters{}, err
	}
	offset, err := httpx.QueryInt(r, "offset", 0)
	if err != nil {
		return ListFilters{}, err
	}
	q := r.URL.Query()
	return ListFilters{Search: q.Get("q"), Category: q.Get("category"), Limit: limit, Offset: offset}, nil
}

// respond writes v or the mapped error.
func (h *Handler) respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		httpx.RespondErrorLogged(w, h.logger, err)
		return
	}
	if v == nil {
		w.WriteHeader(status)
		return
	}
	httpx.JSON(w, status, v)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	filters, err := listFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	clients, err := h.service.ListClients(r.Context(), filters)
	if clients == nil {
		clients = []Client{}
	}
	h.respond(w, http.StatusOK, clients, err)
}

func (h *Handler) showClient(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	client, err := h.service.GetClient(r.Context(), id)
	h.respond(w, http.StatusOK, client, err)
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var input ClientInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	client, err := h.service.CreateClient(r.Context(), input)
	h.respond(w, http.StatusCreated, client, err)
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input ClientInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	client, err := h.service.UpdateClient(r.Context(), id, input)
	h.respond(w, http.StatusOK, client, err)
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil, h.service.DeleteClient(r.Context(), id))
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	filters, err := listFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	suppliers, err := h.service.ListSuppliers(r.Context(), filters)
	if suppliers == nil {
		suppliers = []Supplier{}
	}
	h.respond(w, http.StatusOK, suppliers, err)
}

func (h *Handler) showSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplier, err := h.service.GetSupplier(r.Context(), id)
	h.respond(w, http.StatusOK, supplier, err)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var input SupplierInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplier, err := h.service.CreateSupplier(r.Context(), input)
	h.respond(w, http.StatusCreated, supplier, err)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input SupplierInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplier, err := h.service.UpdateSupplier(r.Context(), id, input)
	h.respond(w, http.StatusOK, supplier, err)
}

func (h *Handler) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil, h.service.DeleteSupplier(r.Context(), id))
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filters, err := listFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	products, err := h.service.ListProducts(r.Context(), filters)
	if products == nil {
		products = []Product{}
	}
	h.respond(w, http.StatusOK, products, err)
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	h.respond(w, http.StatusOK, product, err)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), input)
	h.respond(w, http.StatusCreated, product, err)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input ProductInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), id, input)
	h.respond(w, http.StatusOK, product, err)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil, h.service.DeleteProduct(r.Context(), id))
}

package numbering

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/erp-lite/internal/platform/httpx"
)

// Handler exposes number allocation over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers numbering routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/numbers/{type}", func(r chi.Router) {
		r.Post("/next", h.next)
		r.Get("/preview", h.preview)
	})
}

type numberResponse struct {
	Type   DocumentType `json:"type"`
	Number string       `json:"number"`
}

func (h *Handler) next(w http.ResponseWriter, r *http.Request) {
	t, err := ParseDocumentType(chi.URLParam(r, "type"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	number, err := h.service.NextNumber(r.Context(), t, h.now())
	if err != nil {
		httpx.RespondErrorLogged(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, numberResponse{Type: t, Number: number})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	t, err := ParseDocumentType(chi.URLParam(r, "type"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	number, err := h.service.Preview(r.Context(), t, h.now())
	if err != nil {
		httpx.RespondErrorLogged(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, numberResponse{Type: t, Number: number})
}

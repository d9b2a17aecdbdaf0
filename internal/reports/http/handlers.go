// Package reporthttp serves reports as JSON or as downloadable files.
package reporthttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/erp-lite/internal/platform/httpx"
	"github.com/odyssey-erp/erp-lite/internal/reports"
	"github.com/odyssey-erp/erp-lite/internal/reports/export"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

const requestTimeout = 10 * time.Second

// ReportService is the report contract used by the handler.
type ReportService interface {
	ClientStatement(ctx context.Context, req reports.StatementRequest) (reports.ClientStatement, error)
	StatementForPeriod(ctx context.Context, clientID int64, period shared.StatementPeriod, custom reports.Range) (reports.ClientStatement, error)
	MonthlySales(ctx context.Context, rng reports.Range) ([]reports.MonthlySalesRow, error)
	Aging(ctx context.Context, asOf time.Time) (reports.AgingReport, error)
	ProductAvailability(ctx context.Context, filter reports.AvailabilityFilter) ([]reports.AvailabilityRow, error)
}

// Handler serves the report endpoints.
type Handler struct {
	logger  *slog.Logger
	service ReportService
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service ReportService) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/clients/{id}/statement", h.statement)
		r.Get("/monthly-sales", h.monthlySales)
		r.Get("/aging", h.aging)
		r.Get("/availability", h.availability)
	})
}

type format string

const (
	formatJSON format = "json"
	formatCSV  format = "csv"
	formatXLSX format = "xlsx"
	formatPDF  format = "pdf"
)

var contentTypes = map[format]string{
	formatCSV:  "text/csv; charset=utf-8",
	formatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	formatPDF:  "application/pdf",
}

func parseFormat(r *http.Request, allowed ...format) (format, error) {
	raw := format(r.URL.Query().Get("format"))
	if raw == "" {
		return formatJSON, nil
	}
	if raw == formatJSON {
		return raw, nil
	}
	for _, f := range allowed {
		if raw == f {
			return raw, nil
		}
	}
	return "", shared.ValidationErrors{"format": fmt.Sprintf("%q is not available for this report", raw)}
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := shared.ParseDate(raw)
	if err != nil {
		return nil, shared.ValidationErrors{name: "must use YYYY-MM-DD"}
	}
	return &t, nil
}

func queryRange(r *http.Request) (reports.Range, error) {
	start, err := queryDate(r, "start")
	if err != nil {
		return reports.Range{}, err
	}
	end, err := queryDate(r, "end")
	if err != nil {
		return reports.Range{}, err
	}
	return reports.Range{Start: start, End: end}, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	httpx.RespondErrorLogged(w, h.logger, err)
}

// send renders v as JSON or writes the file produced by render.
func (h *Handler) send(w http.ResponseWriter, f format, filename string, v any, render func(io.Writer) error) {
	if f == formatJSON {
		httpx.JSON(w, http.StatusOK, v)
		return
	}
	buf := &bytes.Buffer{}
	if err := render(buf); err != nil {
		h.fail(w, fmt.Errorf("render %s: %w", f, err))
		return
	}
	w.Header().Set("Content-Type", contentTypes[f])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+"."+string(f)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	clientID, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	f, err := parseFormat(r, formatCSV, formatXLSX, formatPDF)
	if err != nil {
		h.fail(w, err)
		return
	}
	rng, err := queryRange(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	var st reports.ClientStatement
	if period := r.URL.Query().Get("period"); period != "" {
		st, err = h.service.StatementForPeriod(ctx, clientID, shared.StatementPeriod(period), rng)
	} else {
		st, err = h.service.ClientStatement(ctx, reports.StatementRequest{ClientID: clientID, Start: rng.Start, End: rng.End})
	}
	if err != nil {
		h.fail(w, err)
		return
	}

	filename := fmt.Sprintf("statement-%d", clientID)
	h.send(w, f, filename, st, func(out io.Writer) error {
		switch f {
		case formatCSV:
			return export.WriteStatementCSV(out, st)
		case formatXLSX:
			return export.WriteStatementXLSX(out, st)
		default:
			return export.WriteStatementPDF(out, st)
		}
	})
}

func (h *Handler) monthlySales(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	f, err := parseFormat(r, formatCSV, formatXLSX)
	if err != nil {
		h.fail(w, err)
		return
	}
	rng, err := queryRange(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.service.MonthlySales(ctx, rng)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.send(w, f, "monthly-sales", rows, func(out io.Writer) error {
		if f == formatCSV {
			return export.WriteMonthlySalesCSV(out, rows)
		}
		return export.WriteMonthlySalesXLSX(out, rows)
	})
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	f, err := parseFormat(r, formatCSV, formatXLSX)
	if err != nil {
		h.fail(w, err)
		return
	}
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		h.fail(w, err)
		return
	}
	var when time.Time
	if asOf != nil {
		when = *asOf
	}
	report, err := h.service.Aging(ctx, when)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.send(w, f, "aging-"+report.AsOf.Format(shared.DateLayout), report, func(out io.Writer) error {
		if f == formatCSV {
			return export.WriteAgingCSV(out, report)
		}
		return export.WriteAgingXLSX(out, report)
	})
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	f, err := parseFormat(r, formatCSV, formatXLSX)
	if err != nil {
		h.fail(w, err)
		return
	}
	productID, err := httpx.QueryID(r, "product_id")
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.service.ProductAvailability(ctx, reports.AvailabilityFilter{ProductID: productID, Category: r.URL.Query().Get("category")})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.send(w, f, "availability", rows, func(out io.Writer) error {
		if f == formatCSV {
			return export.WriteAvailabilityCSV(out, rows)
		}
		return export.WriteAvailabilityXLSX(out, rows)
	})
}

package reports

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// DefaultSalesMonths is the window of the monthly sales report when no range is given.
const DefaultSalesMonths = 6

// Service computes reports, caching the expensive ones.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a Repository with an optional Cache.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// WithClock overrides the wall clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ClientStatement lists a client's invoices and receipts within the requested range.
func (s *Service) ClientStatement(ctx context.Context, req StatementRequest) (ClientStatement, error) {
	period := Range{Start: req.Start, End: req.End}.dates()
	if err := period.Validate(); err != nil {
		return ClientStatement{}, err
	}
	client, err := s.repo.GetClient(ctx, req.ClientID)
	if err != nil {
		return ClientStatement{}, shared.Internal(err)
	}

	st := ClientStatement{Client: client, Start: req.Start, End: req.End}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st.Invoices, err = s.repo.StatementInvoices(gctx, req.ClientID, period)
		return err
	})
	g.Go(func() error {
		var err error
		st.Receipts, err = s.repo.StatementReceipts(gctx, req.ClientID, period)
		return err
	})
	if err := g.Wait(); err != nil {
		return ClientStatement{}, shared.Internal(err)
	}
	if st.Invoices == nil {
		st.Invoices = []StatementInvoice{}
	}
	if st.Receipts == nil {
		st.Receipts = []StatementReceipt{}
	}
	st.total()
	return st, nil
}

// StatementForPeriod resolves a named period relative to today and builds the statement.
func (s *Service) StatementForPeriod(ctx context.Context, clientID int64, period shared.StatementPeriod, custom Range) (ClientStatement, error) {
	resolved, err := shared.ResolvePeriod(period, s.now(), custom.dates())
	if err != nil {
		return ClientStatement{}, err
	}
	req := StatementRequest{ClientID: clientID}
	if !resolved.Start.IsZero() {
		req.Start = &resolved.Start
	}
	if !resolved.End.IsZero() {
		req.End = &resolved.End
	}
	return s.ClientStatement(ctx, req)
}

// MonthlySales summarises invoices per calendar month. Without bounds it covers the
// DefaultSalesMonths months ending today.
func (s *Service) MonthlySales(ctx context.Context, rng Range) ([]MonthlySalesRow, error) {
	if rng.Start == nil && rng.End == nil {
		today := shared.Day(s.now())
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(DefaultSalesMonths - 1), 0)
		rng = Range{Start: &start, End: &today}
	}
	period := rng.dates()
	if err := period.Validate(); err != nil {
		return nil, err
	}
	return cached(ctx, s, "monthly_sales", []string{dateToken(period.Start), dateToken(period.End)},
		func(ctx context.Context) ([]MonthlySalesRow, error) {
			facts, err := s.repo.SaleFacts(ctx, period)
			if err != nil {
				return nil, err
			}
			return summariseMonths(facts), nil
		})
}

// Aging bands outstanding receivables by days past due. A zero asOf means today.
func (s *Service) Aging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = shared.Day(asOf)
	return cached(ctx, s, "aging", []string{dateToken(asOf)}, func(ctx context.Context) (AgingReport, error) {
		open, err := s.repo.OpenInvoices(ctx)
		if err != nil {
			return AgingReport{}, err
		}
		return buildAging(open, asOf), nil
	})
}

// ProductAvailability lists stock positions, lowest stock first.
func (s *Service) ProductAvailability(ctx context.Context, filter AvailabilityFilter) ([]AvailabilityRow, error) {
	product := "-"
	if filter.ProductID != nil {
		product = strconv.FormatInt(*filter.ProductID, 10)
	}
	return cached(ctx, s, "availability", []string{product, filter.Category}, func(ctx context.Context) ([]AvailabilityRow, error) {
		rows, err := s.repo.Availability(ctx, filter)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].StockStatus = ClassifyStock(rows[i].CurrentStock, rows[i].ReorderLevel)
		}
		if rows == nil {
			rows = []AvailabilityRow{}
		}
		return rows, nil
	})
}

// Bump invalidates cached reports.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

type loadFailure struct{ err error }

func (l *loadFailure) Error() string { return l.err.Error() }
func (l *loadFailure) Unwrap() error { return l.err }

// cached serves kind from the cache, falling back to load when Redis misbehaves.
func cached[T any](ctx context.Context, s *Service, kind string, params []string, load func(context.Context) (T, error)) (T, error) {
	if s.cache == nil {
		v, err := load(ctx)
		return v, shared.Internal(err)
	}
	key, err := s.cache.BuildKey(ctx, kind, params...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.String("report", kind), slog.Any("error", err))
		v, err := load(ctx)
		return v, shared.Internal(err)
	}
	var out T
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, &loadFailure{err: err}
		}
		return v, nil
	})
	var failed *loadFailure
	if errors.As(err, &failed) {
		var zero T
		return zero, shared.Internal(failed.err)
	}
	if err != nil {
		s.logger.Warn("report cache failed", slog.String("report", kind), slog.String("key", key), slog.Any("error", err))
		v, err := load(ctx)
		return v, shared.Internal(err)
	}
	return out, nil
}

func dateToken(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(shared.DateLayout)
}

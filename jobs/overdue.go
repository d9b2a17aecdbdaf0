package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/erp-lite/internal/jobs"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// OverdueMarker is the billing operation the sweep runs.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// MarkOverdueJob flags unpaid invoices past their due date and refreshes cached reports.
type MarkOverdueJob struct {
	Billing OverdueMarker
	Cache   shared.Invalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewMarkOverdueJob wires dependencies for the overdue handler.
func NewMarkOverdueJob(billing OverdueMarker, cache shared.Invalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *MarkOverdueJob {
	return &MarkOverdueJob{Billing: billing, Cache: cache, Logger: logger, Metrics: metrics, clock: func() time.Time { return time.Now().UTC() }}
}

// Handle processes TaskMarkOverdue tasks.
func (j *MarkOverdueJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Billing == nil {
		return errors.New("mark overdue: handler not configured")
	}
	var payload AsOfPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("mark overdue: %v: %w", err, asynq.SkipRetry)
	}
	asOf, err := payload.date(j.clock())
	if err != nil {
		return fmt.Errorf("mark overdue: %v: %w", err, asynq.SkipRetry)
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskMarkOverdue)
	defer func() { err = tracker.End(err) }()

	logger := loggerOrDefault(j.Logger).With(slog.String("task", TaskMarkOverdue), slog.String("as_of", asOf.Format(shared.DateLayout)))
	count, err := j.Billing.MarkOverdue(ctx, asOf)
	if err != nil {
		logger.Error("overdue sweep failed", slog.Any("error", err))
		return err
	}
	if count > 0 {
		shared.BumpQuietly(ctx, j.Cache, logger)
	}
	logger.Info("overdue sweep finished", slog.Int("marked", count))
	return nil
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m == nil {
		return defaultJobMetrics
	}
	return m
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

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
	"github.com/odyssey-erp/erp-lite/internal/reports"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// AgingReporter computes the aging report through the cache.
type AgingReporter interface {
	Aging(ctx context.Context, asOf time.Time) (reports.AgingReport, error)
}

// WarmAgingJob computes the aging report so the first reader hits a warm cache.
type WarmAgingJob struct {
	Reports AgingReporter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewWarmAgingJob wires dependencies for the warm-up handler.
func NewWarmAgingJob(reporter AgingReporter, logger *slog.Logger, metrics *jobmetrics.Metrics) *WarmAgingJob {
	return &WarmAgingJob{Reports: reporter, Logger: logger, Metrics: metrics, clock: func() time.Time { return time.Now().UTC() }}
}

// Handle processes TaskWarmAging tasks.
func (j *WarmAgingJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("warm aging: handler not configured")
	}
	var payload AsOfPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("warm aging: %v: %w", err, asynq.SkipRetry)
	}
	asOf, err := payload.date(j.clock())
	if err != nil {
		return fmt.Errorf("warm aging: %v: %w", err, asynq.SkipRetry)
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskWarmAging)
	defer func() { err = tracker.End(err) }()

	report, err := j.Reports.Aging(ctx, asOf)
	if err != nil {
		loggerOrDefault(j.Logger).Error("aging warm-up failed", slog.Any("error", err))
		return err
	}
	loggerOrDefault(j.Logger).Info("aging report warmed",
		slog.String("as_of", asOf.Format(shared.DateLayout)),
		slog.Int("clients", len(report.Rows)),
		slog.String("outstanding", report.Totals.Total.StringFixed(2)))
	return nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/erp-lite/internal/app"
	"github.com/odyssey-erp/erp-lite/internal/billing"
	"github.com/odyssey-erp/erp-lite/internal/inventory"
	"github.com/odyssey-erp/erp-lite/internal/masterdata"
	"github.com/odyssey-erp/erp-lite/internal/numbering"
	"github.com/odyssey-erp/erp-lite/internal/observability"
	"github.com/odyssey-erp/erp-lite/internal/platform/cache"
	"github.com/odyssey-erp/erp-lite/internal/platform/db"
	"github.com/odyssey-erp/erp-lite/internal/procurement"
	reporthttp "github.com/odyssey-erp/erp-lite/internal/reports/http"
	"github.com/odyssey-erp/erp-lite/internal/sales"
	"github.com/odyssey-erp/erp-lite/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	services := app.NewServices(cfg, logger, dbpool, redisClient, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		DB:                 dbpool,
		MasterDataHandler:  masterdata.NewHandler(logger, services.MasterData),
		InventoryHandler:   inventory.NewHandler(logger, services.Inventory),
		SalesHandler:       sales.NewHandler(logger, services.Sales),
		ProcurementHandler: procurement.NewHandler(logger, services.Procurement),
		BillingHandler:     billing.NewHandler(logger, services.Billing),
		NumberingHandler:   numbering.NewHandler(logger, services.Numbering),
		ReportHandler:      reporthttp.NewHandler(logger, services.Reports),
		JobHandler:         jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

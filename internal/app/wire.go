package app

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/erp-lite/internal/billing"
	"github.com/odyssey-erp/erp-lite/internal/inventory"
	"github.com/odyssey-erp/erp-lite/internal/masterdata"
	"github.com/odyssey-erp/erp-lite/internal/numbering"
	"github.com/odyssey-erp/erp-lite/internal/observability"
	"github.com/odyssey-erp/erp-lite/internal/platform/db"
	"github.com/odyssey-erp/erp-lite/internal/procurement"
	"github.com/odyssey-erp/erp-lite/internal/reports"
	"github.com/odyssey-erp/erp-lite/internal/sales"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// Services holds the domain services shared by the API, the worker and the CLI.
type Services struct {
	Runner      *db.Runner
	ReportCache *reports.Cache
	Numbering   *numbering.Service
	Inventory   *inventory.Service
	MasterData  *masterdata.Service
	Sales       *sales.Service
	Procurement *procurement.Service
	Billing     *billing.Service
	Reports     *reports.Service
}

// NewServices wires repositories and services over one pool. A nil redis client
// disables the report cache; metrics may be nil.
func NewServices(cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics) *Services {
	opts := db.RunnerOptions{Logger: logger}
	if metrics != nil {
		opts.OnRetry = metrics.ObserveTxRetry
	}
	var cacheTTL time.Duration
	inventoryCfg := inventory.ServiceConfig{AllowNegativeStock: true}
	billingCfg := billing.ServiceConfig{DefaultTermsDays: 30}
	if cfg != nil {
		opts.MaxRetries = cfg.TxMaxRetries
		cacheTTL = cfg.ReportCacheTTL
		inventoryCfg.AllowNegativeStock = cfg.InventoryAllowNegativeStock
		billingCfg.AllowOverpayment = cfg.BillingAllowOverpayment
		billingCfg.DefaultTermsDays = cfg.DefaultPaymentTermsDays
	}
	runner := db.NewRunner(pool, opts)

	var (
		reportCache *reports.Cache
		invalidator shared.Invalidator
	)
	if redisClient != nil {
		reportCache = reports.NewCache(redisClient, cacheTTL).WithLogger(logger)
		invalidator = reportCache
	}

	ledger := inventory.NewService(inventory.NewRepository(runner), inventoryCfg, invalidator, logger)
	return &Services{
		Runner:      runner,
		ReportCache: reportCache,
		Numbering:   numbering.NewService(numbering.NewRepository(runner), logger),
		Inventory:   ledger,
		MasterData:  masterdata.NewService(masterdata.NewRepository(runner), ledger, invalidator, logger),
		Sales:       sales.NewService(sales.NewRepository(runner), ledger, invalidator, logger),
		Procurement: procurement.NewService(procurement.NewRepository(runner), ledger, invalidator, logger),
		Billing:     billing.NewService(billing.NewRepository(runner), billingCfg, invalidator, logger),
		Reports:     reports.NewService(reports.NewRepository(pool), reportCache, logger),
	}
}

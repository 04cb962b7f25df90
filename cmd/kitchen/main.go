package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/kitchen/cmd/kitchen/cli"
	"github.com/odyssey-erp/kitchen/internal/app"
	"github.com/odyssey-erp/kitchen/internal/inventory"
	"github.com/odyssey-erp/kitchen/internal/kitchenperm"
	"github.com/odyssey-erp/kitchen/internal/observability"
	"github.com/odyssey-erp/kitchen/internal/platform/cache"
	"github.com/odyssey-erp/kitchen/internal/platform/db"
	"github.com/odyssey-erp/kitchen/internal/platform/lock"
	"github.com/odyssey-erp/kitchen/internal/procurement"
	"github.com/odyssey-erp/kitchen/internal/rbac"
	"github.com/odyssey-erp/kitchen/internal/shared"
	"github.com/odyssey-erp/kitchen/internal/suppliers"
	"github.com/odyssey-erp/kitchen/jobs"
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
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCLI(ctx, redisOpts, cfg, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGConnLife})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	metrics := observability.NewMetrics()
	procurementMetrics := observability.NewProcurementMetrics(metrics.Registerer())

	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, logger)

	permissionRepo := kitchenperm.NewRepository(dbpool)
	registry := kitchenperm.NewRegistry(permissionRepo, auditLogger, logger)

	supplierDirectory := suppliers.NewDirectory(suppliers.NewRepository(dbpool), redisClient, cfg.SupplierCacheTTL, logger)
	orderLocker := lock.New(redisClient, lock.Options{TTL: cfg.ProcurementOrderLockTTL, Retries: 20})

	procurementService := procurement.NewService(procurement.Dependencies{
		Repo:        procurement.NewRepository(dbpool),
		Inventory:   inventoryService,
		Registry:    registry,
		Suppliers:   supplierDirectory,
		Approvals:   approvalRecorder,
		Audit:       auditLogger,
		Idempotency: idempotencyStore,
		Locker:      orderLocker,
		Events:      jobClient,
		Metrics:     procurementMetrics,
		Logger:      logger,
	}, procurement.ServiceConfig{
		TxRetries:    cfg.ProcurementTxRetries,
		RetryBackoff: 25 * time.Millisecond,
	})

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     rbac.Middleware{Logger: logger},
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		PermissionsHandler: kitchenperm.NewHandler(logger, registry),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		Health:             dbpool,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

func runJobsCLI(ctx context.Context, redisOpts asynq.RedisClientOpt, cfg *app.Config, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(redisOpts, cfg.IdempotencyRetention)
	if err != nil {
		return err
	}
	defer jobsCLI.Close() //nolint:errcheck
	return jobsCLI.Run(ctx, args, os.Stdout)
}

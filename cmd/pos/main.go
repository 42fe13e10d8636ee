package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gbalekage/MY-POS-sub000/internal/app"
	"github.com/gbalekage/MY-POS-sub000/internal/closeday"
	"github.com/gbalekage/MY-POS-sub000/internal/customers"
	"github.com/gbalekage/MY-POS-sub000/internal/expenses"
	"github.com/gbalekage/MY-POS-sub000/internal/orders"
	"github.com/gbalekage/MY-POS-sub000/internal/platform/cache"
	"github.com/gbalekage/MY-POS-sub000/internal/platform/db"
	"github.com/gbalekage/MY-POS-sub000/internal/settlement"
	"github.com/gbalekage/MY-POS-sub000/internal/shared"
	"github.com/gbalekage/MY-POS-sub000/internal/stock"
	"github.com/gbalekage/MY-POS-sub000/internal/tables"
	"github.com/gbalekage/MY-POS-sub000/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	printGateway, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init print queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := printGateway.Close(); err != nil {
			logger.Warn("print queue close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	stockRepo := stock.NewRepository(pool)
	tableRepo := tables.NewRepository(pool)
	customerRepo := customers.NewRepository(pool)

	orderRepo := orders.NewSQLRepository(pool, stockRepo, tableRepo)
	orderService := orders.NewService(orderRepo, printGateway, auditLogger, logger)
	orderHandler := orders.NewHandler(orderService)

	settlementRepo := settlement.NewSQLRepository(pool, orderRepo, tableRepo)
	settlementService := settlement.NewService(settlementRepo, customerRepo, printGateway, auditLogger, logger)
	settlementHandler := settlement.NewHandler(settlementService)

	expenseRepo := expenses.NewRepository(pool)
	expenseService := expenses.NewService(expenseRepo)
	expenseHandler := expenses.NewHandler(expenseService)

	closeRepo := closeday.NewSQLRepository(pool, tableRepo)
	closeCache := closeday.NewRedisCache(redisClient, logger)
	closeService := closeday.NewService(closeRepo, closeCache, printGateway, auditLogger, logger)
	closeHandler := closeday.NewHandler(closeService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		OrdersHandler:     orderHandler,
		SettlementHandler: settlementHandler,
		ExpensesHandler:   expenseHandler,
		CloseDayHandler:   closeHandler,
		StockHandler:      stock.NewHandler(stockRepo),
		TablesHandler:     tables.NewHandler(tableRepo),
		CustomersHandler:  customers.NewHandler(customerRepo),
		JobHandler:        jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
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

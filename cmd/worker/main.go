package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/gbalekage/MY-POS-sub000/internal/app"
	"github.com/gbalekage/MY-POS-sub000/internal/printing"
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

	spooler := printing.NewClient(cfg.PrinterURL)
	if err := spooler.Ping(ctx); err != nil {
		logger.Warn("print spooler ping", slog.Any("error", err))
	}
	printHandlers := jobs.NewPrintHandlers(spooler, printing.NewRenderer(), logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  printHandlers.Handlers(),
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting print worker", slog.String("redis", cfg.RedisAddr), slog.String("spooler", cfg.PrinterURL))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

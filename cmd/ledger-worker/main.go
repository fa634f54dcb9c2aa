package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finance/internal/cli"
	"finance/internal/log"
	"finance/internal/notify"
	"finance/internal/worker"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)

	logger.Info("Starting ledger-worker")

	app, err := cli.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)
	ctx := log.WithLogger(shutdownCtx, logger)

	audits := worker.NewAuditWorker(app.Auditor, cfg.AuditSchedule, cfg.AuditRepair)

	// Catch drift left by a previous crash before the first scheduled run.
	if _, err := audits.RunOnce(ctx); err != nil {
		logger.Error("Startup audit failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return audits.Start(gctx)
	})

	if app.AMQP != nil {
		// Drop the worker's cached views first so the budget check reads
		// what the other process just wrote.
		handler := notify.RemoteHandler(notify.Chain{
			notify.NewCacheSink(app.Views),
			app.Service.BudgetAlertSink(),
		})
		g.Go(func() error {
			err := app.AMQP.ConsumeStaleViews(gctx, handler)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled - budget alerts are not checked")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
	}

	stats := app.Dispatcher.Stats()
	logger.Info("Shutting down",
		"audits", audits.Runs(),
		"notifications_sent", stats.Sent,
		"notifications_dropped", stats.Dropped)
	if last, ok := audits.LastReport(); ok {
		logger.Info("Last audit",
			"owners", last.Owners,
			"accounts", last.Accounts,
			"inconsistent", len(last.Inconsistent),
			"repaired", len(last.Repaired))
	}

	if err := app.Close(); err != nil {
		logger.Error("Error closing ledger", log.FieldError, err)
	}

	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
	}
	logger.Info("Ledger worker stopped")
}

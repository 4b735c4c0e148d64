package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/cli"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
	"bilancio/internal/notify"
	"bilancio/internal/services"
)

func main() {
	logger := cli.Setup(log.ComponentWorker)

	logger.Info("Starting bilancio-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.OpenStore(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Outcome notifications go through AMQP when configured; without a
	// broker the processor still runs and only logs outcomes.
	var notifier ledger.Notifier
	if cfg.AMQPURL != "" {
		client, err := notify.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without notifications", log.FieldError, err)
		} else {
			defer client.Close()
			notifier = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, expense outcomes will only be logged")
	}

	processor := services.NewRecurringProcessor(repo, notifier)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Recurring expense processor configured",
		"interval", cfg.ProcessorInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		// Run once on startup, then on every tick.
		runOnce(ctx, processor, time.Now())

		ticker := time.NewTicker(cfg.ProcessorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now := <-ticker.C:
				runOnce(ctx, processor, now)
			}
		}
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Bilancio-worker shutdown complete")
}

func runOnce(ctx context.Context, processor *services.RecurringProcessor, now time.Time) {
	logger := log.New(log.Config{Component: log.ComponentProcessor})
	report, err := processor.Run(ctx, now)
	if err != nil {
		logger.ErrorContext(ctx, "Processing run failed", log.FieldError, err, log.FieldRunID, report.RunID)
		return
	}
	logger.InfoContext(ctx, "Processing run complete",
		log.FieldRunID, report.RunID,
		"candidates", report.Candidates,
		"materialized", report.Materialized,
		"deferred", report.Deferred,
		"skipped", report.Skipped,
		"failed", report.Failed)
}

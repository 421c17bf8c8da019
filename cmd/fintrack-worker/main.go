package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/budget"
	"fintrack/internal/cli"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting fintrack-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	be := cli.InitBackend(context.Background(), logger, cfg)

	store := ledger.NewStore(be.Persister)
	evaluator := budget.NewEvaluator(budget.Thresholds{
		Watch:    cfg.BudgetWatchPercent,
		Critical: cfg.BudgetCriticalPercent,
	})
	alerts := services.NewAlertProcessor(store, evaluator, cfg.UpcomingWindowDays)
	events := services.NewEventProcessor(store, alerts)

	wcfg := worker.Config{
		Schedule: cfg.AlertSchedule,
		Sweeper:  alerts,
		Handler:  events,
	}
	// A nil *amqp.Client must not become a non-nil interface.
	if be.Events != nil {
		wcfg.Source = be.Events
	}
	w, err := worker.New(wcfg)
	if err != nil {
		logger.Error("Failed to create worker", applog.FieldError, err)
		_ = be.Cleanup()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		handled, skipped := events.Stats()
		sweeps, raised := w.Stats()
		logger.Info("Worker stopping",
			"events_handled", handled,
			"events_skipped", skipped,
			"sweeps", sweeps,
			"alerts", raised)
	})

	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		_ = be.Cleanup()
		os.Exit(1)
	}
	<-done
	if err := be.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", applog.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}

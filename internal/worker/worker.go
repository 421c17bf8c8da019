// Package worker runs the background side of fintrack: alert sweeps on a
// cron schedule and ledger event consumption from the broker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	applog "fintrack/internal/log"
)

type (
	// Sweeper raises alerts for every owner.
	Sweeper interface {
		ProcessAll(ctx context.Context, now time.Time) (int, error)
	}

	// EventHandler reacts to a single ledger event.
	EventHandler interface {
		Handle(ctx context.Context, ev *amqp.LedgerEvent) error
	}

	// EventSource delivers ledger events until ctx ends.
	EventSource interface {
		Consume(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
	}
)

type Config struct {
	Schedule string
	Sweeper  Sweeper
	Handler  EventHandler
	// Source may be nil; the worker then only sweeps on schedule.
	Source EventSource
}

// Worker handles scheduled alert sweeps and ledger events.
type Worker struct {
	sweeper  Sweeper
	handler  EventHandler
	source   EventSource
	schedule cron.Schedule
	expr     string
	now      func() time.Time

	sweeps atomic.Int64
	alerts atomic.Int64
}

func New(cfg Config) (*Worker, error) {
	if cfg.Sweeper == nil {
		return nil, errors.New("worker: sweeper is required")
	}
	if cfg.Source != nil && cfg.Handler == nil {
		return nil, errors.New("worker: event source without handler")
	}
	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("worker: invalid schedule %q: %w", cfg.Schedule, err)
	}
	return &Worker{
		sweeper:  cfg.Sweeper,
		handler:  cfg.Handler,
		source:   cfg.Source,
		schedule: schedule,
		expr:     cfg.Schedule,
		now:      time.Now,
	}, nil
}

// Sweep runs one alert sweep over every owner.
func (w *Worker) Sweep(ctx context.Context) error {
	start := w.now()
	n, err := w.sweeper.ProcessAll(ctx, start)
	w.sweeps.Add(1)
	if err != nil {
		slog.ErrorContext(ctx, "Alert sweep failed",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldError, err)
		return err
	}
	w.alerts.Add(int64(n))
	slog.InfoContext(ctx, "Alert sweep finished",
		applog.FieldComponent, applog.ComponentWorker,
		"alerts", n,
		applog.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Run performs a startup sweep to catch up on anything that became due while
// the worker was down, then sweeps on schedule and consumes events until ctx
// ends. A consumer failure other than cancellation stops the worker.
func (w *Worker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Performing startup alert sweep",
		applog.FieldComponent, applog.ComponentWorker)
	_ = w.Sweep(ctx)

	scheduler := cron.New()
	scheduler.Schedule(w.schedule, cron.FuncJob(func() { _ = w.Sweep(ctx) }))
	scheduler.Start()
	slog.InfoContext(ctx, "Alert sweep scheduled",
		applog.FieldComponent, applog.ComponentWorker,
		"schedule", w.expr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})
	if w.source != nil {
		g.Go(func() error {
			err := w.source.Consume(gctx, w.handler.Handle)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume ledger events: %w", err)
			}
			return nil
		})
	} else {
		slog.InfoContext(ctx, "Skipping ledger event consumption - no AMQP broker available",
			applog.FieldComponent, applog.ComponentWorker)
	}
	return g.Wait()
}

// Stats returns how many sweeps ran and how many alerts they raised.
func (w *Worker) Stats() (sweeps, alerts int64) {
	return w.sweeps.Load(), w.alerts.Load()
}

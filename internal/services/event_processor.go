package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
)

// EventProcessor reacts to ledger events consumed by the worker: it drops the
// worker's cached copy of the owner and sweeps that owner for alerts.
type EventProcessor struct {
	store  *ledger.Store
	alerts *AlertProcessor
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]int64

	handled atomic.Int64
	skipped atomic.Int64
}

func NewEventProcessor(store *ledger.Store, alerts *AlertProcessor) *EventProcessor {
	return &EventProcessor{store: store, alerts: alerts, now: time.Now, seen: make(map[string]int64)}
}

// Handle is the consumer callback. Only the returned error decides whether
// the delivery is requeued.
func (p *EventProcessor) Handle(ctx context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	last := p.seen[ev.OwnerID]
	p.mu.Unlock()
	if ev.Version <= last {
		// A later event of this owner was processed already.
		p.skipped.Add(1)
		slog.DebugContext(ctx, "Ledger event already applied",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldOwnerID, ev.OwnerID,
			applog.FieldVersion, ev.Version)
		return nil
	}

	p.store.Invalidate(ev.OwnerID)
	alerts, err := p.alerts.ProcessOwner(ctx, ev.OwnerID, p.now())
	if err != nil {
		return err
	}
	p.mu.Lock()
	if ev.Version > p.seen[ev.OwnerID] {
		p.seen[ev.OwnerID] = ev.Version
	}
	p.mu.Unlock()
	p.handled.Add(1)
	slog.InfoContext(ctx, "Ledger event processed",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldKind, ev.Kind,
		applog.FieldOwnerID, ev.OwnerID,
		applog.FieldVersion, ev.Version,
		"alerts", len(alerts))
	return nil
}

// Stats returns how many events were processed and how many were stale.
func (p *EventProcessor) Stats() (handled, skipped int64) {
	return p.handled.Load(), p.skipped.Load()
}

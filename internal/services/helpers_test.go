package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Events() []amqp.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]amqp.LedgerEvent(nil), p.events...)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newTestLedger(t *testing.T) (*LedgerService, *recordingPublisher, *ledger.Store) {
	t.Helper()
	store := ledger.NewStore(memory.New(), ledger.WithClock(func() time.Time { return fixedNow }))
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, pub)
	svc.now = func() time.Time { return fixedNow }
	return svc, pub, store
}

func seedWallet(t *testing.T, svc *LedgerService, owner string) core.Wallet {
	t.Helper()
	w, err := svc.AddWallet(context.Background(), owner, core.Wallet{
		ID: "W1", Name: "Cash", Type: core.Cash, InitialBalance: dec(1000),
	})
	if err != nil {
		t.Fatalf("add wallet: %v", err)
	}
	return w
}

func expense(desc, category string, amount int64, date core.Date) core.Transaction {
	return core.Transaction{
		Date:        date,
		Description: desc,
		Amount:      dec(amount),
		Type:        core.Expense,
		Category:    category,
		WalletID:    "W1",
	}
}

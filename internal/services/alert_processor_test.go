package services

import (
	"context"
	"testing"

	"fintrack/internal/budget"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

// seedAlerts gives owner one critical budget, one debt due in three days,
// one overdue bill and one paid debt.
func seedAlerts(t *testing.T, svc *LedgerService, owner string) {
	t.Helper()
	ctx := context.Background()
	seedWallet(t, svc, owner)
	steps := []func() error{
		func() error {
			_, err := svc.AddBudget(ctx, owner, core.Budget{Category: "Makanan", Limit: dec(100), Frequency: core.Monthly})
			return err
		},
		func() error {
			_, err := svc.CreateTransaction(ctx, owner, expense("Groceries", "Makanan", 90, core.NewDate(2024, 3, 10)))
			return err
		},
		func() error {
			_, err := svc.AddDebt(ctx, owner, core.Debt{Person: "Budi", Amount: dec(200), DueDate: core.NewDate(2024, 3, 18), Type: core.Payable})
			return err
		},
		func() error {
			_, err := svc.AddDebt(ctx, owner, core.Debt{Person: "PLN", Amount: dec(50), DueDate: core.NewDate(2024, 3, 1), Type: core.Bill})
			return err
		},
		func() error {
			_, err := svc.AddDebt(ctx, owner, core.Debt{Person: "Sari", Amount: dec(75), DueDate: core.NewDate(2024, 3, 2), Type: core.Receivable, IsPaid: true})
			return err
		},
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("seed step %d: %v", i, err)
		}
	}
}

func newTestAlerts(store *ledger.Store) *AlertProcessor {
	return NewAlertProcessor(store, budget.NewEvaluator(budget.DefaultThresholds()), 0)
}

func TestAlertProcessor_ProcessOwner(t *testing.T) {
	svc, _, store := newTestLedger(t)
	seedAlerts(t, svc, "u1")

	alerts, err := newTestAlerts(store).ProcessOwner(context.Background(), "u1", fixedNow)
	if err != nil {
		t.Fatalf("ProcessOwner() error = %v", err)
	}

	counts := map[AlertKind]int{}
	for _, a := range alerts {
		counts[a.Kind]++
		switch a.Kind {
		case AlertBudget:
			if a.Budget.Status != budget.Critical {
				t.Errorf("budget status = %s, want critical", a.Budget.Status)
			}
			if a.Budget.Percent != 90 {
				t.Errorf("budget percent = %v, want 90", a.Budget.Percent)
			}
		case AlertUpcoming:
			if a.Debt.Person != "Budi" || a.DaysToDue != 3 {
				t.Errorf("upcoming = %s in %d days", a.Debt.Person, a.DaysToDue)
			}
		case AlertOverdue:
			if a.Debt.Person != "PLN" || a.DaysToDue >= 0 {
				t.Errorf("overdue = %s, days %d", a.Debt.Person, a.DaysToDue)
			}
		}
	}
	want := map[AlertKind]int{AlertBudget: 1, AlertUpcoming: 1, AlertOverdue: 1}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("%s alerts = %d, want %d", k, counts[k], n)
		}
	}
}

func TestAlertProcessor_SafeBudgetNoAlert(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestLedger(t)
	seedWallet(t, svc, "u1")
	if _, err := svc.AddBudget(ctx, "u1", core.Budget{Category: "Hiburan", Limit: dec(1000), Frequency: core.Monthly}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateTransaction(ctx, "u1", expense("Cinema", "Hiburan", 50, core.NewDate(2024, 3, 5))); err != nil {
		t.Fatal(err)
	}

	alerts, err := newTestAlerts(store).ProcessOwner(ctx, "u1", fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 0 {
		t.Errorf("expected no alerts, got %d", len(alerts))
	}
}

func TestAlertProcessor_ProcessAll(t *testing.T) {
	svc, _, store := newTestLedger(t)
	seedAlerts(t, svc, "u1")
	seedWallet(t, svc, "u2")

	total, err := newTestAlerts(store).ProcessAll(context.Background(), fixedNow)
	if err != nil {
		t.Fatalf("ProcessAll() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total alerts = %d, want 3", total)
	}
}

func TestAlertProcessor_ProcessAllCancelled(t *testing.T) {
	svc, _, store := newTestLedger(t)
	seedWallet(t, svc, "u1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestAlerts(store).ProcessAll(ctx, fixedNow); err == nil {
		t.Error("expected context error")
	}
}

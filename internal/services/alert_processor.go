package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/budget"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/schedule"
)

type AlertKind string

const (
	AlertBudget   AlertKind = "budget"
	AlertUpcoming AlertKind = "upcoming"
	AlertOverdue  AlertKind = "overdue"
)

// Alert is one finding of a sweep: a budget past the watch threshold or an
// unpaid debt that is due soon or overdue.
type Alert struct {
	Kind      AlertKind
	OwnerID   string
	Budget    *budget.Evaluation
	Debt      *core.Debt
	DaysToDue int
}

// AlertProcessor evaluates budgets and debt schedules and logs what needs
// attention. It never mutates the ledger.
type AlertProcessor struct {
	store      *ledger.Store
	evaluator  *budget.Evaluator
	windowDays int
}

func NewAlertProcessor(store *ledger.Store, evaluator *budget.Evaluator, windowDays int) *AlertProcessor {
	if windowDays <= 0 {
		windowDays = schedule.DefaultWindowDays
	}
	return &AlertProcessor{store: store, evaluator: evaluator, windowDays: windowDays}
}

// ProcessOwner sweeps one owner as of now.
func (p *AlertProcessor) ProcessOwner(ctx context.Context, ownerID string, now time.Time) ([]Alert, error) {
	book, err := p.store.View(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", ownerID, err)
	}

	var alerts []Alert
	evals, err := p.evaluator.EvaluateAll(book.Budgets(), book.Transactions(), now)
	if err != nil {
		return nil, fmt.Errorf("evaluate budgets: %w", err)
	}
	for i := range evals {
		e := evals[i]
		if e.Status == budget.Safe {
			continue
		}
		alerts = append(alerts, Alert{Kind: AlertBudget, OwnerID: ownerID, Budget: &e})
		slog.WarnContext(ctx, "Budget threshold reached",
			applog.FieldComponent, applog.ComponentBudget,
			applog.FieldOwnerID, ownerID,
			applog.FieldBudgetID, e.Budget.ID,
			"category", e.Budget.Category,
			applog.FieldPercent, e.Percent,
			"status", e.Status)
	}

	today := core.DateOf(now)
	for _, d := range schedule.Upcoming(book.Debts(), today, p.windowDays) {
		d := d
		days := d.DueDate.DaysSince(today)
		alerts = append(alerts, Alert{Kind: AlertUpcoming, OwnerID: ownerID, Debt: &d, DaysToDue: days})
		slog.InfoContext(ctx, "Payment due soon",
			applog.FieldComponent, applog.ComponentSchedule,
			applog.FieldOwnerID, ownerID,
			"debt_id", d.ID,
			"type", d.Type,
			"due_date", d.DueDate.String(),
			"days", days)
	}
	for _, d := range schedule.Overdue(book.Debts(), today) {
		d := d
		days := d.DueDate.DaysSince(today)
		alerts = append(alerts, Alert{Kind: AlertOverdue, OwnerID: ownerID, Debt: &d, DaysToDue: days})
		slog.WarnContext(ctx, "Payment overdue",
			applog.FieldComponent, applog.ComponentSchedule,
			applog.FieldOwnerID, ownerID,
			"debt_id", d.ID,
			"type", d.Type,
			"due_date", d.DueDate.String())
	}
	return alerts, nil
}

// ProcessAll sweeps every owner and returns the number of alerts raised. An
// owner that fails is logged and skipped.
func (p *AlertProcessor) ProcessAll(ctx context.Context, now time.Time) (int, error) {
	owners, err := p.store.Owners(ctx)
	if err != nil {
		return 0, fmt.Errorf("list owners: %w", err)
	}

	total := 0
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		// Another process may have written since the last sweep.
		p.store.Invalidate(owner)
		alerts, err := p.ProcessOwner(ctx, owner, now)
		if err != nil {
			slog.ErrorContext(ctx, "Alert sweep failed",
				applog.FieldComponent, applog.ComponentWorker,
				applog.FieldOwnerID, owner,
				applog.FieldError, err)
			continue
		}
		total += len(alerts)
	}

	slog.InfoContext(ctx, "Alert sweep complete",
		applog.FieldComponent, applog.ComponentWorker,
		"owners", len(owners),
		"alerts", total,
		"date", now.Format("2006-01-02"))
	return total, nil
}

// Package schedule surfaces outstanding debts, receivables and bills by due date.
package schedule

import (
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// DefaultWindowDays is the look-ahead of the upcoming view.
const DefaultWindowDays = 7

// Upcoming returns unpaid items due in [today, today+windowDays], earliest
// first. Dates compare by calendar day, ignoring any time of day.
func Upcoming(debts []core.Debt, today core.Date, windowDays int) []core.Debt {
	return dueBetween(debts, today, today.AddDays(windowDays), func(d core.Debt) bool {
		return !d.IsPaid
	})
}

// UpcomingReceivables is Upcoming restricted to receivables with money still owed.
func UpcomingReceivables(debts []core.Debt, today core.Date, windowDays int) []core.Debt {
	return dueBetween(debts, today, today.AddDays(windowDays), func(d core.Debt) bool {
		return !d.IsPaid && d.Type == core.Receivable && d.Remaining.IsPositive()
	})
}

// Overdue returns unpaid items whose due date is before today, oldest first.
func Overdue(debts []core.Debt, today core.Date) []core.Debt {
	var out []core.Debt
	today = today.Midnight()
	for _, d := range debts {
		if !d.IsPaid && d.DueDate.Midnight().Before(today.Time) {
			out = append(out, d)
		}
	}
	sortByDue(out)
	return out
}

// Outstanding totals what is still unpaid per debt type.
func Outstanding(debts []core.Debt) map[core.DebtType]decimal.Decimal {
	totals := map[core.DebtType]decimal.Decimal{
		core.Payable:    decimal.Zero,
		core.Receivable: decimal.Zero,
		core.Bill:       decimal.Zero,
	}
	for _, d := range debts {
		totals[d.Type] = totals[d.Type].Add(d.Outstanding())
	}
	return totals
}

// TogglePaid flips the paid flag of d.
func TogglePaid(d core.Debt) core.Debt {
	d.IsPaid = !d.IsPaid
	return d
}

func dueBetween(debts []core.Debt, from, to core.Date, keep func(core.Debt) bool) []core.Debt {
	from, to = from.Midnight(), to.Midnight()
	out := []core.Debt{}
	for _, d := range debts {
		if keep(d) && d.DueDate.Within(from, to) {
			out = append(out, d)
		}
	}
	sortByDue(out)
	return out
}

func sortByDue(debts []core.Debt) {
	sort.SliceStable(debts, func(i, j int) bool {
		return debts[i].DueDate.Before(debts[j].DueDate.Time)
	})
}

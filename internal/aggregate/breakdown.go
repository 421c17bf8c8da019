package aggregate

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// CategoryBreakdown sums EXPENSE amounts per category over [start, end],
// largest first. Equal totals are ordered by category name.
func CategoryBreakdown(txs []core.Transaction, start, end core.Date) []core.CategoryTotal {
	totals := make(map[string]decimal.Decimal)
	for _, t := range txs {
		if t.Type != core.Expense || !t.Date.Within(start, end) {
			continue
		}
		totals[t.Category] = totals[t.Category].Add(t.Amount)
	}

	out := make([]core.CategoryTotal, 0, len(totals))
	for name, total := range totals {
		out = append(out, core.CategoryTotal{Category: name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// TopCategories returns the first n entries of CategoryBreakdown.
func TopCategories(txs []core.Transaction, start, end core.Date, n int) []core.CategoryTotal {
	all := CategoryBreakdown(txs, start, end)
	if n >= 0 && n < len(all) {
		return all[:n]
	}
	return all
}

// Recent returns the n latest transactions. Same-day entries are ordered by
// insertion, most recently added first.
func Recent(txs []core.Transaction, n int) []core.Transaction {
	out := newestFirst(txs)
	if n >= 0 && n < len(out) {
		return out[:n]
	}
	return out
}

// Summarize totals income and expense over [start, end]. Transfers only
// count towards Count.
func Summarize(txs []core.Transaction, start, end core.Date) core.Summary {
	s := core.Summary{Income: decimal.Zero, Expense: decimal.Zero}
	for _, t := range txs {
		if !t.Date.Within(start, end) {
			continue
		}
		s.Count++
		switch t.Type {
		case core.Income:
			s.Income = s.Income.Add(t.Amount)
		case core.Expense:
			s.Expense = s.Expense.Add(t.Amount)
		}
	}
	s.Net = s.Income.Sub(s.Expense)
	return s
}

// Query selects transactions for listing and export. Zero values disable a
// criterion; Start and End bound the date inclusively.
type Query struct {
	Type     core.TransactionType
	Search   string
	WalletID string
	Start    core.Date
	End      core.Date
}

// Filter returns the transactions matching q, newest first. A wallet
// criterion matches either side of a transfer.
func Filter(txs []core.Transaction, q Query) []core.Transaction {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	start, end := q.Start.Midnight(), q.End.Midnight()
	matched := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if q.Type != "" && t.Type != q.Type {
			continue
		}
		if q.WalletID != "" && t.WalletID != q.WalletID && t.ToWalletID != q.WalletID {
			continue
		}
		day := t.Date.Midnight()
		if !start.IsZero() && day.Before(start.Time) {
			continue
		}
		if !end.IsZero() && day.After(end.Time) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Description), search) &&
			!strings.Contains(strings.ToLower(t.Category), search) {
			continue
		}
		matched = append(matched, t)
	}
	return newestFirst(matched)
}

func newestFirst(txs []core.Transaction) []core.Transaction {
	out := append([]core.Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].Seq > out[j].Seq
	})
	return out
}

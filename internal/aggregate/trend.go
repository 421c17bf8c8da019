// Package aggregate computes dashboard views over a transaction set: trend
// buckets, category breakdowns, recent activity and range summaries.
//
// Every function is pure. Results depend only on the arguments, never on the
// order of the input slice.
package aggregate

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const (
	Daily   Mode = "DAILY"
	Weekly  Mode = "WEEKLY"
	Monthly Mode = "MONTHLY"
)

// AllCategories disables category filtering in Trend. Category names are
// never empty, so it cannot collide with a real category.
const AllCategories = ""

var ErrInvalidMode = errors.New("invalid trend mode")

type (
	Mode string

	// Bucket is one bar of a trend chart. Start and End are inclusive.
	Bucket struct {
		Label   string          `json:"label"`
		Start   core.Date       `json:"periodStart"`
		End     core.Date       `json:"periodEnd"`
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"`
	}
)

func (m Mode) Valid() bool {
	switch m {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// Trend groups income and expense into calendar buckets covering [start, end].
//
// DAILY yields one bucket per day. WEEKLY buckets start on Monday, the first
// one on the Monday on or before start. MONTHLY buckets start on the 1st.
// A bucket sums its whole span even where it extends past the range.
// Transfers never count. A start after end yields no buckets.
func Trend(txs []core.Transaction, start, end core.Date, mode Mode, category string) ([]Bucket, error) {
	if !mode.Valid() {
		return nil, core.Invalid("mode", ErrInvalidMode)
	}
	buckets := spans(start.Midnight(), end.Midnight(), mode)
	if len(buckets) == 0 {
		return buckets, nil
	}

	first, last := buckets[0].Start, buckets[len(buckets)-1].End
	for _, t := range txs {
		if t.Type != core.Income && t.Type != core.Expense {
			continue
		}
		if !matchesCategory(t, category) || !t.Date.Within(first, last) {
			continue
		}
		i := sort.Search(len(buckets), func(i int) bool {
			return !buckets[i].End.Before(t.Date.Midnight().Time)
		})
		if t.Type == core.Income {
			buckets[i].Income = buckets[i].Income.Add(t.Amount)
		} else {
			buckets[i].Expense = buckets[i].Expense.Add(t.Amount)
		}
	}
	return buckets, nil
}

func spans(start, end core.Date, mode Mode) []Bucket {
	out := []Bucket{}
	if start.After(end.Time) {
		return out
	}

	switch mode {
	case Daily:
		for d := start; !d.After(end.Time); d = d.AddDays(1) {
			out = append(out, newBucket(d.Format("2 Jan"), d, d))
		}
	case Weekly:
		offset := (int(start.Weekday()) + 6) % 7
		for ws := start.AddDays(-offset); !ws.After(end.Time); ws = ws.AddDays(7) {
			out = append(out, newBucket(ws.Format("2 Jan"), ws, ws.AddDays(6)))
		}
	case Monthly:
		for ms := core.NewDate(start.Year(), int(start.Month()), 1); !ms.After(end.Time); ms = (core.Date{Time: ms.AddDate(0, 1, 0)}) {
			me := core.Date{Time: ms.AddDate(0, 1, -1)}
			out = append(out, newBucket(ms.Format("Jan 06"), ms, me))
		}
	}
	return out
}

func newBucket(label string, start, end core.Date) Bucket {
	return Bucket{
		Label:   label,
		Start:   start,
		End:     end,
		Income:  decimal.Zero,
		Expense: decimal.Zero,
	}
}

func matchesCategory(t core.Transaction, category string) bool {
	return category == AllCategories || t.Category == category
}

package budget

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const (
	Safe     Status = "safe"
	Watch    Status = "watch"
	Critical Status = "critical"
)

type (
	Status string

	// Thresholds are the percent boundaries between statuses. Below Watch is
	// safe, up to and including Critical is watch, above Critical is critical.
	Thresholds struct {
		Watch    float64
		Critical float64
	}

	Evaluation struct {
		Budget  core.Budget     `json:"budget"`
		Window  Window          `json:"window"`
		Spent   decimal.Decimal `json:"spent"`
		Percent float64         `json:"percent"`
		Status  Status          `json:"status"`
	}
)

func DefaultThresholds() Thresholds {
	return Thresholds{Watch: 50, Critical: 80}
}

func (t Thresholds) Validate() error {
	if t.Watch < 0 || t.Critical < t.Watch {
		return fmt.Errorf("invalid budget thresholds: watch=%v critical=%v", t.Watch, t.Critical)
	}
	return nil
}

func (t Thresholds) Status(percent float64) Status {
	switch {
	case percent < t.Watch:
		return Safe
	case percent <= t.Critical:
		return Watch
	default:
		return Critical
	}
}

// Spent sums EXPENSE amounts of the budget's category inside w.
func Spent(b core.Budget, txs []core.Transaction, w Window) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Type == core.Expense && t.Category == b.Category && w.Contains(t.Date) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// Percent is spent/limit*100 rounded to two places, or 0 for a non-positive limit.
func Percent(spent, limit decimal.Decimal) float64 {
	if !limit.IsPositive() {
		return 0
	}
	return spent.Mul(decimal.NewFromInt(100)).Div(limit).Round(2).InexactFloat64()
}

// Evaluate computes spend and percent of b within w.
func Evaluate(b core.Budget, txs []core.Transaction, w Window) Evaluation {
	spent := Spent(b, txs, w)
	return Evaluation{
		Budget:  b,
		Window:  w,
		Spent:   spent,
		Percent: Percent(spent, b.Limit),
	}
}

// Evaluator evaluates budgets in the window their frequency makes active.
type Evaluator struct {
	thresholds Thresholds
}

func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{thresholds: t}
}

func (e *Evaluator) Thresholds() Thresholds { return e.thresholds }

// EvaluateAll evaluates every budget relative to now, in input order.
func (e *Evaluator) EvaluateAll(budgets []core.Budget, txs []core.Transaction, now time.Time) ([]Evaluation, error) {
	out := make([]Evaluation, 0, len(budgets))
	for _, b := range budgets {
		w, err := ActiveWindow(b.Frequency, now)
		if err != nil {
			return nil, fmt.Errorf("budget %s: %w", b.ID, err)
		}
		ev := Evaluate(b, txs, w)
		ev.Status = e.thresholds.Status(ev.Percent)
		out = append(out, ev)
	}
	return out, nil
}

// RankTop returns the n budgets closest to or over their limit.
func (e *Evaluator) RankTop(budgets []core.Budget, txs []core.Transaction, now time.Time, n int) ([]Evaluation, error) {
	evals, err := e.EvaluateAll(budgets, txs, now)
	if err != nil {
		return nil, err
	}
	return Rank(evals, n), nil
}

// Rank orders by percent, then spent, both descending, then category name.
// A negative n keeps every evaluation.
func Rank(evals []Evaluation, n int) []Evaluation {
	out := append([]Evaluation(nil), evals...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Percent != out[j].Percent {
			return out[i].Percent > out[j].Percent
		}
		if c := out[i].Spent.Cmp(out[j].Spent); c != 0 {
			return c > 0
		}
		return out[i].Budget.Category < out[j].Budget.Category
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

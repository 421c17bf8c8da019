package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/aggregate"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/schedule"
)

const defaultRecent = 10

type (
	trendResponse struct {
		Start    core.Date          `json:"start"`
		End      core.Date          `json:"end"`
		Mode     aggregate.Mode     `json:"mode"`
		Category string             `json:"category,omitempty"`
		Buckets  []aggregate.Bucket `json:"buckets"`
	}

	breakdownResponse struct {
		Start      core.Date            `json:"start"`
		End        core.Date            `json:"end"`
		Categories []core.CategoryTotal `json:"categories"`
	}

	summaryResponse struct {
		Start       core.Date                         `json:"start"`
		End         core.Date                         `json:"end"`
		Summary     core.Summary                      `json:"summary"`
		NetWorth    aggregate.NetWorth                `json:"netWorth"`
		Outstanding map[core.DebtType]decimal.Decimal `json:"outstanding"`
	}
)

// cached serves a dashboard view from the cache. Entries are keyed by owner
// and ledger version, so any committed mutation moves readers to a new key.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, parts []string, build func(*ledger.Book) (any, error)) {
	ctx := r.Context()
	owner := ownerFrom(r)
	version, err := s.deps.Ledger.Version(ctx, owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	key := cache.Key(owner, version, parts...)
	v, err := s.dashCache.GetOrLoad(key, func() (any, error) {
		book, err := s.deps.Ledger.Book(ctx, owner)
		if err != nil {
			return nil, err
		}
		return build(book)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(v).Write(w)
}

// handleTrend accepts either preset=DAILY|WEEKLY|MONTHLY|YEARLY or an
// explicit start, end and mode. Without category every category counts.
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := sanitizeInput(q.Get("category"))

	var (
		start, end core.Date
		mode       aggregate.Mode
		err        error
	)
	if preset := strings.ToUpper(strings.TrimSpace(q.Get("preset"))); preset != "" {
		start, end, mode, err = aggregate.PresetRange(aggregate.Preset(preset), s.now())
	} else {
		start, end, err = parseRange(q)
		mode = aggregate.Mode(strings.ToUpper(strings.TrimSpace(q.Get("mode"))))
		if err == nil && !mode.Valid() {
			err = core.Invalid("mode", aggregate.ErrInvalidMode)
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	parts := []string{"trend", start.String(), end.String(), string(mode), category}
	s.cached(w, r, parts, func(b *ledger.Book) (any, error) {
		buckets, err := aggregate.Trend(b.Transactions(), start, end, mode, category)
		if err != nil {
			return nil, err
		}
		return trendResponse{Start: start, End: end, Mode: mode, Category: category, Buckets: nonNil(buckets)}, nil
	})
}

// handleBreakdown returns expense totals per category; top limits the list.
func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := s.rangeOrCurrentMonth(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	top, err := parseIntParam(q, "top", -1)
	if err != nil {
		writeError(w, r, err)
		return
	}

	parts := []string{"breakdown", start.String(), end.String(), strconv.Itoa(top)}
	s.cached(w, r, parts, func(b *ledger.Book) (any, error) {
		var totals []core.CategoryTotal
		if top >= 0 {
			totals = aggregate.TopCategories(b.Transactions(), start, end, top)
		} else {
			totals = aggregate.CategoryBreakdown(b.Transactions(), start, end)
		}
		return breakdownResponse{Start: start, End: end, Categories: nonNil(totals)}, nil
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	n, err := parseIntParam(r.URL.Query(), "n", defaultRecent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.cached(w, r, []string{"recent", strconv.Itoa(n)}, func(b *ledger.Book) (any, error) {
		txs := aggregate.Recent(b.Transactions(), n)
		return transactionList{Transactions: nonNil(txs), Count: len(txs)}, nil
	})
}

// handleSummary reports income and expense over the range together with net
// worth and outstanding debts, which are not range bound.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := s.rangeOrCurrentMonth(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.cached(w, r, []string{"summary", start.String(), end.String()}, func(b *ledger.Book) (any, error) {
		return summaryResponse{
			Start:       start,
			End:         end,
			Summary:     aggregate.Summarize(b.Transactions(), start, end),
			NetWorth:    aggregate.ComputeNetWorth(b.Wallets(), b.Assets()),
			Outstanding: schedule.Outstanding(b.Debts()),
		}, nil
	})
}

// rangeOrCurrentMonth parses start and end, defaulting to the month to date.
func (s *Server) rangeOrCurrentMonth(startStr, endStr string) (core.Date, core.Date, error) {
	today := core.DateOf(s.now())
	start := core.NewDate(today.Year(), int(today.Month()), 1)
	end := today
	if v := strings.TrimSpace(startStr); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return start, end, core.Invalid("start", core.ErrInvalidDate)
		}
		start = d
	}
	if v := strings.TrimSpace(endStr); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return start, end, core.Invalid("end", core.ErrInvalidDate)
		}
		end = d
	}
	return start, end, nil
}

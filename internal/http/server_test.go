package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fintrack/internal/ai"
	"fintrack/internal/budget"
	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/ledger"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	srv      *Server
	exporter *export.Memory
}

func newTestEnv(t *testing.T, mutate func(*Config, *Deps)) *testEnv {
	t.Helper()
	store := ledger.NewStore(memory.New(), ledger.WithClock(func() time.Time { return fixedNow }))
	svc := services.NewLedgerService(store, nil)
	exporter := export.NewMemory()

	cfg := Config{CacheSize: 32, CacheTTL: time.Minute, UpcomingWindowDays: 7}
	deps := Deps{
		Ledger:    svc,
		Assistant: services.NewAssistant(svc, ai.Unavailable{}, ai.Unavailable{}),
		Export:    services.NewExportService(svc, exporter),
		Evaluator: budget.NewEvaluator(budget.DefaultThresholds()),
		Health:    stubPinger{},
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	srv := NewServer(cfg, deps)
	srv.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, exporter: exporter}
}

// do sends a request as owner u1 unless headers override it.
func (e *testEnv) do(t *testing.T, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderOwner, "u1")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func (e *testEnv) seedWallet(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/wallets", `{"id":"W1","name":"Cash","type":"CASH","initialBalance":"1000"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create wallet: status %d body %s", w.Code, w.Body.String())
	}
}

func TestHealthAndHeaders(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	body := decodeBody[map[string]any](t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestReadyReportsStorageFailure(t *testing.T) {
	env := newTestEnv(t, func(_ *Config, d *Deps) { d.Health = stubPinger{err: errors.New("db down")} })

	w := env.do(t, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Status code = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	body := decodeBody[map[string]any](t, w)
	if body["status"] != "not_ready" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedWallet(t)

	w := env.do(t, http.MethodPost, "/api/transactions",
		`{"date":"2024-03-10","description":"Lunch","amount":"25,50","type":"expense","category":"Makanan","walletId":"W1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", w.Code, w.Body.String())
	}
	created := decodeBody[core.Transaction](t, w)
	if created.ID == "" || created.Type != core.Expense || created.Amount.String() != "25.5" {
		t.Fatalf("created = %+v", created)
	}

	wallets := decodeBody[struct {
		Wallets []core.Wallet `json:"wallets"`
	}](t, env.do(t, http.MethodGet, "/api/wallets", ""))
	if len(wallets.Wallets) != 1 || wallets.Wallets[0].Balance.String() != "974.5" {
		t.Fatalf("wallets = %+v", wallets.Wallets)
	}

	w = env.do(t, http.MethodPut, "/api/transactions/"+created.ID,
		`{"date":"2024-03-10","description":"Lunch","amount":40,"type":"EXPENSE","category":"Makanan","walletId":"W1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", w.Code, w.Body.String())
	}

	list := decodeBody[transactionList](t, env.do(t, http.MethodGet, "/api/transactions?search=lun&type=EXPENSE", ""))
	if list.Count != 1 || list.Transactions[0].Amount.String() != "40" {
		t.Fatalf("list = %+v", list)
	}

	w = env.do(t, http.MethodDelete, "/api/transactions/"+created.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", w.Code)
	}
	list = decodeBody[transactionList](t, env.do(t, http.MethodGet, "/api/transactions", ""))
	if list.Count != 0 || list.Transactions == nil {
		t.Fatalf("after delete list = %+v", list)
	}
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedWallet(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		headers    []string
		wantStatus int
		wantField  string
	}{
		{
			name:       "unknown wallet",
			method:     http.MethodPost,
			target:     "/api/transactions",
			body:       `{"date":"2024-03-10","description":"x","amount":"5","type":"EXPENSE","category":"Makanan","walletId":"nope"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "walletId",
		},
		{
			name:       "zero amount",
			method:     http.MethodPost,
			target:     "/api/transactions",
			body:       `{"date":"2024-03-10","description":"x","amount":"0","type":"EXPENSE","category":"Makanan","walletId":"W1"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "amount",
		},
		{
			name:       "malformed json",
			method:     http.MethodPost,
			target:     "/api/transactions",
			body:       `{"date":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			method:     http.MethodPost,
			target:     "/api/wallets",
			body:       `{"name":"Bank","type":"BANK","color":"red"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "delete missing transaction",
			method:     http.MethodDelete,
			target:     "/api/transactions/missing",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "default category is protected",
			method:     http.MethodDelete,
			target:     "/api/categories/default-makanan",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "invalid trend mode",
			method:     http.MethodGet,
			target:     "/api/dashboard/trend?start=2024-03-01&end=2024-03-31&mode=HOURLY",
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "mode",
		},
		{
			name:       "negative top",
			method:     http.MethodGet,
			target:     "/api/budgets/evaluation?top=-2",
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "top",
		},
		{
			name:       "ai not configured",
			method:     http.MethodPost,
			target:     "/api/insights",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "wrong method",
			method:     http.MethodPatch,
			target:     "/api/wallets",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.target, tt.body, tt.headers...)
			if w.Code != tt.wantStatus {
				t.Fatalf("Status code = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantField != "" {
				body := decodeBody[ErrorBody](t, w)
				if body.Field != tt.wantField {
					t.Errorf("Field = %q, want %q", body.Field, tt.wantField)
				}
			}
		})
	}
}

func TestAdminMayDeleteDefaultCategory(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodDelete, "/api/categories/default-hiburan", "", HeaderRole, "admin")
	if w.Code != http.StatusNoContent {
		t.Fatalf("Status code = %d, want %d (body %s)", w.Code, http.StatusNoContent, w.Body.String())
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedWallet(t)
	env.do(t, http.MethodPost, "/api/transactions",
		`{"date":"2024-03-10","description":"Lunch","amount":"10","type":"EXPENSE","category":"Makanan","walletId":"W1"}`)

	list := decodeBody[transactionList](t, env.do(t, http.MethodGet, "/api/transactions", "", HeaderOwner, "u2"))
	if list.Count != 0 {
		t.Fatalf("u2 sees %d transactions", list.Count)
	}
}

func TestDashboardCacheFollowsVersion(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedWallet(t)
	env.do(t, http.MethodPost, "/api/transactions",
		`{"date":"2024-03-10","description":"Lunch","amount":"10","type":"EXPENSE","category":"Makanan","walletId":"W1"}`)

	type summary struct {
		Summary core.Summary `json:"summary"`
	}
	first := decodeBody[summary](t, env.do(t, http.MethodGet, "/api/dashboard/summary", ""))
	again := decodeBody[summary](t, env.do(t, http.MethodGet, "/api/dashboard/summary", ""))
	if first.Summary.Expense.String() != "10" || again.Summary.Expense.String() != "10" {
		t.Fatalf("summaries = %+v / %+v", first, again)
	}
	if hits, _ := env.srv.dashCache.Stats(); hits != 1 {
		t.Errorf("cache hits = %d, want 1", hits)
	}

	env.do(t, http.MethodPost, "/api/transactions",
		`{"date":"2024-03-12","description":"Bus","amount":"5","type":"EXPENSE","category":"Transportasi","walletId":"W1"}`)
	after := decodeBody[summary](t, env.do(t, http.MethodGet, "/api/dashboard/summary", ""))
	if after.Summary.Expense.String() != "15" || after.Summary.Count != 2 {
		t.Fatalf("summary after write = %+v", after.Summary)
	}
}

func TestDashboardViews(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedWallet(t)
	for _, body := range []string{
		`{"date":"2024-03-01","description":"Salary","amount":"500","type":"INCOME","category":"Gaji","walletId":"W1"}`,
		`{"date":"2024-03-02","description":"Lunch","amount":"20","type":"EXPENSE","category":"Makanan","walletId":"W1"}`,
		`{"date":"2024-03-02","description":"Movie","amount":"20","type":"EXPENSE","category":"Hiburan","walletId":"W1"}`,
		`{"date":"2024-03-03","description":"Dinner","amount":"30","type":"EXPENSE","category":"Makanan","walletId":"W1"}`,
	} {
		if w := env.do(t, http.MethodPost, "/api/transactions", body); w.Code != http.StatusCreated {
			t.Fatalf("seed: status %d body %s", w.Code, w.Body.String())
		}
	}

	t.Run("trend", func(t *testing.T) {
		got := decodeBody[trendResponse](t, env.do(t, http.MethodGet,
			"/api/dashboard/trend?start=2024-03-01&end=2024-03-03&mode=daily", ""))
		if len(got.Buckets) != 3 {
			t.Fatalf("buckets = %d, want 3", len(got.Buckets))
		}
		if got.Buckets[0].Income.String() != "500" || got.Buckets[1].Expense.String() != "40" {
			t.Errorf("buckets = %+v", got.Buckets)
		}
		if got.Category != "" {
			t.Errorf("category = %q", got.Category)
		}
	})

	t.Run("trend preset", func(t *testing.T) {
		got := decodeBody[trendResponse](t, env.do(t, http.MethodGet, "/api/dashboard/trend?preset=daily", ""))
		if got.Mode != "DAILY" || len(got.Buckets) != 15 {
			t.Fatalf("mode %s buckets %d, want DAILY and 15", got.Mode, len(got.Buckets))
		}
	})

	t.Run("breakdown", func(t *testing.T) {
		got := decodeBody[breakdownResponse](t, env.do(t, http.MethodGet,
			"/api/dashboard/breakdown?start=2024-03-01&end=2024-03-31", ""))
		if len(got.Categories) != 2 || got.Categories[0].Category != "Makanan" || got.Categories[0].Total.String() != "50" {
			t.Fatalf("categories = %+v", got.Categories)
		}
	})

	t.Run("breakdown top", func(t *testing.T) {
		got := decodeBody[breakdownResponse](t, env.do(t, http.MethodGet,
			"/api/dashboard/breakdown?start=2024-03-01&end=2024-03-31&top=1", ""))
		if len(got.Categories) != 1 {
			t.Fatalf("categories = %+v", got.Categories)
		}
	})

	t.Run("recent", func(t *testing.T) {
		got := decodeBody[transactionList](t, env.do(t, http.MethodGet, "/api/dashboard/recent?n=2", ""))
		if got.Count != 2 || got.Transactions[0].Description != "Dinner" || got.Transactions[1].Description != "Movie" {
			t.Fatalf("recent = %+v", got.Transactions)
		}
	})

	t.Run("summary", func(t *testing.T) {
		got := decodeBody[summaryResponse](t, env.do(t, http.MethodGet, "/api/dashboard/summary", ""))
		if got.Summary.Net.String() != "430" || got.NetWorth.Total.String() != "1430" {
			t.Fatalf("summary = %+v networth = %+v", got.Summary, got.NetWorth)
		}
	})
}

func TestBudgetEvaluationAndDebts(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedWallet(t)
	env.do(t, http.MethodPost, "/api/transactions",
		`{"date":"2024-03-10","description":"Lunch","amount":"90","type":"EXPENSE","category":"Makanan","walletId":"W1"}`)
	for _, body := range []string{
		`{"category":"Makanan","limit":"100","frequency":"MONTHLY"}`,
		`{"category":"Hiburan","limit":"100","frequency":"MONTHLY"}`,
	} {
		if w := env.do(t, http.MethodPost, "/api/budgets", body); w.Code != http.StatusCreated {
			t.Fatalf("budget: status %d body %s", w.Code, w.Body.String())
		}
	}

	evals := decodeBody[struct {
		Evaluations []budget.Evaluation `json:"evaluations"`
	}](t, env.do(t, http.MethodGet, "/api/budgets/evaluation?top=1", ""))
	if len(evals.Evaluations) != 1 {
		t.Fatalf("evaluations = %+v", evals.Evaluations)
	}
	top := evals.Evaluations[0]
	if top.Budget.Category != "Makanan" || top.Percent != 90 || top.Status != budget.Critical {
		t.Errorf("top = %+v", top)
	}

	w := env.do(t, http.MethodPost, "/api/debts", `{"person":"Budi","amount":"50","dueDate":"2024-03-18","type":"DEBT"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("debt: status %d body %s", w.Code, w.Body.String())
	}
	debt := decodeBody[core.Debt](t, w)
	if debt.Remaining.String() != "50" {
		t.Errorf("remaining = %s, want 50", debt.Remaining)
	}
	env.do(t, http.MethodPost, "/api/debts", `{"person":"PLN","amount":"80","dueDate":"2024-03-01","type":"BILL"}`)

	up := decodeBody[upcomingResponse](t, env.do(t, http.MethodGet, "/api/debts/upcoming", ""))
	if len(up.Upcoming) != 1 || len(up.Overdue) != 1 || up.WindowDays != 7 {
		t.Fatalf("upcoming = %+v", up)
	}

	w = env.do(t, http.MethodPost, "/api/debts/"+debt.ID+"/toggle", "")
	if toggled := decodeBody[core.Debt](t, w); !toggled.IsPaid {
		t.Fatalf("toggle: %+v", toggled)
	}
	up = decodeBody[upcomingResponse](t, env.do(t, http.MethodGet, "/api/debts/upcoming?days=30", ""))
	if len(up.Upcoming) != 0 || up.WindowDays != 30 {
		t.Fatalf("after toggle upcoming = %+v", up)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedWallet(t)

	w := env.do(t, http.MethodPost, "/api/export", `{"start":"2024-03-01","end":"2024-03-31"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty export: status %d body %s", w.Code, w.Body.String())
	}

	env.do(t, http.MethodPost, "/api/transactions",
		`{"date":"2024-03-10","description":"Lunch","amount":"10","type":"EXPENSE","category":"Makanan","walletId":"W1"}`)
	w = env.do(t, http.MethodPost, "/api/export", `{"start":"2024-03-01","end":"2024-03-31"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("export: status %d body %s", w.Code, w.Body.String())
	}
	if got := decodeBody[map[string]string](t, w)["ref"]; got != "mem:1" {
		t.Errorf("ref = %q, want mem:1", got)
	}
	if reports := env.exporter.Reports(); len(reports) != 1 || reports[0].OwnerID != "u1" {
		t.Errorf("reports = %+v", reports)
	}
}

func TestImportWithoutAssistant(t *testing.T) {
	env := newTestEnv(t, func(_ *Config, d *Deps) { d.Assistant = nil })

	w := env.do(t, http.MethodPost, "/api/transactions/import", `{"walletId":"W1","text":"lunch 20k"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Status code = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRateLimitReturnsJSON(t *testing.T) {
	env := newTestEnv(t, func(c *Config, _ *Deps) {
		c.RateLimit = ratelimit.Config{RequestsPerMinute: 2, CleanupInterval: time.Minute}
	})

	for i := 0; i < 2; i++ {
		if w := env.do(t, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
	}
	w := env.do(t, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Status code = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}
	if body := decodeBody[ErrorBody](t, w); body.Error == "" {
		t.Error("empty error body")
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/healthz", "")

	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status code = %d", w.Code)
	}
	for _, want := range []string{"http_requests_total 1", "dashboard_cache_entries 0", "suspicious_requests_total 0"} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

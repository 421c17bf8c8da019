// Package http exposes the ledger over a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"fintrack/internal/budget"
	"fintrack/internal/cache"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Pinger reports whether the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the handlers. Assistant, Export and
// Health may be nil; their endpoints then answer 503.
type Deps struct {
	Ledger    *services.LedgerService
	Assistant *services.Assistant
	Export    *services.ExportService
	Evaluator *budget.Evaluator
	Health    Pinger
}

type Config struct {
	Addr               string
	Logger             *applog.Logger
	CacheSize          int
	CacheTTL           time.Duration
	UpcomingWindowDays int
	RateLimit          ratelimit.Config
	BlockSuspicious    bool
}

type Server struct {
	http.Server

	deps       Deps
	windowDays int
	now        func() time.Time
	started    time.Time

	rateLimiter     *ratelimit.Limiter
	detector        *security.Detector
	traceMiddleware *trace.Middleware
	dashCache       *cache.LRUCache[any]
	cacheManager    *cache.Manager
}

func NewServer(cfg Config, deps Deps) *Server {
	if cfg.Logger == nil {
		cfg.Logger = applog.New(applog.DefaultConfig())
	}
	if cfg.UpcomingWindowDays <= 0 {
		cfg.UpcomingWindowDays = 7
	}
	if deps.Evaluator == nil {
		deps.Evaluator = budget.NewEvaluator(budget.DefaultThresholds())
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		deps:         deps,
		windowDays:   cfg.UpcomingWindowDays,
		now:          time.Now,
		started:      time.Now(),
		rateLimiter:  ratelimit.NewLimiter(cfg.RateLimit),
		detector:     security.NewDetector(cfg.BlockSuspicious),
		dashCache:    cache.NewLRUCache[any](cfg.CacheSize, cfg.CacheTTL),
		cacheManager: cache.NewManager(),
	}
	s.traceMiddleware = trace.NewMiddleware(cfg.Logger, s.detector.ExtractClientIP)

	s.cacheManager.Register(s.dashCache)
	cleanupEvery := cfg.CacheTTL
	if cleanupEvery <= 0 {
		cleanupEvery = time.Minute
	}
	s.cacheManager.StartCleanup(cleanupEvery)

	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError("rate limit exceeded, retry later").Write(w)
	})
	s.Handler = s.traceMiddleware.Middleware(
		s.detector.Middleware(
			headers.Middleware(
				limit(mux))))

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/transactions/import", s.handleImport)

	mux.HandleFunc("GET /api/wallets", s.handleListWallets)
	mux.HandleFunc("POST /api/wallets", s.handleCreateWallet)
	mux.HandleFunc("PUT /api/wallets/{id}", s.handleUpdateWallet)
	mux.HandleFunc("DELETE /api/wallets/{id}", s.handleDeleteWallet)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	mux.HandleFunc("GET /api/budgets/evaluation", s.handleBudgetEvaluation)
	mux.HandleFunc("PUT /api/budgets/{id}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)

	mux.HandleFunc("GET /api/debts", s.handleListDebts)
	mux.HandleFunc("POST /api/debts", s.handleCreateDebt)
	mux.HandleFunc("GET /api/debts/upcoming", s.handleUpcomingDebts)
	mux.HandleFunc("PUT /api/debts/{id}", s.handleUpdateDebt)
	mux.HandleFunc("DELETE /api/debts/{id}", s.handleDeleteDebt)
	mux.HandleFunc("POST /api/debts/{id}/toggle", s.handleToggleDebt)

	mux.HandleFunc("GET /api/assets", s.handleListAssets)
	mux.HandleFunc("POST /api/assets", s.handleCreateAsset)
	mux.HandleFunc("PUT /api/assets/{id}", s.handleUpdateAsset)
	mux.HandleFunc("DELETE /api/assets/{id}", s.handleDeleteAsset)

	mux.HandleFunc("GET /api/dashboard/trend", s.handleTrend)
	mux.HandleFunc("GET /api/dashboard/breakdown", s.handleBreakdown)
	mux.HandleFunc("GET /api/dashboard/recent", s.handleRecent)
	mux.HandleFunc("GET /api/dashboard/summary", s.handleSummary)

	mux.HandleFunc("POST /api/export", s.handleExport)
	mux.HandleFunc("POST /api/insights", s.handleInsights)
}

// Shutdown stops background cleanup and then the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	s.cacheManager.Stop()
	if err := s.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/ai"
	"fintrack/internal/budget"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/export"
	apphttp "fintrack/internal/http"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	be := cli.InitBackend(ctx, logger, cfg)

	store := ledger.NewStore(be.Persister)
	ledgerSvc := services.NewLedgerService(store, be.Publisher())
	parser, advisor := newAI(ctx, logger, cfg)
	assistant := services.NewAssistant(ledgerSvc, parser, advisor)
	exportSvc := services.NewExportService(ledgerSvc, newExporter(ctx, logger, cfg))

	thresholds := budget.Thresholds{Watch: cfg.BudgetWatchPercent, Critical: cfg.BudgetCriticalPercent}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		Logger:             logger,
		CacheSize:          cfg.CacheSize,
		CacheTTL:           cfg.CacheTTL,
		UpcomingWindowDays: cfg.UpcomingWindowDays,
		RateLimit:          ratelimit.DefaultConfig(),
	}, apphttp.Deps{
		Ledger:    ledgerSvc,
		Assistant: assistant,
		Export:    exportSvc,
		Evaluator: budget.NewEvaluator(thresholds),
		Health:    be.Persister,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", be.Events != nil,
		"ai", cfg.AIEnabled(),
		"export", cfg.ExportEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-shutdownCtx.Done()
	<-done
	logger.Info("Server stopped gracefully")
}

// newAI returns the Gemini collaborator, or ai.Unavailable when no key is set
// or the client cannot be built.
func newAI(ctx context.Context, logger *applog.Logger, cfg *config.Config) (ai.Parser, ai.Advisor) {
	if !cfg.AIEnabled() {
		logger.Info("AI collaborator disabled - no GEMINI_API_KEY provided")
		return ai.Unavailable{}, ai.Unavailable{}
	}
	g, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Warn("Failed to initialize Gemini client, AI endpoints disabled", applog.FieldError, err)
		return ai.Unavailable{}, ai.Unavailable{}
	}
	logger.Info("Gemini client initialized", "model", cfg.GeminiModel)
	return g, g
}

// newExporter returns the Google Sheets exporter when a spreadsheet is
// configured, otherwise an in-memory one.
func newExporter(ctx context.Context, logger *applog.Logger, cfg *config.Config) export.Exporter {
	if !cfg.ExportEnabled() {
		logger.Info("Google Sheets export disabled - reports kept in memory")
		return export.NewMemory()
	}
	sheets, err := export.NewSheets(ctx, export.SheetsConfig{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return sheets
}

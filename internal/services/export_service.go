package services

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/aggregate"
	"fintrack/internal/export"
	applog "fintrack/internal/log"
)

// ExportService builds a report from an owner's ledger and hands it to the
// configured exporter.
type ExportService struct {
	ledger   *LedgerService
	exporter export.Exporter
	now      func() time.Time
}

func NewExportService(ledger *LedgerService, exporter export.Exporter) *ExportService {
	return &ExportService{ledger: ledger, exporter: exporter, now: time.Now}
}

func (s *ExportService) Export(ctx context.Context, ownerID string, q aggregate.Query) (string, error) {
	book, err := s.ledger.Book(ctx, ownerID)
	if err != nil {
		return "", err
	}
	report, err := export.Build(ownerID, book.Transactions(), book.WalletNames(), q, s.now())
	if err != nil {
		return "", err
	}
	ref, err := s.exporter.Export(ctx, report)
	if err != nil {
		slog.ErrorContext(ctx, "Export failed",
			applog.FieldComponent, applog.ComponentExport,
			applog.FieldOwnerID, ownerID,
			applog.FieldError, err)
		return "", err
	}
	return ref, nil
}

package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
)

const DefaultSheetName = "FinTrack Export"

// Sheets writes reports into one tab of a Google spreadsheet, replacing its
// previous content.
type Sheets struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

var _ Exporter = (*Sheets)(nil)

// SheetsConfig names the target spreadsheet and the service account used to
// reach it. CredentialsJSON wins over CredentialsFile.
type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// NewSheets creates the exporter. Options are appended after the
// credentials; with none given, service account credentials are required.
func NewSheets(ctx context.Context, cfg SheetsConfig, opts ...goption.ClientOption) (*Sheets, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = DefaultSheetName
	}

	if len(opts) == 0 {
		creds, err := credentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets exporter ready", "component", "export", "sheet", sheet)
	return &Sheets{svc: svc, spreadsheetID: id, sheet: sheet}, nil
}

func credentials(ctx context.Context, cfg SheetsConfig) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// Export clears the tab and writes a title block, the column header and one
// row per transaction. Upstream failures are core.UpstreamError.
func (s *Sheets) Export(ctx context.Context, r Report) (string, error) {
	clearRange := fmt.Sprintf("'%s'!A:G", s.sheet)
	if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", &core.UpstreamError{Service: ServiceName, Err: fmt.Errorf("clear %s: %w", clearRange, err)}
	}

	values := reportValues(r)
	rng := fmt.Sprintf("'%s'!A1:G%d", s.sheet, len(values))
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", &core.UpstreamError{Service: ServiceName, Err: fmt.Errorf("update %s: %w", rng, err)}
	}

	slog.InfoContext(ctx, "Report exported",
		"component", "export",
		"owner_id", r.OwnerID,
		"rows", len(r.Rows),
		"range", rng)
	return rng, nil
}

func reportValues(r Report) [][]any {
	period := "all time"
	if !r.Start.IsZero() || !r.End.IsZero() {
		period = fmt.Sprintf("%s - %s", r.Start, r.End)
	}
	values := [][]any{
		{"FinTrack report", period},
		{"Income", r.Summary.Income.StringFixed(core.AmountPlaces)},
		{"Expense", r.Summary.Expense.StringFixed(core.AmountPlaces)},
		{"Net", r.Summary.Net.StringFixed(core.AmountPlaces)},
		{},
	}
	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	values = append(values, header)
	for _, row := range r.Rows {
		values = append(values, row.Values())
	}
	return values
}

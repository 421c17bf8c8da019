package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/aggregate"
	"fintrack/internal/ai"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
)

// Assistant connects the AI collaborator to the ledger: free text imports
// and written advice.
type Assistant struct {
	ledger  *LedgerService
	parser  ai.Parser
	advisor ai.Advisor
	now     func() time.Time
}

func NewAssistant(ledger *LedgerService, parser ai.Parser, advisor ai.Advisor) *Assistant {
	return &Assistant{ledger: ledger, parser: parser, advisor: advisor, now: time.Now}
}

// Import parses text into drafts, books them on walletID and commits them all
// or none. Each draft must name an existing category of its type.
func (a *Assistant) Import(ctx context.Context, ownerID, walletID, text string) ([]core.Transaction, error) {
	book, err := a.ledger.Book(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if _, ok := book.Wallet(walletID); !ok {
		return nil, core.Invalid("walletId", fmt.Errorf("%w: %s", core.ErrUnknownWallet, walletID))
	}

	drafts, err := a.parser.ParseDrafts(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, core.Invalid("text", ai.ErrEmptyResponse)
	}

	txs, err := toTransactions(book, drafts, walletID, core.DateOf(a.now()))
	if err != nil {
		slog.WarnContext(ctx, "Import rejected",
			applog.FieldComponent, applog.ComponentAI,
			applog.FieldOwnerID, ownerID,
			"drafts", len(drafts),
			applog.FieldError, err)
		return nil, err
	}
	return a.ledger.CommitBatch(ctx, ownerID, txs)
}

func toTransactions(book *ledger.Book, drafts []ai.Draft, walletID string, today core.Date) ([]core.Transaction, error) {
	txs := make([]core.Transaction, 0, len(drafts))
	for i, d := range drafts {
		t, err := d.Transaction(walletID, today)
		if err != nil {
			return nil, fmt.Errorf("draft %d: %w", i, err)
		}
		if t.Type == core.Transfer {
			return nil, fmt.Errorf("draft %d: %w", i, core.Invalid("type", core.ErrInvalidType))
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("draft %d: %w", i, err)
		}
		if !book.HasCategory(t.Category, t.Type) {
			return nil, fmt.Errorf("draft %d: %w", i,
				core.Invalid("category", fmt.Errorf("%w: %s", core.ErrUnknownCategory, t.Category)))
		}
		txs = append(txs, t)
	}
	return txs, nil
}

// Advice sends the most recent transactions to the advisor.
func (a *Assistant) Advice(ctx context.Context, ownerID string) (string, error) {
	book, err := a.ledger.Book(ctx, ownerID)
	if err != nil {
		return "", err
	}
	recent := aggregate.Recent(book.Transactions(), ai.AdviceWindow)
	text, err := a.advisor.Advice(ctx, recent)
	if err != nil {
		slog.ErrorContext(ctx, "Advice failed",
			applog.FieldComponent, applog.ComponentAI,
			applog.FieldOwnerID, ownerID,
			applog.FieldError, err)
		return "", err
	}
	return text, nil
}

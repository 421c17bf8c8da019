// Package ai is the natural language collaborator: it turns free text into
// transaction drafts and produces written advice over recent activity.
package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// ServiceName identifies this collaborator in core.UpstreamError.
const ServiceName = "ai"

// AdviceWindow is the number of most recent transactions sent for advice.
const AdviceWindow = 50

var (
	ErrNotConfigured = errors.New("ai collaborator not configured")
	ErrEmptyResponse = errors.New("empty model response")
)

type (
	// Draft is a transaction proposed by the model, not yet validated.
	Draft struct {
		Description string               `json:"description"`
		Amount      decimal.Decimal      `json:"amount"`
		Type        core.TransactionType `json:"type"`
		Category    string               `json:"category"`
		Date        string               `json:"date"`
	}

	Parser interface {
		ParseDrafts(ctx context.Context, text string) ([]Draft, error)
	}

	Advisor interface {
		Advice(ctx context.Context, recent []core.Transaction) (string, error)
	}
)

// Transaction turns d into a transaction booked on walletID. A missing date
// means today.
func (d Draft) Transaction(walletID string, today core.Date) (core.Transaction, error) {
	date := today
	if s := strings.TrimSpace(d.Date); s != "" {
		if len(s) > 10 {
			s = s[:10]
		}
		parsed, err := core.ParseDate(s)
		if err != nil {
			return core.Transaction{}, core.Invalid("date", core.ErrInvalidDate)
		}
		date = parsed
	}
	return core.Transaction{
		Date:        date,
		Description: strings.TrimSpace(d.Description),
		Amount:      core.RoundAmount(d.Amount),
		Type:        core.TransactionType(strings.ToUpper(strings.TrimSpace(string(d.Type)))),
		Category:    strings.TrimSpace(d.Category),
		WalletID:    walletID,
	}, nil
}

// Unavailable answers every call with ErrNotConfigured. It stands in when no
// API key is set so the rest of the service keeps working.
type Unavailable struct{}

func (Unavailable) ParseDrafts(context.Context, string) ([]Draft, error) {
	return nil, &core.UpstreamError{Service: ServiceName, Err: ErrNotConfigured}
}

func (Unavailable) Advice(context.Context, []core.Transaction) (string, error) {
	return "", &core.UpstreamError{Service: ServiceName, Err: ErrNotConfigured}
}

// Package export builds transaction reports and hands them to an outbound
// collaborator such as a Google spreadsheet.
package export

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
)

const ServiceName = "export"

var ErrEmptyReport = errors.New("no transactions in the selected range")

type (
	// Exporter delivers a report and returns a reference to where it landed.
	Exporter interface {
		Export(ctx context.Context, r Report) (ref string, err error)
	}

	Row struct {
		Date        core.Date
		Description string
		Type        core.TransactionType
		Category    string
		Amount      decimal.Decimal
		Wallet      string
		ToWallet    string
	}

	Report struct {
		OwnerID     string
		Start       core.Date
		End         core.Date
		GeneratedAt time.Time
		Summary     core.Summary
		Rows        []Row
	}
)

// Header is the column order of exported rows.
var Header = []string{"Date", "Description", "Type", "Category", "Amount", "From wallet", "To wallet"}

// Build selects the transactions matching q, newest first, and resolves
// wallet names. Missing wallets are reported as core.UnknownLabel and the
// destination column is "-" for anything but a transfer.
func Build(ownerID string, txs []core.Transaction, walletNames map[string]string, q aggregate.Query, now time.Time) (Report, error) {
	matched := aggregate.Filter(txs, q)
	if len(matched) == 0 {
		return Report{}, core.Invalid("range", ErrEmptyReport)
	}

	r := Report{
		OwnerID:     ownerID,
		Start:       q.Start,
		End:         q.End,
		GeneratedAt: now.UTC(),
		Summary:     summarize(matched),
		Rows:        make([]Row, 0, len(matched)),
	}
	for _, t := range matched {
		row := Row{
			Date:        t.Date,
			Description: t.Description,
			Type:        t.Type,
			Category:    t.Category,
			Amount:      t.Amount,
			Wallet:      walletName(walletNames, t.WalletID),
			ToWallet:    "-",
		}
		if t.Type == core.Transfer {
			row.ToWallet = walletName(walletNames, t.ToWalletID)
		}
		r.Rows = append(r.Rows, row)
	}
	return r, nil
}

func summarize(txs []core.Transaction) core.Summary {
	if len(txs) == 0 {
		return core.Summary{}
	}
	// txs is newest first.
	return aggregate.Summarize(txs, txs[len(txs)-1].Date, txs[0].Date)
}

func walletName(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return core.UnknownLabel
}

// Values renders the row as spreadsheet cells.
func (r Row) Values() []any {
	return []any{
		r.Date.String(),
		r.Description,
		string(r.Type),
		r.Category,
		r.Amount.StringFixed(core.AmountPlaces),
		r.Wallet,
		r.ToWallet,
	}
}

package aggregate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// NetWorth is the sum of wallet balances and asset values.
type NetWorth struct {
	Wallets decimal.Decimal `json:"wallets"`
	Assets  decimal.Decimal `json:"assets"`
	Total   decimal.Decimal `json:"total"`
}

func ComputeNetWorth(wallets []core.Wallet, assets []core.Asset) NetWorth {
	nw := NetWorth{Wallets: decimal.Zero, Assets: decimal.Zero}
	for _, w := range wallets {
		nw.Wallets = nw.Wallets.Add(w.Balance)
	}
	for _, a := range assets {
		nw.Assets = nw.Assets.Add(a.Value)
	}
	nw.Total = nw.Wallets.Add(nw.Assets)
	return nw
}

// Preset names a dashboard range shortcut.
type Preset string

const (
	PresetDaily   Preset = "DAILY"
	PresetWeekly  Preset = "WEEKLY"
	PresetMonthly Preset = "MONTHLY"
	PresetYearly  Preset = "YEARLY"
)

// PresetRange returns the range and bucket mode of a shortcut, ending today:
// DAILY is the current month, WEEKLY the last three months, MONTHLY the
// current year and YEARLY five years back from January 1st.
func PresetRange(p Preset, now time.Time) (start, end core.Date, mode Mode, err error) {
	end = core.DateOf(now)
	switch p {
	case PresetDaily:
		return core.NewDate(end.Year(), int(end.Month()), 1), end, Daily, nil
	case PresetWeekly:
		return core.Date{Time: end.AddDate(0, -3, 0)}, end, Weekly, nil
	case PresetMonthly:
		return core.NewDate(end.Year(), 1, 1), end, Monthly, nil
	case PresetYearly:
		return core.NewDate(end.Year()-5, 1, 1), end, Monthly, nil
	}
	return core.Date{}, core.Date{}, "", core.Invalid("preset", fmt.Errorf("%w: %s", ErrInvalidMode, p))
}

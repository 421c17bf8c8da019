package core

import (
	"strings"
	"time"
)

// Snapshot is the full persisted state of one owner.
type Snapshot struct {
	OwnerID      string        `json:"ownerId"`
	Version      int64         `json:"version"`
	NextSeq      int64         `json:"nextSeq"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Transactions []Transaction `json:"transactions"`
	Wallets      []Wallet      `json:"wallets"`
	Categories   []Category    `json:"categories"`
	Budgets      []Budget      `json:"budgets"`
	Debts        []Debt        `json:"debts"`
	Assets       []Asset       `json:"assets"`
}

// Clone returns a copy that shares no slices with s.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Transactions = append([]Transaction(nil), s.Transactions...)
	c.Wallets = append([]Wallet(nil), s.Wallets...)
	c.Categories = append([]Category(nil), s.Categories...)
	c.Budgets = append([]Budget(nil), s.Budgets...)
	c.Debts = append([]Debt(nil), s.Debts...)
	c.Assets = append([]Asset(nil), s.Assets...)
	return c
}

// DefaultCategories returns the system-seeded categories shared by every owner.
func DefaultCategories() []Category {
	seed := []struct {
		name string
		typ  TransactionType
	}{
		{"Gaji", Income},
		{"Makanan", Expense},
		{"Transportasi", Expense},
		{"Hiburan", Expense},
		{"Tagihan", Expense},
		{"Transfer", Transfer},
	}
	out := make([]Category, 0, len(seed))
	for _, s := range seed {
		out = append(out, Category{
			ID:        "default-" + strings.ToLower(s.name),
			Name:      s.name,
			Type:      s.typ,
			IsDefault: true,
		})
	}
	return out
}
